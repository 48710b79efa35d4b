package ds1054z

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

func TestReadBlock(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"short header", "#15hello\n", "hello", false},
		{"nine digit header", "#9000000003abc\n", "abc", false},
		{"no terminator", "#13xyz", "xyz", false},
		{"empty payload", "#10\n", "", false},
		{"missing hash", "15hello\n", "", true},
		{"zero digit count", "#0hello\n", "", true},
		{"truncated payload", "#19abc", "", true},
		{"non-numeric length", "#2ab\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readBlock(bufio.NewReader(strings.NewReader(tt.input)))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got payload %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReadBlockLeavesNextReply(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString("#12ab\nTD\n"))
	if _, err := readBlock(r); err != nil {
		t.Fatalf("readBlock failed: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if line != "TD\n" {
		t.Errorf("Expected next reply intact, got %q", line)
	}
}

func TestParsePreamble(t *testing.T) {
	pre, err := ParsePreamble("0,0,1200,1,1.000000e-08,-6.000000e-06,0,4.000000e-02,0,127\n")
	if err != nil {
		t.Fatalf("ParsePreamble failed: %v", err)
	}
	if pre.Points != 1200 {
		t.Errorf("Expected 1200 points, got %d", pre.Points)
	}
	if pre.XIncrement != 1e-8 {
		t.Errorf("Expected xinc 1e-8, got %g", pre.XIncrement)
	}
	if pre.YReference != 127 {
		t.Errorf("Expected yref 127, got %g", pre.YReference)
	}

	if _, err := ParsePreamble("0,0,1200"); err == nil {
		t.Error("Expected error for short preamble")
	}
	if _, err := ParsePreamble("0,0,x,1,1,1,1,1,1,1"); err == nil {
		t.Error("Expected error for non-numeric points")
	}
}

func TestParsePreambleRejectsBadPointCounts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"negative", "0,0,-1,1,1e-6,0,0,0.04,0,127"},
		{"above block limit", "0,0,999999999,1,1e-6,0,0,0.04,0,127"},
		{"short", "0,0,1200"},
		{"garbled float", "0,0,1200,1,abc,0,0,0.04,0,127"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePreamble(tt.raw)
			if !errors.Is(err, scope.ErrInstrument) {
				t.Errorf("Expected ErrInstrument, got %v", err)
			}
		})
	}
}

func TestTimesWithoutPoints(t *testing.T) {
	if times := (Preamble{Points: -5}).Times(); len(times) != 0 {
		t.Errorf("Expected no times, got %d", len(times))
	}
}

func TestPreambleConversion(t *testing.T) {
	pre := Preamble{
		Points:     4,
		XIncrement: 1e-6,
		XOrigin:    -2e-6,
		XReference: 0,
		YIncrement: 0.5,
		YOrigin:    0,
		YReference: 127,
	}

	volts := pre.Volts([]byte{127, 129, 125, 255})
	want := []float64{0, 1, -1, 64}
	for i := range want {
		if volts[i] != want[i] {
			t.Errorf("sample %d: expected %g, got %g", i, want[i], volts[i])
		}
	}

	times := pre.Times()
	wantTimes := []float64{-2e-6, -1e-6, 0, 1e-6}
	if len(times) != len(wantTimes) {
		t.Fatalf("Expected %d times, got %d", len(wantTimes), len(times))
	}
	for i := range wantTimes {
		if math.Abs(times[i]-wantTimes[i]) > 1e-15 {
			t.Errorf("time %d: expected %g, got %g", i, wantTimes[i], times[i])
		}
	}
}
