// Package scopetest provides driver-agnostic conformance testing for scope.Device implementations.
package scopetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// Expectations describes what a conforming device under test should report.
type Expectations struct {
	Name              string
	DisplayedChannels []string
	MinPoints         int
	CallTimeout       time.Duration
}

// ConformanceResult represents the result of a conformance check.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance report.
type ConformanceReport struct {
	DeviceName    string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

type check func(ctx context.Context, dev scope.Device, exp Expectations) (map[string]interface{}, error)

// RunConformance runs every check against a fresh device and fails t if any check fails.
func RunConformance(t *testing.T, newDevice func() scope.Device, exp Expectations) {
	t.Helper()

	if exp.CallTimeout == 0 {
		exp.CallTimeout = 2 * time.Second
	}

	report := &ConformanceReport{
		DeviceName:    exp.Name,
		OverallPassed: true,
	}
	startTime := time.Now()

	checks := []struct {
		name string
		fn   check
	}{
		{"Identity_IDN", checkIdentity},
		{"Attr_SetGetRoundTrip", checkAttrRoundTrip},
		{"Attr_UnknownRejected", checkUnknownAttr},
		{"Attr_ReadOnlyRejected", checkReadOnlyAttr},
		{"Channels_Displayed", checkDisplayedChannels},
		{"Waveform_MatchesTimeAxis", checkWaveform},
		{"Display_ImageBytes", checkDisplay},
		{"Trigger_SingleThenStatus", checkSingle},
		{"Context_Cancelled", checkCancelled},
	}

	for _, c := range checks {
		dev := newDevice()
		ctx, cancel := context.WithTimeout(context.Background(), exp.CallTimeout)

		result := ConformanceResult{TestName: c.name}
		start := time.Now()
		details, err := c.fn(ctx, dev, exp)
		result.Duration = time.Since(start)
		result.Details = details
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Passed = true
		}

		cancel()
		_ = dev.Close()
		report.addResult(result)
	}

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Device conformance test failed: %d/%d checks passed", report.PassedTests, report.TotalTests)
	}
}

func checkIdentity(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	v, err := dev.GetAttr(ctx, "idn")
	if err != nil {
		return nil, fmt.Errorf("GetAttr(idn) failed: %w", err)
	}
	idn, ok := v.(string)
	if !ok || idn == "" {
		return nil, fmt.Errorf("expected non-empty idn string, got %v", v)
	}
	return map[string]interface{}{"idn": idn}, nil
}

func checkAttrRoundTrip(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	if !dev.HasAttr("timebase_scale") {
		return nil, fmt.Errorf("HasAttr(timebase_scale) = false")
	}
	if err := dev.SetAttr(ctx, "timebase_scale", 5e-5); err != nil {
		return nil, fmt.Errorf("SetAttr failed: %w", err)
	}
	v, err := dev.GetAttr(ctx, "timebase_scale")
	if err != nil {
		return nil, fmt.Errorf("GetAttr failed: %w", err)
	}
	if f, ok := v.(float64); !ok || f != 5e-5 {
		return nil, fmt.Errorf("expected 5e-05, got %v (%T)", v, v)
	}
	return map[string]interface{}{"timebase_scale": v}, nil
}

func checkUnknownAttr(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	if dev.HasAttr("warp_factor") {
		return nil, fmt.Errorf("HasAttr accepted an unknown name")
	}
	if _, err := dev.GetAttr(ctx, "warp_factor"); !errors.Is(err, scope.ErrUnknownAttribute) {
		return nil, fmt.Errorf("expected ErrUnknownAttribute from GetAttr, got %v", err)
	}
	if err := dev.SetAttr(ctx, "warp_factor", 9); !errors.Is(err, scope.ErrUnknownAttribute) {
		return nil, fmt.Errorf("expected ErrUnknownAttribute from SetAttr, got %v", err)
	}
	return nil, nil
}

func checkReadOnlyAttr(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	if err := dev.SetAttr(ctx, "idn", "x"); !errors.Is(err, scope.ErrReadOnlyAttribute) {
		return nil, fmt.Errorf("expected ErrReadOnlyAttribute, got %v", err)
	}
	return nil, nil
}

func checkDisplayedChannels(ctx context.Context, dev scope.Device, exp Expectations) (map[string]interface{}, error) {
	channels, err := dev.DisplayedChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("DisplayedChannels failed: %w", err)
	}
	if exp.DisplayedChannels != nil && strings.Join(channels, ",") != strings.Join(exp.DisplayedChannels, ",") {
		return nil, fmt.Errorf("expected %v, got %v", exp.DisplayedChannels, channels)
	}
	return map[string]interface{}{"channels": channels}, nil
}

func checkWaveform(ctx context.Context, dev scope.Device, exp Expectations) (map[string]interface{}, error) {
	channels, err := dev.DisplayedChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("DisplayedChannels failed: %w", err)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no displayed channels")
	}

	times, err := dev.TimeAxis(ctx, scope.ModeNormal)
	if err != nil {
		return nil, fmt.Errorf("TimeAxis failed: %w", err)
	}
	if len(times) < exp.MinPoints {
		return nil, fmt.Errorf("expected at least %d points, got %d", exp.MinPoints, len(times))
	}

	for _, ch := range channels {
		samples, err := dev.WaveformSamples(ctx, ch, scope.ModeNormal)
		if err != nil {
			return nil, fmt.Errorf("WaveformSamples(%s) failed: %w", ch, err)
		}
		if len(samples) != len(times) {
			return nil, fmt.Errorf("%s has %d samples, time axis has %d", ch, len(samples), len(times))
		}
	}
	return map[string]interface{}{"points": len(times)}, nil
}

var (
	pngMagic = []byte("\x89PNG\r\n\x1a\n")
	bmpMagic = []byte("BM")
)

func checkDisplay(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	data, err := dev.DisplayData(ctx)
	if err != nil {
		return nil, fmt.Errorf("DisplayData failed: %w", err)
	}
	if !bytes.HasPrefix(data, pngMagic) && !bytes.HasPrefix(data, bmpMagic) {
		return nil, fmt.Errorf("display data is neither PNG nor BMP (%d bytes)", len(data))
	}
	return map[string]interface{}{"bytes": len(data)}, nil
}

func checkSingle(ctx context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	if err := dev.Single(ctx); err != nil {
		return nil, fmt.Errorf("Single failed: %w", err)
	}
	status, err := dev.TriggerStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("TriggerStatus failed: %w", err)
	}
	if !status.Known() {
		return nil, fmt.Errorf("unexpected status %q after Single", status)
	}
	return map[string]interface{}{"status": string(status)}, nil
}

func checkCancelled(_ context.Context, dev scope.Device, _ Expectations) (map[string]interface{}, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := dev.TriggerStatus(ctx); err == nil {
		return nil, fmt.Errorf("expected error from cancelled context")
	}
	return nil, nil
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("DEVICE CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Device: %s", report.DeviceName)
	t.Logf("Passed: %d/%d", report.PassedTests, report.TotalTests)
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))
	t.Logf("%-30s %-8s %-12s %-s", "CHECK", "RESULT", "DURATION", "DETAILS")

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			var parts []string
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(parts, ", ")
		}

		t.Logf("%-30s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
