package persist

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

// Series is one named channel of samples.
type Series struct {
	Name   string
	Values []float64
}

// Table is a capture ready to export. Time may be nil when the time column is omitted.
type Table struct {
	Time     []float64
	Channels []Series
}

// Layout selects how a table is laid out on disk.
type Layout int

const (
	// LayoutColumns writes a header row and one row per sample.
	LayoutColumns Layout = iota

	// LayoutRows writes the time axis as the first row and one row per channel.
	LayoutRows
)

// Delimiter returns the field separator for a tabular file name.
func Delimiter(path string) (rune, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "":
		return 0, fmt.Errorf("%w: %s", ErrMissingExtension, path)
	case ".csv":
		return ',', nil
	case ".txt":
		return '\t', nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}
}

// Validate checks that every series has the same length.
func (t Table) Validate() error {
	want := -1
	if t.Time != nil {
		want = len(t.Time)
	}
	for _, ch := range t.Channels {
		if want < 0 {
			want = len(ch.Values)
			continue
		}
		if len(ch.Values) != want {
			return fmt.Errorf("%w: %s has %d samples, expected %d", ErrLengthMismatch, ch.Name, len(ch.Values), want)
		}
	}
	return nil
}

// Len is the number of samples per series.
func (t Table) Len() int {
	if t.Time != nil {
		return len(t.Time)
	}
	if len(t.Channels) > 0 {
		return len(t.Channels[0].Values)
	}
	return 0
}

// WriteWaveform writes t to path. The delimiter follows the extension and the
// table is validated before any file is created.
func WriteWaveform(path string, t Table, layout Layout) error {
	delim, err := Delimiter(path)
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	return WriteFile(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		cw.Comma = delim

		var rows [][]string
		if layout == LayoutRows {
			rows = t.rowLayout()
		} else {
			rows = t.columnLayout()
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}

func (t Table) columnLayout() [][]string {
	withTime := t.Time != nil

	header := make([]string, 0, len(t.Channels)+1)
	if withTime {
		header = append(header, "TIME")
	}
	for _, ch := range t.Channels {
		header = append(header, ch.Name)
	}

	n := t.Len()
	rows := make([][]string, 0, n+1)
	rows = append(rows, header)
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(header))
		if withTime {
			row = append(row, FormatTime(t.Time[i]))
		}
		for _, ch := range t.Channels {
			row = append(row, FormatSample(ch.Values[i]))
		}
		rows = append(rows, row)
	}
	return rows
}

func (t Table) rowLayout() [][]string {
	rows := make([][]string, 0, len(t.Channels)+1)
	if t.Time != nil {
		row := make([]string, len(t.Time))
		for i, v := range t.Time {
			row[i] = FormatTime(v)
		}
		rows = append(rows, row)
	}
	for _, ch := range t.Channels {
		row := make([]string, len(ch.Values))
		for i, v := range ch.Values {
			row[i] = FormatSample(v)
		}
		rows = append(rows, row)
	}
	return rows
}

// FormatTime renders a time value in shortest round-trip form.
func FormatTime(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatSample renders a channel value with two decimals in scientific notation.
func FormatSample(v float64) string {
	return fmt.Sprintf("%.2e", v)
}
