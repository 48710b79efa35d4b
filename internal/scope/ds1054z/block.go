package ds1054z

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// maxBlockLen bounds a single definite-length block; the DS1054Z never sends more than 24 Mpts.
const maxBlockLen = 32 << 20

// readBlock reads an IEEE 488.2 definite-length block: '#', one digit n, n length digits, payload.
// The newline terminator that follows the payload is consumed when present.
func readBlock(r *bufio.Reader) ([]byte, error) {
	hash, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hash != '#' {
		return nil, fmt.Errorf("block header: expected '#', got %q", hash)
	}

	digit, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	n := int(digit - '0')
	if n < 1 || n > 9 {
		return nil, fmt.Errorf("block header: invalid length digit %q", digit)
	}

	lenBuf := make([]byte, n)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}
	size, err := strconv.Atoi(string(lenBuf))
	if err != nil || size < 0 || size > maxBlockLen {
		return nil, fmt.Errorf("block header: invalid length %q", lenBuf)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	if next, err := r.Peek(1); err == nil && next[0] == '\n' {
		_, _ = r.ReadByte()
	}

	return payload, nil
}

// Preamble is the reply to :WAVeform:PREamble?.
type Preamble struct {
	Format     int
	Type       int
	Points     int
	Count      int
	XIncrement float64
	XOrigin    float64
	XReference float64
	YIncrement float64
	YOrigin    float64
	YReference float64
}

// ParsePreamble decodes the ten comma-separated preamble fields. Every
// rejection wraps scope.ErrInstrument.
func ParsePreamble(raw string) (Preamble, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != 10 {
		return Preamble{}, fmt.Errorf("%w: preamble: expected 10 fields, got %d", scope.ErrInstrument, len(fields))
	}

	ints := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Preamble{}, fmt.Errorf("%w: preamble field %d: %v", scope.ErrInstrument, i, err)
		}
		ints[i] = v
	}
	if ints[2] < 0 || ints[2] > maxBlockLen {
		return Preamble{}, fmt.Errorf("%w: preamble: implausible point count %d", scope.ErrInstrument, ints[2])
	}

	floats := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[4+i]), 64)
		if err != nil {
			return Preamble{}, fmt.Errorf("%w: preamble field %d: %v", scope.ErrInstrument, 4+i, err)
		}
		floats[i] = v
	}

	return Preamble{
		Format:     ints[0],
		Type:       ints[1],
		Points:     ints[2],
		Count:      ints[3],
		XIncrement: floats[0],
		XOrigin:    floats[1],
		XReference: floats[2],
		YIncrement: floats[3],
		YOrigin:    floats[4],
		YReference: floats[5],
	}, nil
}

// Volts converts raw BYTE-format samples to physical units.
func (p Preamble) Volts(raw []byte) []float64 {
	out := make([]float64, len(raw))
	for i, b := range raw {
		out[i] = (float64(b) - p.YOrigin - p.YReference) * p.YIncrement
	}
	return out
}

// Times returns the time of each of the Points samples.
func (p Preamble) Times() []float64 {
	if p.Points <= 0 {
		return nil
	}
	out := make([]float64, p.Points)
	for i := range out {
		out[i] = (float64(i)-p.XReference)*p.XIncrement + p.XOrigin
	}
	return out
}
