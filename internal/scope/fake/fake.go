// Package fake provides a scripted in-memory oscilloscope for testing.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// FakeDevice implements scope.Device with a scripted trigger status sequence.
type FakeDevice struct {
	scope.Base

	mu sync.Mutex

	// Trigger status script; WAIT once exhausted
	script []scope.TriggerStatus

	attrs    map[string]any
	channels []string
	samples  map[string][]float64
	times    []float64
	display  []byte

	// Call log
	writes       []string
	singles      int
	forced       int
	statusReads  int
	displayReads int
	closed       bool

	// Error simulation per method name
	errs map[string]error
}

// NewFakeDevice creates a fake with two displayed channels of 8 samples each.
func NewFakeDevice() *FakeDevice {
	const points = 8

	times := make([]float64, points)
	ch1 := make([]float64, points)
	ch2 := make([]float64, points)
	for i := 0; i < points; i++ {
		times[i] = -200e-6 + float64(i)*50e-6
		ch1[i] = 1000 * math.Sin(float64(i)/points*2*math.Pi)
		ch2[i] = float64(i) * 0.25
	}

	return &FakeDevice{
		Base: scope.Base{
			Model:   "Fake-DS1054Z",
			Address: "fake:5555",
			Status:  "online",
		},
		attrs: map[string]any{
			"idn":             "RIGOL TECHNOLOGIES,DS1054Z,FAKE0001,00.04.04",
			"timebase_scale":  50e-6,
			"timebase_offset": 200e-6,
			"memory_depth":    "AUTO",
			"acquire_type":    "NORMal",
			"sample_rate":     1e9,
			"trigger_sweep":   "AUTO",
			"trigger_level":   0.5,
			"waveform_mode":   scope.ModeNormal,
		},
		channels: []string{"CHAN1", "CHAN2"},
		samples:  map[string][]float64{"CHAN1": ch1, "CHAN2": ch2},
		times:    times,
		display:  renderDisplay(),
		errs:     make(map[string]error),
	}
}

func (f *FakeDevice) check(ctx context.Context, method string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if f.closed {
		return scope.NormalizeInstrumentError(fmt.Errorf("use of closed network connection"), method)
	}
	if err, ok := f.errs[method]; ok {
		return err
	}
	return nil
}

// Write records the command.
func (f *FakeDevice) Write(ctx context.Context, cmd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "Write"); err != nil {
		return err
	}
	f.writes = append(f.writes, cmd)
	return nil
}

// Query answers *IDN? and attribute queries; anything else echoes an empty reply.
func (f *FakeDevice) Query(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "Query"); err != nil {
		return "", err
	}
	f.writes = append(f.writes, query)

	for _, name := range scope.AttrNames() {
		attr, _ := scope.LookupAttr(name)
		if attr.Query == query {
			if v, ok := f.attrs[name]; ok {
				return fmt.Sprint(v), nil
			}
		}
	}
	return "", nil
}

// Single counts arm requests.
func (f *FakeDevice) Single(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "Single"); err != nil {
		return err
	}
	f.singles++
	return nil
}

// ForceTrigger pushes TD to the front of the script.
func (f *FakeDevice) ForceTrigger(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "ForceTrigger"); err != nil {
		return err
	}
	f.forced++
	f.script = append([]scope.TriggerStatus{scope.StatusTriggered}, f.script...)
	return nil
}

// TriggerStatus pops the next scripted status.
func (f *FakeDevice) TriggerStatus(ctx context.Context) (scope.TriggerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "TriggerStatus"); err != nil {
		return "", err
	}
	f.statusReads++

	if len(f.script) == 0 {
		return scope.StatusWait, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next, nil
}

// GetAttr reads from the in-memory attribute store.
func (f *FakeDevice) GetAttr(ctx context.Context, name string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "GetAttr"); err != nil {
		return nil, err
	}
	if _, err := scope.LookupAttr(name); err != nil {
		return nil, err
	}

	switch name {
	case scope.AttrDisplayedChannels:
		return append([]string(nil), f.channels...), nil
	case "trigger_status":
		if len(f.script) == 0 {
			return string(scope.StatusWait), nil
		}
		return string(f.script[0]), nil
	}
	return f.attrs[name], nil
}

// SetAttr validates against the attribute table and stores the coerced value.
func (f *FakeDevice) SetAttr(ctx context.Context, name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "SetAttr"); err != nil {
		return err
	}
	attr, err := scope.LookupAttr(name)
	if err != nil {
		return err
	}
	cmd, err := attr.SetCommand(value)
	if err != nil {
		return err
	}
	coerced, _ := attr.Coerce(value)
	f.attrs[name] = coerced
	f.writes = append(f.writes, cmd)
	return nil
}

// HasAttr consults the shared attribute table.
func (f *FakeDevice) HasAttr(name string) bool {
	return scope.HasAttr(name)
}

// DisplayedChannels returns the configured channel list.
func (f *FakeDevice) DisplayedChannels(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "DisplayedChannels"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.channels...), nil
}

// WaveformSamples returns a copy of the channel's samples.
func (f *FakeDevice) WaveformSamples(ctx context.Context, channel, mode string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "WaveformSamples"); err != nil {
		return nil, err
	}
	data, ok := f.samples[channel]
	if !ok {
		return nil, scope.NormalizeInstrumentError(fmt.Errorf("channel %s is not displayed", channel), ":WAV:SOUR "+channel)
	}
	return append([]float64(nil), data...), nil
}

// TimeAxis returns a copy of the time axis.
func (f *FakeDevice) TimeAxis(ctx context.Context, mode string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "TimeAxis"); err != nil {
		return nil, err
	}
	return append([]float64(nil), f.times...), nil
}

// DisplayData returns the canned PNG screen.
func (f *FakeDevice) DisplayData(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(ctx, "DisplayData"); err != nil {
		return nil, err
	}
	f.displayReads++
	return append([]byte(nil), f.display...), nil
}

// Close marks the device closed; later calls fail as disconnected.
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.SetStatus("offline")
	return nil
}

// Helper methods for testing

// SetStatusScript replaces the trigger status sequence.
func (f *FakeDevice) SetStatusScript(statuses ...scope.TriggerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append([]scope.TriggerStatus(nil), statuses...)
}

// SetChannels replaces the displayed channels and their samples.
func (f *FakeDevice) SetChannels(samples map[string][]float64, order ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append([]string(nil), order...)
	f.samples = samples
}

// SetTimeAxis replaces the time axis.
func (f *FakeDevice) SetTimeAxis(times []float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.times = times
}

// SetDisplay replaces the screen bytes.
func (f *FakeDevice) SetDisplay(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.display = data
}

// SetErrorSimulation makes the named method fail with err.
func (f *FakeDevice) SetErrorSimulation(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// DisableErrorSimulation clears all simulated errors.
func (f *FakeDevice) DisableErrorSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = make(map[string]error)
}

// Singles returns how many times Single was called.
func (f *FakeDevice) Singles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.singles
}

// StatusReads returns how many times TriggerStatus was called.
func (f *FakeDevice) StatusReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusReads
}

// DisplayReads returns how many times DisplayData was called.
func (f *FakeDevice) DisplayReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.displayReads
}

// Writes returns every command written so far.
func (f *FakeDevice) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// renderDisplay draws an 80x48 trace-like test card.
func renderDisplay() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 80, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	for x := 0; x < 80; x++ {
		y := 24 + int(16*math.Sin(float64(x)/80*2*math.Pi))
		img.Set(x, y, color.RGBA{R: 255, G: 255, A: 255})
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
