package command

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sort"

	"github.com/jupitervolta/ds1054z/internal/capture"
	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope"
)

// Fixed file names of the legacy export operations.
const (
	WaveformFile   = "pulse_waveform.csv"
	ScreenshotFile = "pulse_waveform_screenshot.png"
)

// DefaultTestCycles is the capture count of the test operation.
const DefaultTestCycles = 10

type handlerFunc func(ctx context.Context, d *Dispatcher, a args) (interface{}, error)

// Op is one entry of the operation table.
type Op struct {
	Name     string
	MinArgs  int
	ReadOnly bool
	handler  handlerFunc
}

var ops = map[string]Op{}

func register(name string, minArgs int, readOnly bool, h handlerFunc) {
	ops[name] = Op{Name: name, MinArgs: minArgs, ReadOnly: readOnly, handler: h}
}

func init() {
	register("getattr", 1, true, opGetAttr)
	register("setattr", 2, false, opSetAttr)
	register("hasattr", 1, true, opHasAttr)

	register("trigger_single", 0, false, opTriggerSingle)
	register("single_mode", 0, false, opSingleMode)
	register("force_trigger", 0, false, opForceTrigger)

	register("save_waveform", 2, false, opSaveWaveform)
	register("save_waveform_simple", 2, false, opSaveWaveform)
	register("save_data", 2, false, opSaveData)

	register("screenshot", 1, false, opScreenshot)
	register("screenshot_simple", 1, false, opScreenshot)
	register("screenshot_fancy", 2, false, opScreenshotFancy)

	register("save_note", 3, false, opSaveNote)
	register("save_notes", 3, false, opSaveNote)
	register("save_json", 3, false, opSaveJSON)

	register("initial_setup", 0, false, opInitialSetup)
	register("test", 0, false, opTest)
	register("has_scope_triggered", 0, true, opHasTriggered)

	register("write", 1, false, opWrite)
	register("query", 1, true, opQuery)
}

// Lookup returns the table entry for name.
func Lookup(name string) (Op, bool) {
	op, ok := ops[name]
	return op, ok
}

// Names lists every operation, sorted.
func Names() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func opGetAttr(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	name, err := a.str(0)
	if err != nil {
		return nil, err
	}
	value, err := d.instrument.GetAttr(ctx, name)
	if err != nil {
		return nil, err
	}
	return []interface{}{name, value}, nil
}

func opSetAttr(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	name, err := a.str(0)
	if err != nil {
		return nil, err
	}
	value, err := a.value(1)
	if err != nil {
		return nil, err
	}
	if err := d.instrument.SetAttr(ctx, name, value); err != nil {
		return nil, err
	}
	return []interface{}{name, value, true}, nil
}

func opHasAttr(_ context.Context, d *Dispatcher, a args) (interface{}, error) {
	name, err := a.str(0)
	if err != nil {
		return nil, err
	}
	return []interface{}{name, d.instrument.HasAttr(name)}, nil
}

func opTriggerSingle(ctx context.Context, d *Dispatcher, _ args) (interface{}, error) {
	if err := d.instrument.Single(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

// opSingleMode arms and waits for the scope to settle into WAIT.
func opSingleMode(ctx context.Context, d *Dispatcher, _ args) (interface{}, error) {
	runner, err := d.captureRunner()
	if err != nil {
		return nil, err
	}
	if err := runner.Arm(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

func opForceTrigger(ctx context.Context, d *Dispatcher, _ args) (interface{}, error) {
	if err := d.instrument.ForceTrigger(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

// opSaveWaveform writes the named channels in row layout to pulse_waveform.csv.
func opSaveWaveform(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	channels, err := a.strs(1)
	if err != nil {
		return nil, err
	}
	path, err := d.shares.Join(workDir, WaveformFile)
	if err != nil {
		return nil, err
	}

	table, err := d.readTable(ctx, channels, scope.ModeNormal, true)
	if err != nil {
		return nil, err
	}
	if err := persist.WriteWaveform(path, table, persist.LayoutRows); err != nil {
		return nil, err
	}
	return true, nil
}

// opSaveData writes every displayed channel in column layout.
func opSaveData(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	filename, err := a.str(1)
	if err != nil {
		return nil, err
	}
	withTime, err := a.kwBool("with_time", true)
	if err != nil {
		return nil, err
	}
	rawMode, err := a.kwString("mode", scope.ModeNormal)
	if err != nil {
		return nil, err
	}
	mode, ok := scope.CanonicalMode(rawMode)
	if !ok {
		return nil, fmt.Errorf("%w: save_data mode %q is not NORMal, RAW or MAXimum", ErrValidation, rawMode)
	}

	// Reject bad extensions before creating the work dir or touching the instrument.
	if _, err := persist.Delimiter(filename); err != nil {
		return nil, err
	}
	path, err := d.shares.Join(workDir, filename)
	if err != nil {
		return nil, err
	}

	table, err := d.readTable(ctx, nil, mode, withTime)
	if err != nil {
		return nil, err
	}
	if err := persist.WriteWaveform(path, table, persist.LayoutColumns); err != nil {
		return nil, err
	}
	return true, nil
}

// opScreenshot saves the raw screen and returns its path.
func opScreenshot(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	path, err := d.shares.Join(workDir, ScreenshotFile)
	if err != nil {
		return nil, err
	}
	if err := d.saveScreen(ctx, path, imaging.Options{}); err != nil {
		return nil, err
	}
	return path, nil
}

func opScreenshotFancy(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	filename, err := a.str(1)
	if err != nil {
		return nil, err
	}
	alpha, err := a.kwFloat("overlay_alpha", d.overlayAlpha)
	if err != nil {
		return nil, err
	}
	printable, err := a.kwBool("printable", false)
	if err != nil {
		return nil, err
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: overlay_alpha %v outside 0..1", ErrValidation, alpha)
	}

	if _, err := imaging.EncoderFor(filename); err != nil {
		return nil, err
	}
	path, err := d.shares.Join(workDir, filename)
	if err != nil {
		return nil, err
	}

	opts := imaging.Options{OverlayAlpha: alpha, Printable: printable}
	if alpha > 0 {
		opts.Overlay = d.overlay
	}
	if err := d.saveScreen(ctx, path, opts); err != nil {
		return nil, err
	}
	return true, nil
}

func opSaveNote(_ context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	filename, err := a.str(1)
	if err != nil {
		return nil, err
	}
	text, err := a.str(2)
	if err != nil {
		return nil, err
	}
	path, err := d.shares.Join(workDir, filename)
	if err != nil {
		return nil, err
	}
	if err := persist.WriteText(path, text); err != nil {
		return nil, err
	}
	return true, nil
}

// opSaveJSON accepts the document either as JSON text in a string or as an
// inline JSON value.
func opSaveJSON(_ context.Context, d *Dispatcher, a args) (interface{}, error) {
	workDir, err := a.str(0)
	if err != nil {
		return nil, err
	}
	filename, err := a.str(1)
	if err != nil {
		return nil, err
	}

	doc := []byte(a.raw(2))
	var text string
	if err := json.Unmarshal(doc, &text); err == nil {
		doc = []byte(text)
	}
	if !json.Valid(doc) {
		return nil, fmt.Errorf("%w: %s", persist.ErrInvalidJSON, filename)
	}

	path, err := d.shares.Join(workDir, filename)
	if err != nil {
		return nil, err
	}
	if err := persist.WriteJSON(path, doc); err != nil {
		return nil, err
	}
	return true, nil
}

func opInitialSetup(ctx context.Context, d *Dispatcher, _ args) (interface{}, error) {
	runner, err := d.captureRunner()
	if err != nil {
		return nil, err
	}
	if err := runner.Setup(ctx); err != nil {
		return nil, err
	}
	return true, nil
}

// opTest runs a bounded capture loop.
func opTest(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	maxItr, err := a.kwInt("max_itr", DefaultTestCycles)
	if err != nil {
		return nil, err
	}
	if maxItr < 1 {
		return nil, fmt.Errorf("%w: max_itr must be positive, got %d", ErrValidation, maxItr)
	}
	runner, err := d.captureRunner()
	if err != nil {
		return nil, err
	}
	summary, err := runner.RunCycles(ctx, maxItr)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func opHasTriggered(ctx context.Context, d *Dispatcher, _ args) (interface{}, error) {
	runner, err := d.captureRunner()
	if err != nil {
		return nil, err
	}
	return runner.HasTriggered(ctx)
}

func opWrite(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	cmd, err := a.str(0)
	if err != nil {
		return nil, err
	}
	if err := d.instrument.Write(ctx, cmd); err != nil {
		return nil, err
	}
	return true, nil
}

func opQuery(ctx context.Context, d *Dispatcher, a args) (interface{}, error) {
	q, err := a.str(0)
	if err != nil {
		return nil, err
	}
	return d.instrument.Query(ctx, q)
}

func (d *Dispatcher) readTable(ctx context.Context, channels []string, mode string, withTime bool) (persist.Table, error) {
	var table persist.Table
	err := d.instrument.Do(func(dev scope.Device) error {
		var err error
		table, err = capture.ReadTable(ctx, dev, channels, mode, withTime)
		return err
	})
	return table, err
}

func (d *Dispatcher) saveScreen(ctx context.Context, path string, opts imaging.Options) error {
	var img image.Image
	err := d.instrument.Do(func(dev scope.Device) error {
		var err error
		img, err = capture.RenderScreen(ctx, dev, opts)
		return err
	})
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}
