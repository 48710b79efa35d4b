package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/config"
	"github.com/jupitervolta/ds1054z/internal/device"
	"github.com/jupitervolta/ds1054z/internal/imaging"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/scope"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
)

// StampLayout formats the capture timestamp shared by both artifacts.
const StampLayout = "2006-01-02_15-04-05"

// State is the orchestrator's position in the capture cycle.
type State int

const (
	StateInit State = iota
	StateArmed
	StateWatching
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateArmed:
		return "ARMED"
	case StateWatching:
		return "WATCHING"
	case StateCapturing:
		return "CAPTURING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Record describes one completed capture.
type Record struct {
	Timestamp  time.Time           `json:"timestamp"`
	Stamp      string              `json:"stamp"`
	Status     scope.TriggerStatus `json:"status"`
	DataPath   string              `json:"dataPath,omitempty"`
	ScreenPath string              `json:"screenPath,omitempty"`
	Elapsed    time.Duration       `json:"elapsed"`
}

// Summary counts the outcome of a bounded run.
type Summary struct {
	Cycles           int `json:"cycles"`
	WaveformErrors   int `json:"waveformErrors"`
	ScreenshotErrors int `json:"screenshotErrors"`
}

// Orchestrator drives the INIT, ARMED, WATCHING, CAPTURING cycle.
type Orchestrator struct {
	handle  *device.Handle
	shares  persist.Shares
	cfg     config.CaptureConfig
	profile config.Profile
	overlay image.Image

	clock     Clock
	publisher telemetry.Publisher
	logger    zerolog.Logger

	// Held for the duration of Run or RunCycles
	runMu sync.Mutex

	mu      sync.RWMutex
	state   State
	last    *Record
	summary Summary
}

// NewOrchestrator builds an orchestrator. The overlay is loaded up front so a
// bad overlay path fails at startup rather than on the first trigger.
func NewOrchestrator(handle *device.Handle, shares persist.Shares, cfg config.CaptureConfig, profile config.Profile, logger zerolog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		handle:  handle,
		shares:  shares,
		cfg:     cfg,
		profile: profile,
		clock:   SystemClock(),
		logger:  logger,
	}

	if cfg.OverlayAlpha > 0 {
		overlay, err := imaging.LoadOverlay(cfg.OverlayPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		o.overlay = overlay
	}
	return o, nil
}

// SetClock replaces the wall clock, for tests.
func (o *Orchestrator) SetClock(clock Clock) {
	o.clock = clock
}

// SetPublisher sets the telemetry destination for capture events.
func (o *Orchestrator) SetPublisher(p telemetry.Publisher) {
	o.publisher = p
}

// State returns the current cycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastCapture returns the most recent capture, if any.
func (o *Orchestrator) LastCapture() (Record, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return Record{}, false
	}
	return *o.last, true
}

// Snapshot summarizes the orchestrator for health checks and telemetry.
func (o *Orchestrator) Snapshot() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := map[string]interface{}{
		"state":   o.state.String(),
		"summary": o.summary,
	}
	if o.last != nil {
		snap["lastCapture"] = *o.last
	}
	return snap
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Setup applies the profile in one locked sequence, then waits InitSettle.
// It is not retried.
func (o *Orchestrator) Setup(ctx context.Context) error {
	o.setState(StateInit)

	cmds := SetupCommands(o.profile)
	err := o.handle.Do(func(dev scope.Device) error {
		for _, cmd := range cmds {
			if err := dev.Write(ctx, cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to apply instrument profile")
		o.publishFaultEvent("setup", err)
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	o.logger.Info().Int("commands", len(cmds)).Msg("Scope initialized")
	return o.clock.Sleep(ctx, o.cfg.InitSettle)
}

// Arm starts a single-shot acquisition and waits for the scope to report
// WAIT, giving up silently after ArmSettleBudget.
func (o *Orchestrator) Arm(ctx context.Context) error {
	o.setState(StateArmed)

	if err := o.handle.Single(ctx); err != nil {
		o.publishFaultEvent("arm", err)
		return fmt.Errorf("arm single: %w", err)
	}

	armedAt := o.clock.Now()
	settled := false
	for o.clock.Now().Sub(armedAt) < o.cfg.ArmSettleBudget {
		status, err := o.handle.TriggerStatus(ctx)
		if err != nil {
			if scope.IsFatal(err) {
				return err
			}
			o.logger.Debug().Err(err).Msg("Status read failed while arming")
		} else if status == scope.StatusWait {
			settled = true
			break
		}
		if err := o.clock.Sleep(ctx, o.cfg.ArmPollInterval); err != nil {
			return err
		}
	}

	if !settled {
		o.logger.Debug().Dur("budget", o.cfg.ArmSettleBudget).Msg("Scope did not report WAIT within the arm budget")
	}

	o.publish(telemetry.EventArmed, map[string]interface{}{"settled": settled})
	o.setState(StateWatching)
	return nil
}

// HasTriggered performs one status read.
func (o *Orchestrator) HasTriggered(ctx context.Context) (bool, error) {
	status, err := o.handle.TriggerStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.IsTriggered(), nil
}

// Run sets the scope up and captures until ctx is done. It returns early
// only when the instrument connection is lost.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.runMu.TryLock() {
		return ErrBusy
	}
	defer o.runMu.Unlock()

	_, err := o.run(ctx, 0)
	return err
}

// RunCycles runs the loop until maxCycles captures have completed.
func (o *Orchestrator) RunCycles(ctx context.Context, maxCycles int) (Summary, error) {
	if !o.runMu.TryLock() {
		return Summary{}, ErrBusy
	}
	defer o.runMu.Unlock()

	return o.run(ctx, maxCycles)
}

func (o *Orchestrator) run(ctx context.Context, maxCycles int) (Summary, error) {
	var summary Summary

	if err := o.Setup(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, scope.ErrDisconnected) {
			return summary, err
		}
		// Keep going on the scope's current settings.
		o.logger.Warn().Err(err).Msg("Continuing without instrument profile")
	}

	if err := o.Arm(ctx); err != nil {
		if ctx.Err() != nil || errors.Is(err, scope.ErrDisconnected) {
			return summary, err
		}
		o.logger.Error().Err(err).Msg("Initial arm failed")
	} else {
		o.logger.Info().Msg("Scope ready for trigger")
	}

	for maxCycles <= 0 || summary.Cycles < maxCycles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		status, err := o.handle.TriggerStatus(ctx)
		switch {
		case err != nil:
			if errors.Is(err, scope.ErrDisconnected) {
				o.publishFaultEvent("watch", err)
				return summary, err
			}
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			o.logger.Warn().Err(err).Msg("Trigger status read failed")

		case status.IsTriggered():
			out := o.capture(ctx, status)
			summary.Cycles++
			if out.waveErr != nil {
				summary.WaveformErrors++
			}
			if out.screenErr != nil {
				summary.ScreenshotErrors++
			}
			o.recordSummary(out.record, summary)

			if err := o.rearm(ctx, out.record); err != nil {
				if ctx.Err() != nil {
					return summary, ctx.Err()
				}
				if errors.Is(err, scope.ErrDisconnected) {
					return summary, err
				}
				o.logger.Error().Err(err).Msg("Rearm failed")
			}
			continue
		}

		if err := o.clock.Sleep(ctx, o.cfg.PollInterval); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

type outcome struct {
	record    Record
	waveErr   error
	screenErr error
}

// capture saves both artifacts under one timestamp. Each save is best-effort.
func (o *Orchestrator) capture(ctx context.Context, status scope.TriggerStatus) outcome {
	o.setState(StateCapturing)

	now := o.clock.Now()
	rec := Record{
		Timestamp: now,
		Stamp:     now.Format(StampLayout),
		Status:    status,
	}

	o.logger.Info().Str("status", string(status)).Msg("Triggered")
	o.publish(telemetry.EventTriggered, map[string]interface{}{
		"status": string(status),
		"stamp":  rec.Stamp,
	})

	dir, err := o.shares.EnsureDir(o.cfg.OutputDir)
	if err != nil {
		o.logger.Error().Err(err).Msg("Output directory unavailable")
		o.publishFaultEvent("capture", err)
		return outcome{record: rec, waveErr: err, screenErr: err}
	}

	rec.DataPath = filepath.Join(dir, expandPattern(o.cfg.DataPattern, rec.Stamp))
	waveErr := o.guard("waveform", func() error { return o.saveWaveform(ctx, rec.DataPath) })
	if waveErr != nil {
		o.logger.Error().Err(waveErr).Str("path", rec.DataPath).Msg("Failed to save waveform")
		o.publishFaultEvent("waveform", waveErr)
		rec.DataPath = ""
	}

	rec.ScreenPath = filepath.Join(dir, expandPattern(o.cfg.ScreenPattern, rec.Stamp))
	screenErr := o.guard("screenshot", func() error { return o.saveScreen(ctx, rec.ScreenPath, rec.Stamp) })
	if screenErr != nil {
		o.logger.Error().Err(screenErr).Str("path", rec.ScreenPath).Msg("Failed to save screenshot")
		o.publishFaultEvent("screenshot", screenErr)
		rec.ScreenPath = ""
	}

	return outcome{record: rec, waveErr: waveErr, screenErr: screenErr}
}

// guard runs one persistence step and turns a panic into its error.
func (o *Orchestrator) guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Str("step", step).Msg("Capture step panicked")
			err = fmt.Errorf("%s step panicked: %v", step, r)
		}
	}()
	return fn()
}

// rearm arms the next acquisition and logs the full cycle time.
func (o *Orchestrator) rearm(ctx context.Context, rec Record) error {
	err := o.Arm(ctx)

	rec.Elapsed = o.clock.Now().Sub(rec.Timestamp)
	o.mu.Lock()
	if o.last != nil && o.last.Stamp == rec.Stamp {
		o.last.Elapsed = rec.Elapsed
	}
	o.mu.Unlock()

	o.logger.Info().
		Dur("elapsed", rec.Elapsed).
		Str("stamp", rec.Stamp).
		Msg("Time to save data and reset")

	o.publish(telemetry.EventCaptured, map[string]interface{}{
		"stamp":      rec.Stamp,
		"dataPath":   rec.DataPath,
		"screenPath": rec.ScreenPath,
		"elapsedMs":  rec.Elapsed.Milliseconds(),
	})
	return err
}

func (o *Orchestrator) saveWaveform(ctx context.Context, path string) error {
	mode, ok := scope.CanonicalMode(o.cfg.Mode)
	if !ok {
		mode = scope.ModeNormal
	}

	var table persist.Table
	err := o.handle.Do(func(dev scope.Device) error {
		var err error
		table, err = ReadTable(ctx, dev, nil, mode, o.cfg.WithTime)
		return err
	})
	if err != nil {
		return err
	}
	return persist.WriteWaveform(path, table, persist.LayoutColumns)
}

func (o *Orchestrator) saveScreen(ctx context.Context, path, stamp string) error {
	opts := imaging.Options{
		Overlay:      o.overlay,
		OverlayAlpha: o.cfg.OverlayAlpha,
		Printable:    o.cfg.Printable,
	}
	if o.cfg.StampLabel {
		opts.Stamp = stamp
	}

	var img image.Image
	err := o.handle.Do(func(dev scope.Device) error {
		var err error
		img, err = RenderScreen(ctx, dev, opts)
		return err
	})
	if err != nil {
		return err
	}
	return imaging.Save(img, path)
}

func (o *Orchestrator) recordSummary(rec Record, summary Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &rec
	o.summary = summary
}

// expandPattern substitutes {ts}. A pattern without the placeholder gets the
// stamp appended before the extension so captures never overwrite each other.
func expandPattern(pattern, stamp string) string {
	if strings.Contains(pattern, "{ts}") {
		return strings.ReplaceAll(pattern, "{ts}", stamp)
	}
	ext := filepath.Ext(pattern)
	return strings.TrimSuffix(pattern, ext) + "_" + stamp + ext
}

func (o *Orchestrator) publish(eventType string, data map[string]interface{}) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(telemetry.Event{Type: eventType, Data: data}); err != nil {
		o.logger.Debug().Err(err).Str("type", eventType).Msg("Failed to publish event")
	}
}

func (o *Orchestrator) publishFaultEvent(step string, err error) {
	o.publish(telemetry.EventFault, map[string]interface{}{
		"step":  step,
		"error": err.Error(),
	})
}
