package command

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/jupitervolta/ds1054z/internal/audit"
	"github.com/jupitervolta/ds1054z/internal/persist"
	"github.com/jupitervolta/ds1054z/internal/telemetry"
)

// Dispatcher executes calls against the operation table.
type Dispatcher struct {
	instrument Instrument
	shares     persist.Shares
	logger     zerolog.Logger

	capture      CaptureRunner
	auditLogger  AuditLogger
	publisher    telemetry.Publisher
	timeout      time.Duration
	overlay      image.Image
	overlayAlpha float64
}

// NewDispatcher creates a dispatcher bound to one instrument.
func NewDispatcher(instrument Instrument, shares persist.Shares, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		instrument:   instrument,
		shares:       shares,
		logger:       logger,
		overlayAlpha: 1,
	}
}

// SetCapture exposes the capture loop through initial_setup, single_mode,
// test and has_scope_triggered.
func (d *Dispatcher) SetCapture(runner CaptureRunner) {
	d.capture = runner
}

// SetAuditLogger sets the audit logger.
func (d *Dispatcher) SetAuditLogger(logger AuditLogger) {
	d.auditLogger = logger
}

// SetPublisher sets the telemetry destination for command events.
func (d *Dispatcher) SetPublisher(p telemetry.Publisher) {
	d.publisher = p
}

// SetTimeout bounds each dispatch. Zero disables the bound.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// SetOverlay sets the overlay used by screenshot_fancy and its default alpha.
func (d *Dispatcher) SetOverlay(overlay image.Image, alpha float64) {
	d.overlay = overlay
	d.overlayAlpha = alpha
}

// Execute runs call and returns either its result or an ErrorEnvelope.
// It never fails; every error is folded into the envelope.
func (d *Dispatcher) Execute(ctx context.Context, call Call) interface{} {
	result, err := d.Dispatch(ctx, call)
	if err != nil {
		return Envelope(err)
	}
	return result
}

// Dispatch looks up, validates and runs call. Panics in an operation are
// recovered and reported as ErrInternal.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (result interface{}, err error) {
	start := time.Now()
	ctx = audit.WithParams(ctx, call.params())

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("op", call.API).Msg("Operation panicked")
			result = nil
			err = fmt.Errorf("%w: %s panicked: %v", ErrInternal, call.API, r)
		}
		d.finish(ctx, call.API, err, time.Since(start))
	}()

	op, ok := Lookup(call.API)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported operation %q", ErrUnsupported, call.API)
	}

	if len(call.Args) < op.MinArgs {
		return nil, fmt.Errorf("%w: %s requires at least %d arguments, got %d",
			ErrValidation, op.Name, op.MinArgs, len(call.Args))
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return op.handler(ctx, d, args{op: op.Name, pos: call.Args, kw: call.Kwargs})
}

func (d *Dispatcher) finish(ctx context.Context, op string, err error, latency time.Duration) {
	code := audit.CodeSuccess
	if err != nil {
		code = Code(err)
		d.logger.Warn().Err(err).Str("op", op).Str("code", code).Dur("latency", latency).Msg("Operation failed")
	} else {
		d.logger.Debug().Str("op", op).Dur("latency", latency).Msg("Operation completed")
	}

	if d.auditLogger != nil {
		d.auditLogger.LogAction(ctx, op, d.instrumentID(), code, latency)
	}

	if d.publisher != nil {
		event := telemetry.Event{
			Type: telemetry.EventCommand,
			Data: map[string]interface{}{
				"op":        op,
				"code":      code,
				"latencyMs": latency.Milliseconds(),
			},
		}
		if pubErr := d.publisher.Publish(event); pubErr != nil {
			d.logger.Debug().Err(pubErr).Msg("Failed to publish command event")
		}
	}
}

func (d *Dispatcher) instrumentID() string {
	if id, ok := d.instrument.(identified); ok {
		info := id.Info()
		if info.Address != "" {
			return info.Model + "@" + info.Address
		}
		return info.Model
	}
	return ""
}

func (d *Dispatcher) captureRunner() (CaptureRunner, error) {
	if d.capture == nil {
		return nil, fmt.Errorf("%w: capture loop not configured", ErrUnsupported)
	}
	return d.capture, nil
}
