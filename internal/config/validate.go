package config

import (
	"fmt"
	"strings"

	"github.com/jupitervolta/ds1054z/internal/scope"
)

// Validate enforces structural and range rules on a loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateInstrument(cfg.Instrument); err != nil {
		return fmt.Errorf("instrument validation failed: %w", err)
	}

	if err := validateCapture(cfg.Capture); err != nil {
		return fmt.Errorf("capture validation failed: %w", err)
	}

	if cfg.Shares.HDDRoot == "" || cfg.Shares.SSDRoot == "" {
		return fmt.Errorf("share roots must both be set")
	}

	if cfg.Transport.QueueSize < 1 {
		return fmt.Errorf("transport queue size must be positive, got %d", cfg.Transport.QueueSize)
	}
	if cfg.Transport.NATSURL != "" && cfg.Transport.Subject == "" {
		return fmt.Errorf("transport subject is required when a NATS URL is set")
	}

	if cfg.Dispatch.Timeout < 0 {
		return fmt.Errorf("dispatch timeout must be non-negative, got %v", cfg.Dispatch.Timeout)
	}

	if cfg.Telemetry.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be positive, got %d", cfg.Telemetry.EventBufferSize)
	}
	if cfg.Telemetry.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", cfg.Telemetry.HeartbeatInterval)
	}
	if cfg.Telemetry.HeartbeatJitter > cfg.Telemetry.HeartbeatInterval/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", cfg.Telemetry.HeartbeatJitter, cfg.Telemetry.HeartbeatInterval)
	}

	if err := validateProfile(cfg.Profile); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	return nil
}

func validateInstrument(ic InstrumentConfig) error {
	if ic.Address == "" {
		return fmt.Errorf("instrument address is required")
	}
	if ic.IOTimeout <= 0 {
		return fmt.Errorf("io timeout must be positive, got %v", ic.IOTimeout)
	}
	return nil
}

func validateCapture(cc CaptureConfig) error {
	if cc.ArmSettleBudget < 0 || cc.ArmPollInterval < 0 || cc.InitSettle < 0 {
		return fmt.Errorf("settle durations must be non-negative")
	}
	if cc.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", cc.PollInterval)
	}
	if cc.OverlayAlpha < 0 || cc.OverlayAlpha > 1 {
		return fmt.Errorf("overlay alpha %v is outside [0, 1]", cc.OverlayAlpha)
	}
	if _, ok := scope.CanonicalMode(cc.Mode); !ok {
		return fmt.Errorf("invalid waveform mode %q", cc.Mode)
	}
	if !strings.Contains(cc.DataPattern, "{ts}") || !strings.Contains(cc.ScreenPattern, "{ts}") {
		return fmt.Errorf("file patterns must contain the {ts} placeholder")
	}
	return nil
}

func validateProfile(p Profile) error {
	if p.TimebaseScale <= 0 {
		return fmt.Errorf("timebase scale must be positive, got %v", p.TimebaseScale)
	}
	for _, ch := range p.Channels {
		if ch.Channel < 1 || ch.Channel > 4 {
			return fmt.Errorf("channel %d is outside 1-4", ch.Channel)
		}
		if ch.Probe <= 0 || ch.Scale <= 0 {
			return fmt.Errorf("channel %d probe and scale must be positive", ch.Channel)
		}
	}
	return nil
}
