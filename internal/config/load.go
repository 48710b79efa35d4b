package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is read when present; OSCOPE_CONFIG names an additional file that must exist.
const DefaultFile = "config/oscope.yaml"

// Load merges Defaults() + optional YAML files + OSCOPE_* env overrides, then validates.
func Load() (*Config, error) {
	cfg := Defaults()

	if err := loadFromFile(cfg, DefaultFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
	}

	if path := os.Getenv("OSCOPE_CONFIG"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays a single YAML file on the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile unmarshals YAML on top of the current values.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies OSCOPE_* environment variables. Malformed values are errors.
func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Instrument.Address, "OSCOPE_INSTRUMENT_ADDR")
	setString(&cfg.Capture.OutputDir, "OSCOPE_OUTPUT_DIR")
	setString(&cfg.Capture.OverlayPath, "OSCOPE_OVERLAY")
	setString(&cfg.Capture.Mode, "OSCOPE_WAVEFORM_MODE")
	setString(&cfg.Shares.HDDRoot, "OSCOPE_HDD_ROOT")
	setString(&cfg.Shares.SSDRoot, "OSCOPE_SSD_ROOT")
	setString(&cfg.Transport.NATSURL, "OSCOPE_NATS_URL")
	setString(&cfg.Transport.Subject, "OSCOPE_SUBJECT")
	setString(&cfg.API.Addr, "OSCOPE_API_ADDR")
	setString(&cfg.API.AuthSecret, "OSCOPE_AUTH_SECRET")
	setString(&cfg.Audit.Dir, "OSCOPE_AUDIT_DIR")
	setString(&cfg.Log.Level, "OSCOPE_LOG_LEVEL")
	setString(&cfg.Log.File, "OSCOPE_LOG_FILE")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"OSCOPE_IO_TIMEOUT", &cfg.Instrument.IOTimeout},
		{"OSCOPE_DIAL_TIMEOUT", &cfg.Instrument.DialTimeout},
		{"OSCOPE_INIT_SETTLE", &cfg.Capture.InitSettle},
		{"OSCOPE_ARM_SETTLE", &cfg.Capture.ArmSettleBudget},
		{"OSCOPE_ARM_POLL_INTERVAL", &cfg.Capture.ArmPollInterval},
		{"OSCOPE_POLL_INTERVAL", &cfg.Capture.PollInterval},
		{"OSCOPE_DISPATCH_TIMEOUT", &cfg.Dispatch.Timeout},
	}
	for _, d := range durations {
		if val := os.Getenv(d.key); val != "" {
			parsed, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"OSCOPE_CAPTURE_ENABLED", &cfg.Capture.Enabled},
		{"OSCOPE_PRINTABLE", &cfg.Capture.Printable},
		{"OSCOPE_WITH_TIME", &cfg.Capture.WithTime},
		{"OSCOPE_DEBUG", &cfg.Log.Debug},
	}
	for _, b := range bools {
		if val := os.Getenv(b.key); val != "" {
			parsed, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = parsed
		}
	}

	if val := os.Getenv("OSCOPE_OVERLAY_ALPHA"); val != "" {
		alpha, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("OSCOPE_OVERLAY_ALPHA: %w", err)
		}
		cfg.Capture.OverlayAlpha = alpha
	}

	if val := os.Getenv("OSCOPE_QUEUE_SIZE"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("OSCOPE_QUEUE_SIZE: %w", err)
		}
		cfg.Transport.QueueSize = size
	}

	return nil
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}
