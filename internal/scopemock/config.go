// Package scopemock emulates the SCPI socket of a Rigol DS1054Z for development and tests.
package scopemock

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config is the emulator configuration.
type Config struct {
	Network    NetworkConfig    `yaml:"network"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Timing     TimingConfig     `yaml:"timing"`
}

// NetworkConfig holds the listener settings.
type NetworkConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"maxConnections"`
}

// InstrumentConfig describes the emulated front panel.
type InstrumentConfig struct {
	IDN        string  `yaml:"idn"`
	Channels   []int   `yaml:"channels"`   // displayed analog channels
	Points     int     `yaml:"points"`     // screen points for NORMal/MAXimum reads
	RawPoints  int     `yaml:"rawPoints"`  // memory points for RAW reads
	SampleRate float64 `yaml:"sampleRate"` // reported by :ACQuire:SRATe?
}

// TimingConfig shapes the single-shot trigger cycle.
type TimingConfig struct {
	ArmDelayMs    int `yaml:"armDelayMs"`    // WAIT time after :SINGle before the trigger fires
	TriggerHoldMs int `yaml:"triggerHoldMs"` // TD time before the scope reports STOP
}

// Load reads defaults, then SCOPEMOCK_CONFIG if set, then environment overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("SCOPEMOCK_CONFIG"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the stock DS1054Z emulation.
func DefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Host:           "0.0.0.0",
			Port:           5555,
			MaxConnections: 4,
		},
		Instrument: InstrumentConfig{
			IDN:        "RIGOL TECHNOLOGIES,DS1054Z,DS1ZA000000001,00.04.04.SP4",
			Channels:   []int{1, 2},
			Points:     1200,
			RawPoints:  12000,
			SampleRate: 1e9,
		},
		Timing: TimingConfig{
			ArmDelayMs:    200,
			TriggerHoldMs: 50,
		},
	}
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	ints := map[string]*int{
		"SCOPEMOCK_PORT":            &cfg.Network.Port,
		"SCOPEMOCK_POINTS":          &cfg.Instrument.Points,
		"SCOPEMOCK_RAW_POINTS":      &cfg.Instrument.RawPoints,
		"SCOPEMOCK_ARM_DELAY_MS":    &cfg.Timing.ArmDelayMs,
		"SCOPEMOCK_TRIGGER_HOLD_MS": &cfg.Timing.TriggerHoldMs,
	}
	for key, dst := range ints {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		*dst = v
	}

	if host := os.Getenv("SCOPEMOCK_HOST"); host != "" {
		cfg.Network.Host = host
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Network.Port < 0 || cfg.Network.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Network.Port)
	}
	if cfg.Instrument.Points <= 0 || cfg.Instrument.Points > 255*1200 {
		return fmt.Errorf("invalid points: %d", cfg.Instrument.Points)
	}
	if cfg.Instrument.RawPoints <= 0 {
		return fmt.Errorf("invalid raw points: %d", cfg.Instrument.RawPoints)
	}
	for _, ch := range cfg.Instrument.Channels {
		if ch < 1 || ch > 4 {
			return fmt.Errorf("channel %d outside 1-4", ch)
		}
	}
	if cfg.Timing.ArmDelayMs < 0 || cfg.Timing.TriggerHoldMs < 0 {
		return fmt.Errorf("timing values must not be negative")
	}
	return nil
}
