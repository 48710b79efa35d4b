package config

import (
	"time"

	"github.com/jupitervolta/ds1054z/internal/logger"
)

// Config is the complete service configuration.
type Config struct {
	Instrument InstrumentConfig `yaml:"instrument"`
	Capture    CaptureConfig    `yaml:"capture"`
	Shares     SharesConfig     `yaml:"shares"`
	Transport  TransportConfig  `yaml:"transport"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	API        APIConfig        `yaml:"api"`
	Audit      AuditConfig      `yaml:"audit"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        logger.Config    `yaml:"log"`
	Profile    Profile          `yaml:"profile"`
}

// InstrumentConfig locates the scope on the network.
type InstrumentConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	IOTimeout   time.Duration `yaml:"ioTimeout"`
}

// CaptureConfig drives the arm/watch/capture loop.
type CaptureConfig struct {
	Enabled         bool          `yaml:"enabled"`
	InitSettle      time.Duration `yaml:"initSettle"`
	ArmSettleBudget time.Duration `yaml:"armSettleBudget"`
	ArmPollInterval time.Duration `yaml:"armPollInterval"`
	PollInterval    time.Duration `yaml:"pollInterval"`
	Mode            string        `yaml:"mode"`
	WithTime        bool          `yaml:"withTime"`
	OutputDir       string        `yaml:"outputDir"`
	DataPattern     string        `yaml:"dataPattern"`
	ScreenPattern   string        `yaml:"screenPattern"`
	OverlayPath     string        `yaml:"overlayPath"`
	OverlayAlpha    float64       `yaml:"overlayAlpha"`
	Printable       bool          `yaml:"printable"`
	StampLabel      bool          `yaml:"stampLabel"`
}

// SharesConfig maps the H: and S: drive aliases onto local directories.
type SharesConfig struct {
	HDDRoot string `yaml:"hddRoot"`
	SSDRoot string `yaml:"ssdRoot"`
	DirMode uint32 `yaml:"dirMode"`
}

// TransportConfig configures the message bus bridge. An empty NATSURL disables it.
type TransportConfig struct {
	NATSURL   string `yaml:"natsUrl"`
	Subject   string `yaml:"subject"`
	Name      string `yaml:"name"`
	QueueSize int    `yaml:"queueSize"`
}

// DispatchConfig bounds a single dispatched command. Zero means no limit.
type DispatchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// APIConfig configures the HTTP surface. Auth is enforced when a secret or key is set.
type APIConfig struct {
	Addr             string        `yaml:"addr"`
	AuthSecret       string        `yaml:"authSecret"`
	AuthPublicKeyPEM string        `yaml:"authPublicKeyPem"`
	ReadTimeout      time.Duration `yaml:"readTimeout"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
}

// AuditConfig locates and sizes the JSONL audit trail.
type AuditConfig struct {
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// TelemetryConfig sizes the event hub.
type TelemetryConfig struct {
	EventBufferSize   int           `yaml:"eventBufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatJitter   time.Duration `yaml:"heartbeatJitter"`
}

// Profile is the fixed instrument setup applied before the first arm.
type Profile struct {
	AcquireType    string           `yaml:"acquireType"`
	MemoryDepth    string           `yaml:"memoryDepth"`
	TimebaseMode   string           `yaml:"timebaseMode"`
	TimebaseDelay  bool             `yaml:"timebaseDelay"`
	TimebaseOffset float64          `yaml:"timebaseOffset"`
	TimebaseScale  float64          `yaml:"timebaseScale"`
	Channels       []ChannelProfile `yaml:"channels"`
	Trigger        TriggerProfile   `yaml:"trigger"`
}

// ChannelProfile is the vertical setup of one analog channel.
type ChannelProfile struct {
	Channel        int     `yaml:"channel"`
	Coupling       string  `yaml:"coupling"`
	BandwidthLimit string  `yaml:"bandwidthLimit"`
	Invert         bool    `yaml:"invert"`
	Units          string  `yaml:"units"`
	Probe          float64 `yaml:"probe"`
	Scale          float64 `yaml:"scale"`
	Offset         float64 `yaml:"offset"`
}

// TriggerProfile is the edge trigger setup.
type TriggerProfile struct {
	Mode        string  `yaml:"mode"`
	Source      string  `yaml:"source"`
	Slope       string  `yaml:"slope"`
	NoiseReject bool    `yaml:"noiseReject"`
	Coupling    string  `yaml:"coupling"`
	Level       float64 `yaml:"level"`
}

// Defaults returns the baseline configuration for a DS1054Z on the bench network.
func Defaults() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Address:     "192.168.1.50:5555",
			DialTimeout: 5 * time.Second,
			IOTimeout:   5 * time.Second,
		},
		Capture: CaptureConfig{
			Enabled:         true,
			InitSettle:      2 * time.Second,
			ArmSettleBudget: 1 * time.Second,
			ArmPollInterval: 0,
			PollInterval:    50 * time.Millisecond,
			Mode:            "NORMal",
			WithTime:        true,
			OutputDir:       "H:/scope",
			DataPattern:     "scope-data_{ts}.csv",
			ScreenPattern:   "scope-display_{ts}.png",
			OverlayAlpha:    1.0,
		},
		Shares: SharesConfig{
			HDDRoot: "/mnt/hdd",
			SSDRoot: "/mnt/ssd",
			DirMode: 0o775,
		},
		Transport: TransportConfig{
			Subject:   "jvber.tb0.oscope",
			Name:      "oscope",
			QueueSize: 16,
		},
		API: APIConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  120 * time.Second,
		},
		Audit: AuditConfig{
			Dir:        "logs",
			MaxSizeMB:  100,
			MaxBackups: 10,
		},
		Telemetry: TelemetryConfig{
			EventBufferSize:   50,
			HeartbeatInterval: 15 * time.Second,
			HeartbeatJitter:   2 * time.Second,
		},
		Log:     logger.DefaultConfig(),
		Profile: DefaultProfile(),
	}
}

// DefaultProfile is the pulse-measurement setup: a 1000:1 high-voltage probe on
// CH1 and a 10:1 current probe on CH2, triggering on the CH2 rising edge.
func DefaultProfile() Profile {
	return Profile{
		AcquireType:    "NORMal",
		MemoryDepth:    "AUTO",
		TimebaseMode:   "MAIN",
		TimebaseDelay:  false,
		TimebaseOffset: 200e-6,
		TimebaseScale:  50e-6,
		Channels: []ChannelProfile{
			{
				Channel:        1,
				Coupling:       "DC",
				BandwidthLimit: "OFF",
				Units:          "VOLTage",
				Probe:          1000,
				Scale:          500,
				Offset:         -2 * 500,
			},
			{
				Channel:        2,
				Coupling:       "DC",
				BandwidthLimit: "OFF",
				Units:          "AMPere",
				Probe:          10,
				Scale:          1,
				Offset:         -2 * 1,
			},
		},
		Trigger: TriggerProfile{
			Mode:        "EDGE",
			Source:      "CHANnel2",
			Slope:       "POSitive",
			NoiseReject: true,
			Coupling:    "DC",
			Level:       0.5,
		},
	}
}
