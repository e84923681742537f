package acmenet

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("acmenet: invalid config")

// Mode selects how listeners are served.
type Mode string

const (
	// ModeBlocking serves every listener with its own accepting goroutine.
	ModeBlocking Mode = "blocking"
	// ModeMultiplexed serves every listener from a single readiness poller.
	ModeMultiplexed Mode = "multiplexed"
)

type ListenerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type ChannelConfig struct {
	Capacity  int  `yaml:"capacity"`
	Unbounded bool `yaml:"unbounded"`
	GrowBy    int  `yaml:"grow_by"`
}

type PumpConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	Runners     int           `yaml:"runners"`
	IdleBackoff time.Duration `yaml:"idle_backoff"`
	LogStats    bool          `yaml:"log_stats"`
}

type IngressConfig struct {
	MaxRecordSize int           `yaml:"max_record_size"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type MultiplexConfig struct {
	MaxEvents   int           `yaml:"max_events"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

type QuestDBConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Table   string `yaml:"table"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Config describes a server built out of acceptors, an event channel and pumps.
type Config struct {
	Mode      Mode             `yaml:"mode"`
	LogLevel  string           `yaml:"log_level"`
	Listeners []ListenerConfig `yaml:"listeners"`

	Channel   ChannelConfig   `yaml:"channel"`
	Pump      PumpConfig      `yaml:"pump"`
	Ingress   IngressConfig   `yaml:"ingress"`
	Multiplex MultiplexConfig `yaml:"multiplex"`
	QuestDB   QuestDBConfig   `yaml:"questdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Mode:     ModeMultiplexed,
		LogLevel: "info",
		Listeners: []ListenerConfig{
			{Name: "default", Address: "127.0.0.1:20000"},
		},

		Channel: ChannelConfig{
			Capacity:  16_000,
			Unbounded: false,
			GrowBy:    2,
		},
		Pump: PumpConfig{
			BatchSize:   512,
			Runners:     1,
			IdleBackoff: 10 * time.Microsecond,
			LogStats:    false,
		},
		Ingress: IngressConfig{
			MaxRecordSize: 64 * 1024,
			IdleTimeout:   time.Minute,
		},
		Multiplex: MultiplexConfig{
			MaxEvents:   128,
			PollTimeout: 100 * time.Millisecond,
		},
		QuestDB: QuestDBConfig{
			Enabled: false,
			Address: "localhost:9000",
			Table:   "records",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "acmenet",
		},
	}
}

// LoadConfig reads the YAML file at path on top of [NewDefaultConfig]
// and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("acmenet: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML data on top of [NewDefaultConfig] and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("acmenet: decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeBlocking, ModeMultiplexed:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	if len(c.Listeners) == 0 {
		errs = append(errs, errors.New("no listeners"))
	}

	names := make(map[string]struct{}, len(c.Listeners))
	for idx, ln := range c.Listeners {
		if ln.Name == "" {
			errs = append(errs, fmt.Errorf("listener %d: empty name", idx))
		}
		if ln.Address == "" {
			errs = append(errs, fmt.Errorf("listener %d: empty address", idx))
		}

		if _, ok := names[ln.Name]; ok {
			errs = append(errs, fmt.Errorf("listener %d: duplicate name %q", idx, ln.Name))
		}
		names[ln.Name] = struct{}{}
	}

	if !c.Channel.Unbounded && c.Channel.Capacity < 1 {
		errs = append(errs, errors.New("channel: bounded capacity must be positive"))
	}
	if c.Channel.Capacity < 0 {
		errs = append(errs, errors.New("channel: negative capacity"))
	}
	if c.Channel.Unbounded && c.Channel.GrowBy < 1 {
		errs = append(errs, errors.New("channel: grow_by must be positive"))
	}

	if c.Pump.Runners < 1 {
		errs = append(errs, errors.New("pump: at least one runner is required"))
	}

	if c.Multiplex.PollTimeout <= 0 {
		errs = append(errs, errors.New("multiplex: poll_timeout must be positive"))
	}
	if c.Multiplex.MaxEvents < 1 {
		errs = append(errs, errors.New("multiplex: max_events must be positive"))
	}

	if c.Ingress.MaxRecordSize < 1 {
		errs = append(errs, errors.New("ingress: max_record_size must be positive"))
	}

	if c.QuestDB.Enabled && (c.QuestDB.Address == "" || c.QuestDB.Table == "") {
		errs = append(errs, errors.New("questdb: address and table are required"))
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
