package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twi/master"
)

// Version is injected at build time.
var Version = "latest"

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BackendSim     = "sim"
	BackendPeriph  = "periph"
	BackendMCP2221 = "mcp2221"
	BackendGobot   = "gobot"
)

type Config struct {
	Bus    Bus    `yaml:"bus"`
	Sensor Sensor `yaml:"sensor"`
}

type Bus struct {
	Backend string `yaml:"backend"`
	// Device is the host bus name for periph, the adapter index for mcp2221
	// and the bus number for gobot.
	Device    string        `yaml:"device"`
	Reference uint64        `yaml:"reference_hz"`
	Speed     uint64        `yaml:"speed_hz"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Sensor struct {
	Address    byte          `yaml:"address"`
	Identity   byte          `yaml:"identity"`
	Init       Register      `yaml:"init"`
	Data       Register      `yaml:"data"`
	DataLength int           `yaml:"data_length"`
	Interval   time.Duration `yaml:"interval"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type Register struct {
	Register byte `yaml:"register"`
	Value    byte `yaml:"value,omitempty"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Backend:   BackendSim,
			Device:    "",
			Reference: 14745600,
			Speed:     400000,
		},
		Sensor: Sensor{
			Address:    0x68,
			Identity:   0xE3,
			Init:       Register{Register: 0x2B, Value: 0x30},
			Data:       Register{Register: 0x33},
			DataLength: 4,
			Interval:   100 * time.Millisecond,
			RetryDelay: 10 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	err = yaml.Unmarshal(raw, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Bus.Backend {
	case BackendSim, BackendPeriph, BackendMCP2221, BackendGobot:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Bus.Backend)
	}
	if c.Sensor.Address > 0x7F {
		return fmt.Errorf("%w: sensor address %#x out of range", ErrInvalidConfig, c.Sensor.Address)
	}
	if c.Sensor.DataLength < 1 {
		return fmt.Errorf("%w: data length %d", ErrInvalidConfig, c.Sensor.DataLength)
	}
	_, err := master.ClockDivisor(c.Bus.ReferenceFrequency(), c.Bus.SpeedFrequency())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Sensor.Retries < 0 {
		return fmt.Errorf("%w: negative retries", ErrInvalidConfig)
	}
	return nil
}

func (b Bus) ReferenceFrequency() physic.Frequency {
	return physic.Frequency(b.Reference) * physic.Hertz
}

func (b Bus) SpeedFrequency() physic.Frequency {
	return physic.Frequency(b.Speed) * physic.Hertz
}

func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
