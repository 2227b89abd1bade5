package master

import (
	"log/slog"
	"time"

	"github.com/mklimuk/twi"
)

type Config struct {
	// Timeout bounds a whole transaction. Zero keeps the unbounded busy-wait.
	Timeout time.Duration
	// AutoIncrement is OR-ed into the register address of burst transfers.
	AutoIncrement byte
	Logger        *slog.Logger
	Metrics       *Metrics
	Name          string
}

type Option func(*Config)

// WithTimeout bounds every transaction. A wait that exceeds it fails with an
// error wrapping twi.ErrTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithAutoIncrement sets the register flag used by burst transfers; 0 disables it.
func WithAutoIncrement(flag byte) Option {
	return func(c *Config) {
		c.AutoIncrement = flag
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithName sets the bus name reported by String.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

func defaultConfig() Config {
	return Config{
		AutoIncrement: twi.AutoIncrement,
		Name:          "twi0",
	}
}
