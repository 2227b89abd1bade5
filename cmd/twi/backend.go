package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/adapter"
	"github.com/mklimuk/twi/busctx"
	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/i2c"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/pkg/config"
	"github.com/mklimuk/twi/sim"
)

// loadConfig reads the configuration file and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, console.Exit(console.ExitUsage, "%v", err)
	}
	if c.IsSet("backend") {
		cfg.Bus.Backend = c.String("backend")
	}
	if c.IsSet("device") {
		cfg.Bus.Device = c.String("device")
	}
	if c.IsSet("timeout") {
		cfg.Bus.Timeout = c.Duration("timeout")
	}
	err = cfg.Validate()
	if err != nil {
		return cfg, console.Exit(console.ExitUsage, "%v", err)
	}
	return cfg, nil
}

func commandContext(c *cli.Context) context.Context {
	return busctx.SetTrace(c.Context, c.Bool("verbose"))
}

// openBus builds the configured backend. metrics may be nil and only applies
// to buses driven by the transaction engine.
func openBus(cfg config.Config, metrics *master.Metrics) (twi.RegisterBus, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Bus.Backend {
	case config.BackendSim:
		reference := cfg.Bus.ReferenceFrequency()
		divisor, err := master.ClockDivisor(reference, cfg.Bus.SpeedFrequency())
		if err != nil {
			return nil, nil, err
		}
		bus := master.Init(sim.New(demoDevice(cfg)), divisor,
			master.WithName("sim"),
			master.WithTimeout(cfg.Bus.Timeout),
			master.WithMetrics(metrics),
			master.WithLogger(slog.Default()),
		)
		slog.Debug("simulated bus ready", "divisor", divisor, "speed", master.BusSpeed(reference, divisor).String())
		return bus, noop, nil
	case config.BackendPeriph:
		dev := cfg.Bus.Device
		bus, err := i2c.NewGenericBus(dev)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.BackendMCP2221:
		var opts []adapter.MCP2221Option
		if cfg.Bus.Device != "" {
			index, err := strconv.Atoi(cfg.Bus.Device)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid adapter index %q: %w", cfg.Bus.Device, err)
			}
			opts = append(opts, adapter.WithDeviceIndex(index))
		}
		return adapter.NewMCP2221(opts...), noop, nil
	case config.BackendGobot:
		busNumber := 0
		if cfg.Bus.Device != "" {
			n, err := strconv.Atoi(cfg.Bus.Device)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid bus number %q: %w", cfg.Bus.Device, err)
			}
			busNumber = n
		}
		npi := nanopi.NewNeoAdaptor()
		err := npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, busNumber)
		return bus, func() error {
			return errors.Join(bus.Halt(), npi.I2cBusAdaptor.Finalize())
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Bus.Backend)
}

// demoDevice is the simulated sensor answering on the configured address.
func demoDevice(cfg config.Config) *sim.Device {
	return sim.NewDevice(cfg.Sensor.Address,
		sim.WithRegisters(0x00, cfg.Sensor.Identity),
		sim.WithRegisters(cfg.Sensor.Data.Register, 0x01, 0x02, 0x03, 0x04),
		sim.WithRegisters(0x3B, 0x00, 0x10, 0xFF, 0xF0, 0x40, 0x00, 0x0B, 0xB8, 0x00, 0x01, 0xFF, 0xFF, 0x00, 0x00),
		sim.WithArming(cfg.Sensor.Init.Register, cfg.Sensor.Init.Value),
	)
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, console.Exit(console.ExitUsage, "invalid byte value %q", s)
	}
	return byte(v), nil
}
