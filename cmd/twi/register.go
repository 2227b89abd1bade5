package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/cmd/twi/console"
)

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read a single register",
	ArgsUsage: "ADDR REG",
	Action: func(c *cli.Context) error {
		args, err := byteArgs(c, 2)
		if err != nil {
			return err
		}
		return withBus(c, func(bus twi.RegisterBus) error {
			v, err := bus.ReadRegister(commandContext(c), args[0], args[1])
			if err != nil {
				return busError(err)
			}
			console.Printf("%s[%s] = %s\n", console.Hex(args[0]), console.Hex(args[1]), console.Hex(v))
			return nil
		})
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write a single register",
	ArgsUsage: "ADDR REG VALUE",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(c *cli.Context) error {
		args, err := byteArgs(c, 3)
		if err != nil {
			return err
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %s into register %s of %s?", console.Hex(args[2]), console.Hex(args[1]), console.Hex(args[0])))
			if err != nil {
				return err
			}
			if !ok {
				return console.Exit(console.ExitUnconfirmed, "write cancelled")
			}
		}
		return withBus(c, func(bus twi.RegisterBus) error {
			err := bus.WriteRegister(commandContext(c), args[0], args[1], args[2])
			if err != nil {
				return busError(err)
			}
			console.PInfof(console.PictoPin, "%s[%s] <- %s", console.Hex(args[0]), console.Hex(args[1]), console.Hex(args[2]))
			return nil
		})
	},
}

var burstCmd = cli.Command{
	Name:      "burst",
	Usage:     "read consecutive registers in one transaction",
	ArgsUsage: "ADDR REG N",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "arm",
			Usage: "write the configured init register before reading",
		},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(console.ExitUsage, "expected ADDR REG N")
		}
		args, err := byteArgs(c, 2)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(c.Args().Get(2))
		if err != nil {
			return console.Exit(console.ExitUsage, "invalid length %q", c.Args().Get(2))
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return withBus(c, func(bus twi.RegisterBus) error {
			ctx := commandContext(c)
			if c.Bool("arm") {
				err := bus.WriteRegister(ctx, args[0], cfg.Sensor.Init.Register, cfg.Sensor.Init.Value)
				if err != nil {
					return busError(err)
				}
			}
			data, err := bus.ReadBurst(ctx, args[0], args[1], n)
			if err != nil {
				return busError(err)
			}
			console.Printf("%s[%s..] = %s\n", console.Hex(args[0]), console.Hex(args[1]), console.Bytes(data))
			return nil
		})
	},
}

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "list addresses acknowledged on the bus",
	Action: func(c *cli.Context) error {
		return withBus(c, func(bus twi.RegisterBus) error {
			ctx := commandContext(c)
			found := 0
			// 0x00-0x07 and 0x78-0x7F are reserved
			for address := byte(0x08); address < 0x78; address++ {
				err := probe(c, bus, address)
				if err != nil {
					if ctx.Err() != nil {
						return busError(err)
					}
					slog.Debug("no answer", "address", fmt.Sprintf("%#x", address), "error", err)
					// leave the bus idle for the next address
					_ = bus.Release(ctx)
					continue
				}
				found++
				console.PInfof(console.PictoMagnifier, "device at %s", console.Hex(address))
			}
			console.PInfof(console.PictoFinish, "%d device(s) found", found)
			return nil
		})
	},
}

func probe(c *cli.Context, bus twi.RegisterBus, address byte) error {
	ctx := commandContext(c)
	if p, ok := bus.(twi.Prober); ok {
		return p.Probe(ctx, address)
	}
	_, err := bus.ReadRegister(ctx, address, 0x00)
	return err
}

func withBus(c *cli.Context, fn func(bus twi.RegisterBus) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	bus, closeBus, err := openBus(cfg, nil)
	if err != nil {
		return console.Exit(console.ExitBus, "could not open %s bus: %v", cfg.Bus.Backend, err)
	}
	defer func() {
		err := closeBus()
		if err != nil {
			console.Warnf("could not close bus: %v", err)
		}
	}()
	return fn(bus)
}

func byteArgs(c *cli.Context, n int) ([]byte, error) {
	if c.NArg() < n {
		return nil, console.Exit(console.ExitUsage, "expected %d arguments, got %d", n, c.NArg())
	}
	out := make([]byte, n)
	for i := range out {
		v, err := parseByte(c.Args().Get(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// busError maps transaction failures onto the bus exit code.
func busError(err error) error {
	if kind, ok := twi.KindOf(err); ok {
		slog.Debug("transaction failed", "kind", kind.String())
	}
	if errors.Is(err, twi.ErrInvalidAddress) || errors.Is(err, twi.ErrInvalidLength) {
		return console.Exit(console.ExitUsage, "%v", err)
	}
	return console.Exit(console.ExitBus, "%v", err)
}
