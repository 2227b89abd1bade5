package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi/cmd/twi/console"
	"github.com/mklimuk/twi/imu"
	"github.com/mklimuk/twi/master"
)

var sessionCmd = cli.Command{
	Name:  "session",
	Usage: "check the sensor identity, initialize it and poll its data registers",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "count",
			Usage: "stop after this many readings, 0 polls until interrupted",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "polling interval, overrides the configuration",
		},
		&cli.BoolFlag{
			Name:  "motion",
			Usage: "decode the motion block after every reading",
		},
		&cli.StringFlag{
			Name:  "metrics",
			Usage: "serve prometheus metrics on this address (e.g. :9100)",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		interval := cfg.Sensor.Interval
		if c.IsSet("interval") {
			interval = c.Duration("interval")
		}

		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt)
		defer stop()

		var metrics *master.Metrics
		if addr := c.String("metrics"); addr != "" {
			reg := prometheus.NewRegistry()
			metrics = master.NewMetrics(reg)
			srv := &http.Server{
				Addr:              addr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				err := srv.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", "error", err)
				}
			}()
			defer func() { _ = srv.Close() }()
			slog.Info("serving metrics", "address", addr)
		}

		bus, closeBus, err := openBus(cfg, metrics)
		if err != nil {
			return console.Exit(console.ExitBus, "could not open %s bus: %v", cfg.Bus.Backend, err)
		}
		defer func() {
			err := closeBus()
			if err != nil {
				console.Warnf("could not close bus: %v", err)
			}
		}()

		sensor := imu.New(bus,
			imu.WithAddress(cfg.Sensor.Address),
			imu.WithIdentity(cfg.Sensor.Identity),
			imu.WithInit(cfg.Sensor.Init.Register, cfg.Sensor.Init.Value),
			imu.WithData(cfg.Sensor.Data.Register, cfg.Sensor.DataLength),
			imu.WithRetries(cfg.Sensor.Retries),
			imu.WithRetryDelay(cfg.Sensor.RetryDelay),
		)
		err = sensor.Init(ctx)
		if err != nil {
			return busError(err)
		}
		console.PInfof(console.PictoPin, "sensor %s initialized", console.Hex(cfg.Sensor.Address))

		readings := 0
		count := c.Int("count")
		pollCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		err = sensor.Poll(pollCtx, interval, func(r imu.Reading) error {
			readings++
			console.Printf("%s %s\n", r.At.Format(time.TimeOnly), console.Bytes(r.Data))
			if c.Bool("motion") {
				m, err := sensor.ReadMotion(pollCtx)
				if err != nil {
					return err
				}
				console.Printf("  accel %v temp %d gyro %v\n", m.Accel, m.Temperature, m.Gyro)
			}
			if count > 0 && readings >= count {
				cancel()
			}
			return nil
		})
		if err != nil {
			return busError(err)
		}
		console.PInfof(console.PictoFinish, "%d reading(s)", readings)
		return nil
	},
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		raw, err := cfg.YAML()
		if err != nil {
			return err
		}
		console.Printf("%s", raw)
		return nil
	},
}
