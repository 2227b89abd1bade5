// Package imu drives the inertial sensor found at 0x68: it verifies the
// device identity, arms the device and polls its telemetry registers.
//
// Any bus failure or unexpected identity is fatal by default: the methods
// return the error and the caller halts. WithRetries enables a bounded retry
// policy that releases the bus before every new attempt.
package imu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mklimuk/twi"
)

const DefaultAddress = 0x68

const (
	regWhoAmI     = 0x00
	regInit       = 0x2B
	regData       = 0x33
	regAccelXHigh = 0x3B
)

const (
	deviceID     = 0xE3
	initValue    = 0x30
	dataLength   = 4
	motionLength = 14
)

var ErrUnexpectedIdentity = errors.New("imu: unexpected device identity")

type Config struct {
	Address      byte
	Identity     byte
	InitRegister byte
	InitValue    byte
	DataRegister byte
	DataLength   int
	// Retries is the number of additional attempts after a failed transaction.
	Retries    int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

type ConfigOption func(*Config)

func WithAddress(address byte) ConfigOption {
	return func(c *Config) {
		c.Address = address
	}
}

// WithIdentity sets the value expected in the WHO_AM_I register.
func WithIdentity(id byte) ConfigOption {
	return func(c *Config) {
		c.Identity = id
	}
}

// WithInit sets the register write arming the device.
func WithInit(register, value byte) ConfigOption {
	return func(c *Config) {
		c.InitRegister = register
		c.InitValue = value
	}
}

// WithData sets the first register and the length of the polled burst.
func WithData(register byte, n int) ConfigOption {
	return func(c *Config) {
		c.DataRegister = register
		c.DataLength = n
	}
}

func WithRetries(retries int) ConfigOption {
	return func(c *Config) {
		c.Retries = retries
	}
}

func WithRetryDelay(delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Sensor is a session with one device on a register bus.
type Sensor struct {
	transport twi.RegisterBus
	config    Config
	log       *slog.Logger
}

// Motion holds one sample of the acceleration, temperature and angular-rate channels.
type Motion struct {
	Accel       [3]int16
	Temperature int16
	Gyro        [3]int16
}

// Reading is one polled burst of the data registers.
type Reading struct {
	At   time.Time
	Data []byte
}

func New(bus twi.RegisterBus, opts ...ConfigOption) *Sensor {
	config := Config{
		Address:      DefaultAddress,
		Identity:     deviceID,
		InitRegister: regInit,
		InitValue:    initValue,
		DataRegister: regData,
		DataLength:   dataLength,
		RetryDelay:   10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{
		transport: bus,
		config:    config,
		log:       logger.With("device", fmt.Sprintf("%#x", config.Address)),
	}
}

func (s *Sensor) Config() Config {
	return s.config
}

// Identity reads the WHO_AM_I register.
func (s *Sensor) Identity(ctx context.Context) (byte, error) {
	var id byte
	err := s.retry(ctx, "read identity", func() error {
		var err error
		id, err = s.transport.ReadRegister(ctx, s.config.Address, regWhoAmI)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("imu: could not read identity: %w", err)
	}
	return id, nil
}

// CheckIdentity fails with ErrUnexpectedIdentity unless the device reports the configured identity.
func (s *Sensor) CheckIdentity(ctx context.Context) error {
	id, err := s.Identity(ctx)
	if err != nil {
		return err
	}
	if id != s.config.Identity {
		return fmt.Errorf("%w: expected %#x, got %#x", ErrUnexpectedIdentity, s.config.Identity, id)
	}
	return nil
}

// Init verifies the device identity and arms the device for burst reads.
func (s *Sensor) Init(ctx context.Context) error {
	err := s.CheckIdentity(ctx)
	if err != nil {
		return err
	}
	err = s.retry(ctx, "init", func() error {
		return s.transport.WriteRegister(ctx, s.config.Address, s.config.InitRegister, s.config.InitValue)
	})
	if err != nil {
		return fmt.Errorf("imu: could not initialize device: %w", err)
	}
	s.log.DebugContext(ctx, "device initialized")
	return nil
}

// ReadData reads the configured data registers in one burst.
func (s *Sensor) ReadData(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.retry(ctx, "read data", func() error {
		var err error
		data, err = s.transport.ReadBurst(ctx, s.config.Address, s.config.DataRegister, s.config.DataLength)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("imu: could not read data registers: %w", err)
	}
	return data, nil
}

// ReadMotion reads the acceleration, temperature and angular-rate registers.
func (s *Sensor) ReadMotion(ctx context.Context) (Motion, error) {
	var raw []byte
	err := s.retry(ctx, "read motion", func() error {
		var err error
		raw, err = s.transport.ReadBurst(ctx, s.config.Address, regAccelXHigh, motionLength)
		return err
	})
	if err != nil {
		return Motion{}, fmt.Errorf("imu: could not read motion registers: %w", err)
	}
	return convertMotion(raw), nil
}

func convertMotion(raw []byte) Motion {
	word := func(i int) int16 {
		return int16(binary.BigEndian.Uint16(raw[2*i : 2*i+2]))
	}
	return Motion{
		Accel:       [3]int16{word(0), word(1), word(2)},
		Temperature: word(3),
		Gyro:        [3]int16{word(4), word(5), word(6)},
	}
}

// Poll reads the data registers every interval and hands each reading to
// handle until ctx is done. With a zero interval the registers are read back
// to back. Poll returns nil when ctx is done and the first fatal error otherwise.
func (s *Sensor) Poll(ctx context.Context, interval time.Duration, handle func(Reading) error) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		data, err := s.ReadData(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = handle(Reading{At: time.Now(), Data: data})
		if err != nil {
			return err
		}
		if tick == nil {
			continue
		}
		select {
		case <-tick:
		case <-ctx.Done():
			return nil
		}
	}
}

// retry runs fn until it succeeds, the retry budget is spent or the error
// cannot be cured by another attempt. The bus is released before every retry.
func (s *Sensor) retry(ctx context.Context, what string, fn func() error) error {
	attempt := 0
	op := func() error {
		if attempt > 0 {
			err := s.transport.Release(ctx)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("could not release bus: %w", err))
			}
		}
		attempt++
		err := fn()
		if err != nil && !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RetryDelay), uint64(max(s.config.Retries, 0))),
		ctx,
	)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		s.log.WarnContext(ctx, "bus transaction failed, retrying", "op", what, "attempt", attempt, "wait", wait, "error", err)
	})
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, twi.ErrInvalidLength) && !errors.Is(err, twi.ErrInvalidAddress)
}
