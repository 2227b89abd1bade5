package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/twi"
)

var _ twi.RegisterBus = &GenericBus{}
var _ twi.Prober = &GenericBus{}

// GenericBus runs register transactions on a host I2C bus (for example
// /dev/i2c-1) through periph.
type GenericBus struct {
	bus           i2c.BusCloser
	autoIncrement byte
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBus(bus), nil
}

// NewBus wraps an already opened periph bus.
func NewBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{
		bus:           bus,
		autoIncrement: twi.AutoIncrement,
	}
}

func (b *GenericBus) WriteRegister(ctx context.Context, address, register, value byte) error {
	err := b.tx(address, []byte{register, value}, nil)
	if err != nil {
		return fmt.Errorf("could not write register %#x: %w", register, err)
	}
	return nil
}

func (b *GenericBus) ReadRegister(ctx context.Context, address, register byte) (byte, error) {
	buf := make([]byte, 1)
	err := b.tx(address, []byte{register}, buf)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x: %w", register, err)
	}
	return buf[0], nil
}

func (b *GenericBus) ReadBurst(ctx context.Context, address, register byte, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: burst of %d bytes", twi.ErrInvalidLength, n)
	}
	buf := make([]byte, n)
	err := b.tx(address, []byte{register | b.autoIncrement}, buf)
	if err != nil {
		return nil, fmt.Errorf("could not read %d registers from %#x: %w", n, register, err)
	}
	return buf, nil
}

func (b *GenericBus) Probe(ctx context.Context, address byte) error {
	return b.tx(address, nil, nil)
}

// Release is a no-op: the kernel driver ends every transfer with a stop condition.
func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

func (b *GenericBus) tx(address byte, w, r []byte) error {
	err := twi.CheckAddress(address)
	if err != nil {
		return err
	}
	err = b.bus.Tx(uint16(address), w, r)
	if err != nil {
		return fmt.Errorf("i2c transfer with %#x failed: %w", address, err)
	}
	return nil
}
