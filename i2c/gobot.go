package i2c

import (
	"context"
	"fmt"
	"sync"

	gobotc "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/twi"
)

var _ twi.RegisterBus = &GobotBus{}

// GobotBus runs register transactions through a gobot adaptor. One generic
// driver is started per slave address on first use.
type GobotBus struct {
	mx            sync.Mutex
	adaptor       gobotc.Connector
	busNumber     int
	autoIncrement byte
	drivers       map[byte]*gobotc.GenericDriver
}

func NewGobotBus(adaptor gobotc.Connector, busNumber int) *GobotBus {
	return &GobotBus{
		adaptor:       adaptor,
		busNumber:     busNumber,
		autoIncrement: twi.AutoIncrement,
		drivers:       make(map[byte]*gobotc.GenericDriver),
	}
}

func (b *GobotBus) driver(address byte) (*gobotc.GenericDriver, error) {
	err := twi.CheckAddress(address)
	if err != nil {
		return nil, err
	}
	if d, ok := b.drivers[address]; ok {
		return d, nil
	}
	d := gobotc.NewGenericDriver(b.adaptor, fmt.Sprintf("twi-%#x", address), int(address), func(c gobotc.Config) {
		c.SetBus(b.busNumber)
	})
	err = d.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start driver for %#x: %w", address, err)
	}
	b.drivers[address] = d
	return d, nil
}

func (b *GobotBus) WriteRegister(ctx context.Context, address, register, value byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return err
	}
	err = d.WriteByteData(register, value)
	if err != nil {
		return fmt.Errorf("could not write register %#x on %#x: %w", register, address, err)
	}
	return nil
}

func (b *GobotBus) ReadRegister(ctx context.Context, address, register byte) (byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return 0, err
	}
	v, err := d.ReadByteData(register)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x on %#x: %w", register, address, err)
	}
	return v, nil
}

// ReadBurst uses a block read, which sets the register pointer and reads back
// in one combined transfer.
func (b *GobotBus) ReadBurst(ctx context.Context, address, register byte, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: burst of %d bytes", twi.ErrInvalidLength, n)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	err = d.ReadBlockData(register|b.autoIncrement, buf)
	if err != nil {
		return nil, fmt.Errorf("could not read %d registers from %#x on %#x: %w", n, register, address, err)
	}
	return buf, nil
}

// Release is a no-op: gobot connections end every transfer with a stop condition.
func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Halt stops every started driver.
func (b *GobotBus) Halt() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var firstErr error
	for address, d := range b.drivers {
		err := d.Halt()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not halt driver for %#x: %w", address, err)
		}
		delete(b.drivers, address)
	}
	return firstErr
}
