package i2c

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twi/master"
)

var _ i2c.Bus = &Conn{}

// Conn exposes a master.Bus as a periph i2c.Bus so periph device drivers can
// run on top of the transaction engine.
type Conn struct {
	bus       *master.Bus
	reference physic.Frequency
}

// NewConn wraps bus. reference is the controller clock used by SetSpeed.
func NewConn(bus *master.Bus, reference physic.Frequency) *Conn {
	return &Conn{bus: bus, reference: reference}
}

func (c *Conn) String() string {
	return c.bus.String()
}

func (c *Conn) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("i2c: 10-bit address %#x not supported", addr)
	}
	return c.bus.Tx(context.Background(), byte(addr), w, r)
}

func (c *Conn) SetSpeed(f physic.Frequency) error {
	divisor, err := master.ClockDivisor(c.reference, f)
	if err != nil {
		return err
	}
	c.bus.SetDivisor(divisor)
	return nil
}
