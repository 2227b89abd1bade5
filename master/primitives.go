package master

import (
	"context"

	"github.com/mklimuk/twi"
)

// controller issues the elementary bus primitives. It is not safe for
// concurrent use; Bus serializes access.
type controller struct {
	regs Registers
}

// init configures bus speed and resets control state. The bus is left idle
// with acknowledge generation enabled.
func (c *controller) init(divisor byte) {
	c.regs.WriteStatus(0x00)
	c.regs.WriteControl(0x00)
	c.regs.WriteControl(ControlEnable | ControlInterrupt | ControlAck)
	c.regs.WriteBitRate(divisor)
}

// setBits rewrites the control word without clearing the interrupt flag.
func (c *controller) setBits(set, clear byte) {
	ctrl := c.regs.ReadControl() &^ ControlInterrupt
	c.regs.WriteControl(ctrl&^clear | set)
}

// issueStart requests a start or repeated start condition.
func (c *controller) issueStart() {
	c.setBits(ControlStart|ControlAck|ControlEnable, 0)
}

// endStart drops the start request so the next proceed transmits a byte.
func (c *controller) endStart() {
	c.setBits(0, ControlStart)
}

// issueStop requests a stop condition and executes it. Safe to call after any
// transaction attempt.
func (c *controller) issueStop() {
	c.setBits(ControlStop|ControlEnable, ControlStart)
	c.proceed()
}

// setAck selects whether the next received byte is acknowledged.
func (c *controller) setAck(enabled bool) {
	if enabled {
		c.setBits(ControlAck, 0)
		return
	}
	c.setBits(0, ControlAck)
}

// proceed clears the operation-complete flag, executing the configured primitive.
func (c *controller) proceed() {
	c.regs.WriteControl(c.regs.ReadControl() | ControlInterrupt)
}

// await spins until the controller raises the operation-complete flag. The
// wait is unbounded unless ctx carries a deadline or gets cancelled.
func (c *controller) await(ctx context.Context) error {
	done := ctx.Done()
	for c.regs.ReadControl()&ControlInterrupt == 0 {
		if done == nil {
			continue
		}
		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
	return nil
}

// status returns the masked controller status. Only valid between await and
// the next primitive.
func (c *controller) status() twi.Status {
	return twi.StatusOf(c.regs.ReadStatus())
}
