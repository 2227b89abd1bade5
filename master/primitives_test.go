package master

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/twi"
)

// recorder is a register file that only records writes and never completes a primitive.
type recorder struct {
	control byte
	status  byte
	data    byte
	writes  []string
}

func (r *recorder) ReadControl() byte { return r.control }
func (r *recorder) WriteControl(v byte) {
	r.control = v
	r.writes = append(r.writes, "control")
}
func (r *recorder) ReadStatus() byte { return r.status }
func (r *recorder) WriteStatus(v byte) {
	r.writes = append(r.writes, "status")
}
func (r *recorder) ReadData() byte { return r.data }
func (r *recorder) WriteData(v byte) {
	r.data = v
	r.writes = append(r.writes, "data")
}
func (r *recorder) WriteBitRate(v byte) {
	r.writes = append(r.writes, "bitrate")
}

func TestController_Init(t *testing.T) {
	regs := &recorder{}
	c := controller{regs: regs}
	c.init(0x0A)
	assert.Equal(t, []string{"status", "control", "control", "bitrate"}, regs.writes)
	assert.Equal(t, ControlEnable|ControlInterrupt|ControlAck, regs.control)
}

func TestController_ControlBits(t *testing.T) {
	regs := &recorder{control: ControlEnable | ControlInterrupt}
	c := controller{regs: regs}

	c.issueStart()
	assert.Equal(t, ControlEnable|ControlStart|ControlAck, regs.control, "start must not clear the flag")

	c.endStart()
	assert.Equal(t, ControlEnable|ControlAck, regs.control)

	c.setAck(false)
	assert.Equal(t, ControlEnable, regs.control)
	c.setAck(true)
	assert.Equal(t, ControlEnable|ControlAck, regs.control)

	c.proceed()
	assert.Equal(t, ControlEnable|ControlAck|ControlInterrupt, regs.control)

	regs.control = ControlEnable | ControlStart
	c.issueStop()
	assert.Equal(t, ControlEnable|ControlStop|ControlInterrupt, regs.control)
}

func TestController_StatusMasksPrescaler(t *testing.T) {
	regs := &recorder{status: 0x0B}
	c := controller{regs: regs}
	assert.Equal(t, twi.StatusStart, c.status())
}

func TestController_AwaitHonoursDeadline(t *testing.T) {
	c := controller{regs: &recorder{}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := c.await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestController_Transfer(t *testing.T) {
	regs := &recorder{}
	c := controller{regs: regs}
	c.writeByte(0xD0)
	assert.Equal(t, byte(0xD0), c.readByte())
}
