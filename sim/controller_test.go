package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
)

const enable = master.ControlEnable | master.ControlInterrupt

func TestController_AddressingUnknownSlave(t *testing.T) {
	c := New(NewDevice(0x68))
	c.WriteControl(enable | master.ControlStart)
	require.Equal(t, byte(twi.StatusStart), c.ReadStatus())
	c.WriteData(twi.AddressByte(0x10, false))
	c.WriteControl(enable)
	assert.Equal(t, byte(twi.StatusSlaveWriteNack), c.ReadStatus())
	assert.NotZero(t, c.ReadControl()&master.ControlInterrupt)
}

func TestController_RepeatedStart(t *testing.T) {
	c := New(NewDevice(0x68))
	c.WriteControl(enable | master.ControlStart)
	c.WriteControl(enable | master.ControlStart)
	assert.Equal(t, byte(twi.StatusRepeatedStart), c.ReadStatus())
	c.WriteControl(enable | master.ControlStop)
	assert.True(t, c.Idle())
	assert.Equal(t, byte(twi.StatusIdle), c.ReadStatus())
	assert.Zero(t, c.ReadControl()&master.ControlInterrupt, "stop does not raise the flag")
}

func TestController_PrescalerBits(t *testing.T) {
	c := New()
	c.WriteStatus(0xFF)
	assert.Equal(t, byte(twi.StatusIdle)|0x03, c.ReadStatus())
}

func TestController_DisabledIgnoresPrimitives(t *testing.T) {
	c := New(NewDevice(0x68))
	c.WriteControl(master.ControlInterrupt | master.ControlStart)
	assert.Empty(t, c.Trace())
	assert.True(t, c.Idle())
}

func TestDevice_AutoIncrement(t *testing.T) {
	d := NewDevice(0x68, WithRegisters(0x10, 1, 2, 3))
	d.begin(false)
	assert.True(t, d.receive(0x10|twi.AutoIncrement))
	assert.Equal(t, byte(1), d.transmit())
	assert.Equal(t, byte(2), d.transmit())
	assert.Equal(t, byte(3), d.transmit())

	d.begin(false)
	assert.True(t, d.receive(0x10))
	assert.Equal(t, byte(1), d.transmit())
	assert.Equal(t, byte(1), d.transmit())
}

func TestDevice_Arming(t *testing.T) {
	d := NewDevice(0x68, WithArming(0x2B, 0x30))
	assert.False(t, d.Armed())
	d.begin(false)
	assert.False(t, d.receive(0x33|twi.AutoIncrement), "burst request must be refused before arming")

	d.begin(false)
	assert.True(t, d.receive(0x2B))
	assert.True(t, d.receive(0x31))
	assert.False(t, d.Armed())

	d.begin(false)
	assert.True(t, d.receive(0x2B))
	assert.True(t, d.receive(0x30))
	assert.True(t, d.Armed())
}

func TestEvent_String(t *testing.T) {
	ev := Event{Op: OpReceive, Data: 0x0A, Ack: true, Status: twi.StatusReadAck}
	assert.Equal(t, "receive 0x0a ack=true -> READ-ACK-OK", ev.String())
	assert.Equal(t, "stop -> IDLE", Event{Op: OpStop, Status: twi.StatusIdle}.String())
}
