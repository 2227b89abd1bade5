package i2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
	"github.com/mklimuk/twi/sim"
)

func TestConn_PeriphDevice(t *testing.T) {
	dev := sim.NewDevice(0x68, sim.WithRegisters(0x00, 0xE3), sim.WithRegisters(0x33, 9, 8, 7))
	hw := sim.New(dev)
	conn := NewConn(master.Init(hw, 0x0A, master.WithName("sim0")), master.DefaultReference)
	assert.Equal(t, "sim0", conn.String())

	d := &i2c.Dev{Bus: conn, Addr: 0x68}
	r := make([]byte, 1)
	require.NoError(t, d.Tx([]byte{0x00}, r))
	assert.Equal(t, byte(0xE3), r[0])

	burst := make([]byte, 3)
	require.NoError(t, d.Tx([]byte{0x33 | twi.AutoIncrement}, burst))
	assert.Equal(t, []byte{9, 8, 7}, burst)

	_, err := d.Write([]byte{0x10, 0x55})
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), dev.Register(0x10))
	assert.True(t, hw.Idle())
}

func TestConn_SetSpeed(t *testing.T) {
	hw := sim.New()
	conn := NewConn(master.Init(hw, 0x0A), master.DefaultReference)
	require.NoError(t, conn.SetSpeed(100*physic.KiloHertz))
	assert.Equal(t, byte(65), hw.BitRate())
	assert.ErrorIs(t, conn.SetSpeed(5*physic.MegaHertz), master.ErrInvalidClock)
}

func TestConn_TenBitAddress(t *testing.T) {
	conn := NewConn(master.Init(sim.New(), 0x0A), master.DefaultReference)
	assert.Error(t, conn.Tx(0x3FF, []byte{0x00}, nil))
}
