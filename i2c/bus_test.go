package i2c

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/twi"
)

func TestGenericBus_Registers(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x68, W: []byte{0x00}, R: []byte{0xE3}},
			{Addr: 0x68, W: []byte{0x2B, 0x30}},
			{Addr: 0x68, W: []byte{0xB3}, R: []byte{1, 2, 3, 4}},
			{Addr: 0x68},
		},
	}
	bus := NewBus(playback)
	ctx := context.Background()

	id, err := bus.ReadRegister(ctx, 0x68, 0x00)
	require.NoError(t, err)
	assert.Equal(t, byte(0xE3), id)

	require.NoError(t, bus.WriteRegister(ctx, 0x68, 0x2B, 0x30))

	data, err := bus.ReadBurst(ctx, 0x68, 0x33, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	require.NoError(t, bus.Probe(ctx, 0x68))
	require.NoError(t, bus.Release(ctx))
	assert.NoError(t, bus.Close())
}

func TestGenericBus_InvalidInput(t *testing.T) {
	bus := NewBus(&i2ctest.Playback{})
	ctx := context.Background()

	_, err := bus.ReadBurst(ctx, 0x68, 0x33, 0)
	assert.ErrorIs(t, err, twi.ErrInvalidLength)
	_, err = bus.ReadRegister(ctx, 0x90, 0x00)
	assert.ErrorIs(t, err, twi.ErrInvalidAddress)
	assert.NoError(t, bus.Close())
}

func TestGenericBus_TransferError(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x68, W: []byte{0x00}, R: []byte{0xE3}}},
		DontPanic: true,
	}
	bus := NewBus(playback)
	_, err := bus.ReadRegister(context.Background(), 0x69, 0x00)
	assert.Error(t, err)
}
