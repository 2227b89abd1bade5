package adapter

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/twi"
)

// bridge emulates the adapter HID reports in front of one register file.
type bridge struct {
	address  byte
	regs     [256]byte
	pointer  byte
	pending  []byte
	busy     bool
	response []byte
	opened   int
	closed   int
	requests [][]byte
}

func (b *bridge) open() (io.ReadWriteCloser, error) {
	b.opened++
	return b, nil
}

func (b *bridge) Close() error {
	b.closed++
	return nil
}

func (b *bridge) Write(p []byte) (int, error) {
	b.requests = append(b.requests, append([]byte(nil), p...))
	b.response = make([]byte, 64)
	b.response[0] = p[0]
	switch p[0] {
	case cmdWriteData, cmdWriteNoStop:
		if b.busy || p[3]>>1 != b.address {
			b.response[1] = 0x01
			break
		}
		n := binary.LittleEndian.Uint16(p[1:3])
		data := p[4 : 4+n]
		auto := data[0]&twi.AutoIncrement != 0
		b.pointer = data[0] &^ twi.AutoIncrement
		for _, v := range data[1:] {
			b.regs[b.pointer] = v
			if auto {
				b.pointer++
			}
		}
	case cmdReadData, cmdReadRepStart:
		n := int(binary.LittleEndian.Uint16(p[1:3]))
		b.pending = make([]byte, n)
		for i := range b.pending {
			b.pending[i] = b.regs[b.pointer+byte(i)]
		}
	case cmdGetData:
		b.response[3] = byte(len(b.pending))
		copy(b.response[4:], b.pending)
	case cmdStatus:
		b.response[14] = 0x1D
		b.response[16] = b.address << 1
		if p[2] == cancelTransfer {
			b.busy = false
		}
	}
	return len(p), nil
}

func (b *bridge) Read(p []byte) (int, error) {
	return copy(p, b.response), nil
}

func newBridge() (*bridge, *MCP2221) {
	b := &bridge{address: 0x68}
	return b, NewMCP2221(WithOpener(b.open), WithResponseWait(0))
}

func TestMCP2221_Registers(t *testing.T) {
	b, d := newBridge()
	b.regs[0x00] = 0xE3
	copy(b.regs[0x33:], []byte{1, 2, 3, 4})
	ctx := context.Background()

	id, err := d.ReadRegister(ctx, 0x68, 0x00)
	require.NoError(t, err)
	assert.Equal(t, byte(0xE3), id)

	require.NoError(t, d.WriteRegister(ctx, 0x68, 0x2B, 0x30))
	assert.Equal(t, byte(0x30), b.regs[0x2B])

	data, err := d.ReadBurst(ctx, 0x68, 0x33, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	pointer, read := b.requests[len(b.requests)-3], b.requests[len(b.requests)-2]
	assert.Equal(t, byte(cmdWriteNoStop), pointer[0])
	assert.Equal(t, byte(0x33|twi.AutoIncrement), pointer[4])
	assert.Equal(t, byte(cmdReadRepStart), read[0])
	assert.Equal(t, b.opened, b.closed)
}

func TestMCP2221_Busy(t *testing.T) {
	b, d := newBridge()
	b.busy = true
	ctx := context.Background()

	err := d.WriteRegister(ctx, 0x68, 0x2B, 0x30)
	assert.ErrorIs(t, err, twi.ErrBusBusy)

	require.NoError(t, d.Release(ctx))
	assert.NoError(t, d.WriteRegister(ctx, 0x68, 0x2B, 0x30))
}

func TestMCP2221_InvalidInput(t *testing.T) {
	b, d := newBridge()
	ctx := context.Background()

	_, err := d.ReadBurst(ctx, 0x68, 0x33, 0)
	assert.ErrorIs(t, err, twi.ErrInvalidLength)
	_, err = d.ReadBurst(ctx, 0x68, 0x33, MaxRead+1)
	assert.ErrorIs(t, err, twi.ErrInvalidLength)
	err = d.WriteRegister(ctx, 0x80, 0x00, 0x00)
	assert.ErrorIs(t, err, twi.ErrInvalidAddress)
	assert.Zero(t, b.opened)
}

func TestMCP2221_Status(t *testing.T) {
	_, d := newBridge()
	status, err := d.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0x1D, status.I2CSpeedDivider)
	assert.Equal(t, "d000", status.CurrentAddress)
}

func TestMCP2221_OpenFailure(t *testing.T) {
	d := NewMCP2221(WithOpener(func() (io.ReadWriteCloser, error) {
		return nil, ErrDeviceNotFound
	}))
	_, err := d.ReadRegister(context.Background(), 0x68, 0x00)
	assert.True(t, errors.Is(err, ErrDeviceNotFound))
}

func TestMCP2221_ConcurrentRegisterReads(t *testing.T) {
	b := &bridge{address: 0x68}
	d := NewMCP2221(WithOpener(b.open), WithResponseWait(time.Millisecond))
	for g := 0; g < 8; g++ {
		b.regs[0x10+g] = byte(0xA0 + g)
	}
	ctx := context.Background()

	var wrong atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				v, err := d.ReadRegister(ctx, 0x68, byte(0x10+g))
				if err != nil || v != byte(0xA0+g) {
					wrong.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.Zero(t, wrong.Load(), "register pointer moved between pointer write and read")
}
