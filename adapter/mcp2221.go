package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/busctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

// MaxRead is the largest transfer the adapter returns in one report.
const MaxRead = 60

const (
	cmdStatus       = 0x10
	cmdWriteData    = 0x90
	cmdWriteNoStop  = 0x94
	cmdReadData     = 0x91
	cmdReadRepStart = 0x93
	cmdGetData      = 0x40
	cancelTransfer  = 0x10
)

var ErrCommandFailed = errors.New("command failed")
var ErrDeviceNotFound = errors.New("MCP2221 device not found")

var _ twi.RegisterBus = &MCP2221{}

// Opener returns a connection to the adapter HID interface.
type Opener func() (io.ReadWriteCloser, error)

// MCP2221 drives the bus through a Microchip MCP2221 USB bridge. The device
// is opened for every report and closed right after.
type MCP2221 struct {
	mx            sync.Mutex
	open          Opener
	request       []byte
	response      []byte
	responseWait  time.Duration
	autoIncrement byte
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Option func(*MCP2221)

// WithOpener replaces USB enumeration with open.
func WithOpener(open Opener) MCP2221Option {
	return func(d *MCP2221) {
		d.open = open
	}
}

// WithResponseWait sets the pause between a request and its response report.
func WithResponseWait(wait time.Duration) MCP2221Option {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

// WithDeviceIndex picks the adapter among several connected ones.
func WithDeviceIndex(index int) MCP2221Option {
	return func(d *MCP2221) {
		d.open = enumerate(index)
	}
}

func NewMCP2221(opts ...MCP2221Option) *MCP2221 {
	d := &MCP2221{
		open:          enumerate(-1),
		request:       make([]byte, 64),
		response:      make([]byte, 64),
		responseWait:  50 * time.Millisecond,
		autoIncrement: twi.AutoIncrement,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func enumerate(index int) Opener {
	return func() (io.ReadWriteCloser, error) {
		devs := hid.Enumerate(VendorID, ProductID)
		if len(devs) == 0 {
			return nil, ErrDeviceNotFound
		}
		if index < 0 {
			if len(devs) > 1 {
				return nil, fmt.Errorf("ambiguous device identification: %d adapters found", len(devs))
			}
			index = 0
		}
		if index >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", index)
		}
		dev, err := devs[index].Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
}

func (d *MCP2221) WriteRegister(ctx context.Context, address, register, value byte) error {
	return d.WriteToAddr(ctx, address, []byte{register, value})
}

func (d *MCP2221) ReadRegister(ctx context.Context, address, register byte) (byte, error) {
	buf := make([]byte, 1)
	err := d.readRegisters(ctx, address, register, buf)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *MCP2221) ReadBurst(ctx context.Context, address, register byte, n int) ([]byte, error) {
	if n < 1 || n > MaxRead {
		return nil, fmt.Errorf("%w: burst of %d bytes", twi.ErrInvalidLength, n)
	}
	buf := make([]byte, n)
	err := d.readRegisters(ctx, address, register|d.autoIncrement, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// readRegisters sets the register pointer without a stop and reads back with
// a repeated start, holding the adapter for the whole transaction.
func (d *MCP2221) readRegisters(ctx context.Context, address, register byte, buf []byte) error {
	err := twi.CheckAddress(address)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	err = d.write(ctx, cmdWriteNoStop, address, []byte{register})
	if err != nil {
		return err
	}
	return d.read(ctx, cmdReadRepStart, address, buf)
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := twi.CheckAddress(address)
	if err != nil {
		return err
	}
	if len(buffer) > MaxRead {
		return fmt.Errorf("%w: write of %d bytes", twi.ErrInvalidLength, len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.write(ctx, cmdWriteData, address, buffer)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := twi.CheckAddress(address)
	if err != nil {
		return err
	}
	if len(buffer) < 1 || len(buffer) > MaxRead {
		return fmt.Errorf("%w: read of %d bytes", twi.ErrInvalidLength, len(buffer))
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.read(ctx, cmdReadData, address, buffer)
}

// write sends one write report. The caller holds d.mx.
func (d *MCP2221) write(ctx context.Context, cmd, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		slog.DebugContext(ctx, "adapter busy", "address", fmt.Sprintf("%#x", address))
		return twi.ErrBusBusy
	}
	return nil
}

// read requests len(buffer) bytes and fetches them from the adapter. The caller holds d.mx.
func (d *MCP2221) read(ctx context.Context, cmd, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	if d.response[1] == 0x01 {
		return twi.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("%w: error reading slave data from the I2C engine", ErrCommandFailed)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10: requested I2C transfer length
		11-12: already transferred number of bytes
		13: internal I2C data buffer counter
		14: current I2C communication speed divider value
		15: current I2C timeout value
		16-17: I2C address being used
		25: read pending
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		ReadPending:            int(buffer[25]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
	}
}

// Release cancels the current adapter transfer, which frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = cancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open()
	if err != nil {
		return err
	}
	defer func() {
		err := dev.Close()
		if err != nil {
			slog.WarnContext(ctx, "could not close adapter", "error", err)
		}
	}()
	trace := busctx.IsTrace(ctx)
	if trace {
		slog.DebugContext(ctx, "sending message to adapter", "request", hex.Dump(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != len(d.request) {
		return fmt.Errorf("short write: %d", n)
	}
	if d.responseWait > 0 {
		timer := time.NewTimer(d.responseWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", twi.ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != len(d.response) {
		return fmt.Errorf("short read: %d", n)
	}
	if trace {
		slog.DebugContext(ctx, "read message from adapter", "response", hex.Dump(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
