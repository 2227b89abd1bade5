package twi

import (
	"context"
	"fmt"
)

// AutoIncrement is the register address flag most burst-capable slaves use to
// switch their register pointer into auto-increment mode.
const AutoIncrement byte = 0x80

var ErrBusBusy = fmt.Errorf("twi: bus engine is busy (command not completed)")

// RegisterBus is the view of a two-wire bus master used by device sessions.
// Implementations run one whole transaction per call.
type RegisterBus interface {
	WriteRegister(ctx context.Context, address, register, value byte) error
	ReadRegister(ctx context.Context, address, register byte) (byte, error)
	ReadBurst(ctx context.Context, address, register byte, n int) ([]byte, error)
	// Release forces a stop condition leaving the bus in a known state.
	Release(ctx context.Context) error
}

// Prober is implemented by buses able to check whether a slave acknowledges its address.
type Prober interface {
	Probe(ctx context.Context, address byte) error
}

// CheckAddress validates a 7-bit slave address.
func CheckAddress(address byte) error {
	if address > 0x7F {
		return fmt.Errorf("%w: %#x", ErrInvalidAddress, address)
	}
	return nil
}

// AddressByte returns the byte placed on the bus for the given 7-bit address and direction.
func AddressByte(address byte, read bool) byte {
	b := address << 1
	if read {
		b |= 0x01
	}
	return b
}
