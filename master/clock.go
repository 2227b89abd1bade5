package master

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// DefaultReference is the 14.7456 MHz crystal clocking the controller.
const DefaultReference = 14745600 * physic.Hertz

// DefaultSpeed is the fast-mode bus speed.
const DefaultSpeed = 400 * physic.KiloHertz

var ErrInvalidClock = errors.New("twi: bus speed not reachable with reference clock")

// ClockDivisor computes the bit-rate register value producing speed from the
// reference clock with the prescaler at 1: speed = reference / (16 + 2*divisor).
func ClockDivisor(reference, speed physic.Frequency) (byte, error) {
	if speed <= 0 || reference <= 0 {
		return 0, fmt.Errorf("%w: reference %s, speed %s", ErrInvalidClock, reference, speed)
	}
	ratio := int64(reference / speed)
	divisor := (ratio - 16) / 2
	if ratio < 16 || divisor > 0xFF {
		return 0, fmt.Errorf("%w: reference %s, speed %s", ErrInvalidClock, reference, speed)
	}
	return byte(divisor), nil
}

// BusSpeed returns the bus speed produced by divisor.
func BusSpeed(reference physic.Frequency, divisor byte) physic.Frequency {
	return reference / physic.Frequency(16+2*int64(divisor))
}
