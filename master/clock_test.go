package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestClockDivisor(t *testing.T) {
	tests := []struct {
		name      string
		reference physic.Frequency
		speed     physic.Frequency
		expected  byte
	}{
		{"fast mode", DefaultReference, DefaultSpeed, 0x0A},
		{"standard mode", DefaultReference, 100 * physic.KiloHertz, 65},
		{"16MHz fast mode", 16 * physic.MegaHertz, 400 * physic.KiloHertz, 12},
		{"maximum speed", 16 * physic.MegaHertz, physic.MegaHertz, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			divisor, err := ClockDivisor(tt.reference, tt.speed)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, divisor)
		})
	}
}

func TestClockDivisor_Unreachable(t *testing.T) {
	_, err := ClockDivisor(DefaultReference, 2*physic.MegaHertz)
	assert.ErrorIs(t, err, ErrInvalidClock)
	_, err = ClockDivisor(DefaultReference, 10*physic.KiloHertz)
	assert.ErrorIs(t, err, ErrInvalidClock)
	_, err = ClockDivisor(DefaultReference, 0)
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestBusSpeed(t *testing.T) {
	assert.Equal(t, 16*physic.MegaHertz/36, BusSpeed(16*physic.MegaHertz, 10))
	assert.Equal(t, 409600*physic.Hertz, BusSpeed(DefaultReference, 0x0A))
}
