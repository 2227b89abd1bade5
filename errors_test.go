package twi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionError_Is(t *testing.T) {
	sentinels := map[Kind]error{
		KindStart:         ErrStart,
		KindRepeatedStart: ErrRepeatedStart,
		KindSlaveWrite:    ErrSlaveWrite,
		KindSlaveRead:     ErrSlaveRead,
		KindWrite:         ErrWrite,
		KindRead:          ErrRead,
		KindAck:           ErrAck,
		KindNack:          ErrNack,
	}
	for kind, sentinel := range sentinels {
		t.Run(kind.String(), func(t *testing.T) {
			err := fmt.Errorf("imu: could not read: %w", &TransactionError{Kind: kind, Expected: StatusStart, Got: StatusBusError})
			assert.ErrorIs(t, err, sentinel)
			for other, s := range sentinels {
				if other != kind {
					assert.NotErrorIs(t, err, s)
				}
			}
			got, ok := KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, kind, got)
		})
	}
}

func TestTransactionError_Message(t *testing.T) {
	err := &TransactionError{Kind: KindSlaveRead, Expected: StatusSlaveReadAck, Got: StatusSlaveReadNack}
	assert.Equal(t, "twi: slave read error: expected status 0x40 (SLAVE-READ-ACK), got 0x48 (SLAVE-READ-NACK)", err.Error())

	err = &TransactionError{Kind: KindStart, Expected: StatusStart, Err: fmt.Errorf("%w: %w", ErrTimeout, context.DeadlineExceeded)}
	assert.Equal(t, "twi: start error: twi: timed out waiting for bus controller: context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKindOf_ForeignError(t *testing.T) {
	_, ok := KindOf(errors.New("boom"))
	assert.False(t, ok)
	_, ok = KindOf(ErrInvalidLength)
	assert.False(t, ok)
}

func TestCheckAddress(t *testing.T) {
	assert.NoError(t, CheckAddress(0x00))
	assert.NoError(t, CheckAddress(0x7F))
	assert.ErrorIs(t, CheckAddress(0x80), ErrInvalidAddress)
}

func TestAddressByte(t *testing.T) {
	assert.Equal(t, byte(0xD0), AddressByte(0x68, false))
	assert.Equal(t, byte(0xD1), AddressByte(0x68, true))
}
