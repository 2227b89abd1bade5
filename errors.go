package twi

import (
	"errors"
	"fmt"
)

// Kind classifies the protocol step a transaction failed at.
type Kind int

const (
	KindStart Kind = iota + 1
	KindRepeatedStart
	KindSlaveWrite
	KindSlaveRead
	KindWrite
	KindRead
	KindAck
	KindNack
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start error"
	case KindRepeatedStart:
		return "repeated start error"
	case KindSlaveWrite:
		return "slave write error"
	case KindSlaveRead:
		return "slave read error"
	case KindWrite:
		return "write error"
	case KindRead:
		return "read error"
	case KindAck:
		return "ack error"
	case KindNack:
		return "nack error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrInvalidLength  = errors.New("twi: invalid transfer length")
	ErrInvalidAddress = errors.New("twi: invalid slave address")
	// ErrTimeout is wrapped by a TransactionError when a bounded wait expires
	// before the controller reports completion.
	ErrTimeout = errors.New("twi: timed out waiting for bus controller")
)

// Sentinels matching any TransactionError of the given kind with errors.Is.
var (
	ErrStart         = &TransactionError{Kind: KindStart}
	ErrRepeatedStart = &TransactionError{Kind: KindRepeatedStart}
	ErrSlaveWrite    = &TransactionError{Kind: KindSlaveWrite}
	ErrSlaveRead     = &TransactionError{Kind: KindSlaveRead}
	ErrWrite         = &TransactionError{Kind: KindWrite}
	ErrRead          = &TransactionError{Kind: KindRead}
	ErrAck           = &TransactionError{Kind: KindAck}
	ErrNack          = &TransactionError{Kind: KindNack}
)

// TransactionError reports the first failing step of a bus transaction.
// When Err is set the controller never reported completion and Got is meaningless.
type TransactionError struct {
	Kind     Kind
	Expected Status
	Got      Status
	Err      error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("twi: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("twi: %s: expected status 0x%02x (%s), got 0x%02x (%s)",
		e.Kind, byte(e.Expected), e.Expected, byte(e.Got), e.Got)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels such as ErrStart.
func (e *TransactionError) Is(target error) bool {
	t, ok := target.(*TransactionError)
	if !ok {
		return false
	}
	if t.Expected != 0 || t.Got != 0 || t.Err != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf extracts the failing step kind from err.
func KindOf(err error) (Kind, bool) {
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}
