package master

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/busctx"
)

var _ twi.RegisterBus = &Bus{}
var _ twi.Prober = &Bus{}

// Bus owns one physical bus. All transactions hold the bus lock from the
// start condition to the stop condition (or to the first failing step).
type Bus struct {
	mx     sync.Mutex
	ctl    controller
	config Config
	log    *slog.Logger
}

// Init configures the controller with the given bit-rate divisor and returns
// the handle used for every transaction. It must run once before any transaction.
func Init(regs Registers, divisor byte, opts ...Option) *Bus {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		ctl:    controller{regs: regs},
		config: config,
		log:    logger.With("bus", config.Name),
	}
	b.ctl.init(divisor)
	return b
}

func (b *Bus) String() string {
	return b.config.Name
}

// SetDivisor changes the bus speed between transactions.
func (b *Bus) SetDivisor(divisor byte) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.ctl.regs.WriteBitRate(divisor)
}

// WriteRegister writes one byte into a slave register.
func (b *Bus) WriteRegister(ctx context.Context, address, register, value byte) error {
	return b.transact(ctx, "write", transfer{
		address: address,
		w:       []byte{register, value},
	})
}

// ReadRegister reads one byte from a slave register. The byte is never acknowledged.
func (b *Bus) ReadRegister(ctx context.Context, address, register byte) (byte, error) {
	buf := make([]byte, 1)
	err := b.transact(ctx, "read", transfer{
		address:  address,
		w:        []byte{register},
		r:        buf,
		lastKind: twi.KindRead,
	})
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadBurst reads n consecutive registers starting at register using the
// slave's auto-increment mode. It returns exactly n bytes or an error.
func (b *Bus) ReadBurst(ctx context.Context, address, register byte, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: burst of %d bytes", twi.ErrInvalidLength, n)
	}
	buf := make([]byte, n)
	err := b.ReadBurstInto(ctx, address, register, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadBurstInto is ReadBurst with a caller-owned buffer. buf is only written
// when the whole transaction succeeds.
func (b *Bus) ReadBurstInto(ctx context.Context, address, register byte, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty burst buffer", twi.ErrInvalidLength)
	}
	r := make([]byte, len(buf))
	err := b.transact(ctx, "burst", transfer{
		address:  address,
		w:        []byte{register | b.config.AutoIncrement},
		r:        r,
		lastKind: twi.KindNack,
	})
	if err != nil {
		return err
	}
	copy(buf, r)
	return nil
}

// WriteBurst writes data into consecutive registers starting at register.
func (b *Bus) WriteBurst(ctx context.Context, address, register byte, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty burst write", twi.ErrInvalidLength)
	}
	w := make([]byte, 0, len(data)+1)
	w = append(w, register|b.config.AutoIncrement)
	w = append(w, data...)
	return b.transact(ctx, "burst_write", transfer{address: address, w: w})
}

// Tx writes w and then, after a repeated start, reads len(r) bytes. Either
// side may be empty; with both empty only the address is sent.
func (b *Bus) Tx(ctx context.Context, address byte, w, r []byte) error {
	buf := make([]byte, len(r))
	err := b.transact(ctx, "tx", transfer{
		address:  address,
		w:        w,
		r:        buf,
		lastKind: twi.KindNack,
	})
	if err != nil {
		return err
	}
	copy(r, buf)
	return nil
}

// Probe checks that a slave acknowledges its write address.
func (b *Bus) Probe(ctx context.Context, address byte) error {
	return b.transact(ctx, "probe", transfer{address: address})
}

// Release issues a stop condition. Callers use it to recover the bus after a
// failed transaction.
func (b *Bus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.ctl.issueStop()
	if busctx.IsTrace(ctx) {
		b.log.DebugContext(ctx, "bus released")
	}
	return nil
}

type transfer struct {
	address byte
	w       []byte
	r       []byte
	// lastKind classifies a failure of the final, not acknowledged, receive.
	lastKind twi.Kind
}

func (b *Bus) transact(ctx context.Context, op string, t transfer) error {
	err := twi.CheckAddress(t.address)
	if err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.Timeout)
		defer cancel()
	}
	started := time.Now()
	err = b.run(ctx, t)
	b.config.Metrics.observe(b.config.Name, op, err, time.Since(started))
	if err != nil {
		b.log.DebugContext(ctx, "transaction failed", "op", op, "address", fmt.Sprintf("%#x", t.address), "error", err)
	}
	return err
}

func (b *Bus) run(ctx context.Context, t transfer) error {
	b.ctl.issueStart()
	err := b.step(ctx, twi.KindStart, twi.StatusStart)
	if err != nil {
		return err
	}
	if len(t.w) > 0 || len(t.r) == 0 {
		b.ctl.writeByte(twi.AddressByte(t.address, false))
		b.ctl.endStart()
		err = b.step(ctx, twi.KindSlaveWrite, twi.StatusSlaveWriteAck)
		if err != nil {
			return err
		}
		for _, v := range t.w {
			b.ctl.writeByte(v)
			err = b.step(ctx, twi.KindWrite, twi.StatusWriteAck)
			if err != nil {
				return err
			}
		}
		if len(t.r) > 0 {
			b.ctl.issueStart()
			err = b.step(ctx, twi.KindRepeatedStart, twi.StatusRepeatedStart)
			if err != nil {
				return err
			}
		}
	}
	if len(t.r) > 0 {
		b.ctl.writeByte(twi.AddressByte(t.address, true))
		b.ctl.endStart()
		err = b.step(ctx, twi.KindSlaveRead, twi.StatusSlaveReadAck)
		if err != nil {
			return err
		}
		last := len(t.r) - 1
		for i := range t.r {
			// the acknowledge bit is latched when the receive is issued
			if i == last {
				b.ctl.setAck(false)
				err = b.step(ctx, t.lastKind, twi.StatusReadNack)
			} else {
				b.ctl.setAck(true)
				err = b.step(ctx, twi.KindAck, twi.StatusReadAck)
			}
			if err != nil {
				return err
			}
			t.r[i] = b.ctl.readByte()
		}
	}
	b.ctl.issueStop()
	return nil
}

// step executes the configured primitive and validates the resulting status.
func (b *Bus) step(ctx context.Context, kind twi.Kind, expected twi.Status) error {
	b.ctl.proceed()
	err := b.ctl.await(ctx)
	if err != nil {
		return &twi.TransactionError{Kind: kind, Expected: expected, Err: fmt.Errorf("%w: %w", twi.ErrTimeout, err)}
	}
	got := b.ctl.status()
	if busctx.IsTrace(ctx) {
		b.log.DebugContext(ctx, "bus step", "expected", expected.String(), "got", got.String())
	}
	if got != expected {
		return &twi.TransactionError{Kind: kind, Expected: expected, Got: got}
	}
	return nil
}
