// Package sim simulates a TWI bus controller with attached slave devices. It
// implements master.Registers and records every executed primitive so tests
// can assert on bus traffic.
package sim

import (
	"fmt"
	"sync"

	"github.com/mklimuk/twi"
	"github.com/mklimuk/twi/master"
)

var _ master.Registers = &Controller{}

type Op int

const (
	OpStart Op = iota + 1
	OpStop
	OpTransmit
	OpReceive
)

func (o Op) String() string {
	switch o {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpTransmit:
		return "transmit"
	case OpReceive:
		return "receive"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event is one primitive executed by the controller. Ack is the acknowledge
// bit latched for a receive.
type Event struct {
	Op     Op
	Data   byte
	Ack    bool
	Status twi.Status
}

func (e Event) String() string {
	switch e.Op {
	case OpReceive:
		return fmt.Sprintf("%s 0x%02x ack=%t -> %s", e.Op, e.Data, e.Ack, e.Status)
	case OpTransmit:
		return fmt.Sprintf("%s 0x%02x -> %s", e.Op, e.Data, e.Status)
	default:
		return fmt.Sprintf("%s -> %s", e.Op, e.Status)
	}
}

type busState int

const (
	stateIdle busState = iota
	stateAddressing
	stateTransmitting
	stateReceiving
)

type Controller struct {
	mx sync.Mutex

	control   byte
	flag      bool
	status    twi.Status
	data      byte
	bitRate   byte
	prescaler byte

	state   busState
	current *Device
	devices map[byte]*Device

	// index counts primitives since the transaction started from idle
	index  int
	faults map[int]twi.Status
	stalls map[int]bool
	trace  []Event
}

func New(devices ...*Device) *Controller {
	c := &Controller{
		status:  twi.StatusIdle,
		devices: make(map[byte]*Device),
		faults:  make(map[int]twi.Status),
		stalls:  make(map[int]bool),
	}
	for _, d := range devices {
		c.devices[d.address] = d
	}
	return c
}

// InjectStatus makes the primitive at index (0 is the start condition) of the
// next transaction report status instead of the simulated one.
func (c *Controller) InjectStatus(index int, status twi.Status) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.faults[index] = status
}

// Stall makes the primitive at index never signal completion.
func (c *Controller) Stall(index int) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.stalls[index] = true
}

// Trace returns the primitives executed since the last ResetTrace.
func (c *Controller) Trace() []Event {
	c.mx.Lock()
	defer c.mx.Unlock()
	out := make([]Event, len(c.trace))
	copy(out, c.trace)
	return out
}

func (c *Controller) ResetTrace() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.trace = nil
}

// BitRate returns the last divisor written to the bit-rate register.
func (c *Controller) BitRate() byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.bitRate
}

// Idle reports whether the bus has been released by a stop condition.
func (c *Controller) Idle() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state == stateIdle
}

func (c *Controller) ReadControl() byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.flag {
		return c.control | master.ControlInterrupt
	}
	return c.control
}

func (c *Controller) WriteControl(v byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.control = v &^ master.ControlInterrupt
	if v&master.ControlInterrupt == 0 {
		return
	}
	c.flag = false
	if c.control&master.ControlEnable == 0 {
		return
	}
	c.execute()
}

func (c *Controller) ReadStatus() byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	return byte(c.status) | c.prescaler
}

func (c *Controller) WriteStatus(v byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.prescaler = v & 0x03
}

func (c *Controller) ReadData() byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.data
}

func (c *Controller) WriteData(v byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.data = v
}

func (c *Controller) WriteBitRate(v byte) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.bitRate = v
}

func (c *Controller) execute() {
	switch {
	case c.control&master.ControlStart != 0:
		c.start()
	case c.control&master.ControlStop != 0:
		c.stop()
		return
	case c.state == stateAddressing || c.state == stateTransmitting:
		c.transmit()
	case c.state == stateReceiving:
		c.receive()
	}
}

func (c *Controller) start() {
	status := twi.StatusRepeatedStart
	if c.state == stateIdle {
		status = twi.StatusStart
		c.index = 0
	}
	c.state = stateAddressing
	c.complete(Event{Op: OpStart}, status)
}

func (c *Controller) stop() {
	c.state = stateIdle
	c.current = nil
	c.control &^= master.ControlStop
	c.status = twi.StatusIdle
	c.trace = append(c.trace, Event{Op: OpStop, Status: twi.StatusIdle})
}

func (c *Controller) transmit() {
	b := c.data
	ev := Event{Op: OpTransmit, Data: b}
	if c.state == stateAddressing {
		read := b&0x01 != 0
		dev, ok := c.devices[b>>1]
		c.current = nil
		if read {
			c.state = stateReceiving
		} else {
			c.state = stateTransmitting
		}
		if !ok {
			if read {
				c.complete(ev, twi.StatusSlaveReadNack)
			} else {
				c.complete(ev, twi.StatusSlaveWriteNack)
			}
			return
		}
		c.current = dev
		dev.begin(read)
		if read {
			c.complete(ev, twi.StatusSlaveReadAck)
		} else {
			c.complete(ev, twi.StatusSlaveWriteAck)
		}
		return
	}
	if c.current == nil || !c.current.receive(b) {
		c.complete(ev, twi.StatusWriteNack)
		return
	}
	c.complete(ev, twi.StatusWriteAck)
}

func (c *Controller) receive() {
	ack := c.control&master.ControlAck != 0
	var v byte = 0xFF
	if c.current != nil {
		v = c.current.transmit()
	}
	c.data = v
	status := twi.StatusReadNack
	if ack {
		status = twi.StatusReadAck
	}
	c.complete(Event{Op: OpReceive, Data: v, Ack: ack}, status)
}

// complete records the primitive, applies injected faults and raises the flag.
func (c *Controller) complete(ev Event, status twi.Status) {
	if s, ok := c.faults[c.index]; ok {
		status = s
		delete(c.faults, c.index)
	}
	stalled := c.stalls[c.index]
	delete(c.stalls, c.index)
	c.index++
	c.status = status
	ev.Status = status
	c.trace = append(c.trace, ev)
	if !stalled {
		c.flag = true
	}
}
