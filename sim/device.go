package sim

import "github.com/mklimuk/twi"

// Device is a simulated slave with a 256 byte register file. The first byte
// written after its address selects the register pointer; when that byte
// carries the auto-increment flag the pointer advances after every data byte.
type Device struct {
	address byte
	regs    [256]byte
	flag    byte

	pointer        byte
	autoIncrement  bool
	expectRegister bool

	arming *armRule
	armed  bool
}

type armRule struct {
	register byte
	value    byte
}

type DeviceOption func(*Device)

// WithRegisters presets consecutive registers starting at start.
func WithRegisters(start byte, values ...byte) DeviceOption {
	return func(d *Device) {
		for i, v := range values {
			d.regs[start+byte(i)] = v
		}
	}
}

// WithAutoIncrementFlag changes the register flag requesting auto-increment; 0 disables it.
func WithAutoIncrementFlag(flag byte) DeviceOption {
	return func(d *Device) {
		d.flag = flag
	}
}

// WithArming makes the device refuse auto-increment requests (not acknowledging
// the register byte) until value has been written into register.
func WithArming(register, value byte) DeviceOption {
	return func(d *Device) {
		d.arming = &armRule{register: register, value: value}
	}
}

func NewDevice(address byte, opts ...DeviceOption) *Device {
	d := &Device{address: address, flag: twi.AutoIncrement}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) Address() byte {
	return d.address
}

// Register returns the register content without bus traffic.
func (d *Device) Register(reg byte) byte {
	return d.regs[reg]
}

func (d *Device) SetRegister(reg, value byte) {
	d.regs[reg] = value
}

// Armed reports whether the arming write has been received.
func (d *Device) Armed() bool {
	return d.arming == nil || d.armed
}

func (d *Device) begin(read bool) {
	if !read {
		d.expectRegister = true
	}
}

// receive consumes a byte written by the master and reports whether it is acknowledged.
func (d *Device) receive(b byte) bool {
	if d.expectRegister {
		d.expectRegister = false
		if d.flag != 0 && b&d.flag != 0 {
			if !d.Armed() {
				return false
			}
			d.autoIncrement = true
			d.pointer = b &^ d.flag
			return true
		}
		d.autoIncrement = false
		d.pointer = b
		return true
	}
	d.regs[d.pointer] = b
	if d.arming != nil && d.pointer == d.arming.register && b == d.arming.value {
		d.armed = true
	}
	if d.autoIncrement {
		d.pointer++
	}
	return true
}

// transmit returns the byte sent to the master.
func (d *Device) transmit() byte {
	v := d.regs[d.pointer]
	if d.autoIncrement {
		d.pointer++
	}
	return v
}
