// Package master implements a two-wire bus master on top of an AVR TWI-style
// register interface: a control word, a status register whose top five bits
// report the protocol state, a data register and a bit-rate register.
//
// Every transaction is a linear sequence of primitives. Each primitive is
// configured in the control word, executed by clearing the interrupt flag and
// completed when the controller raises the flag again. The status register is
// then checked against the single status the step expects; any other value
// aborts the transaction with a step specific error and no further primitive
// is issued.
//
// The acknowledge timing of burst reads (the acknowledge bit is latched when
// the receive primitive is issued) matches the controller modelled here and
// must be validated against the timing diagram of any other controller.
package master

// Control word bits.
const (
	ControlInterrupt byte = 0x80
	ControlAck       byte = 0x40
	ControlStart     byte = 0x20
	ControlStop      byte = 0x10
	ControlEnable    byte = 0x04
)

// Registers is the hardware boundary of the bus master.
//
// Writing the control word with ControlInterrupt set clears the
// operation-complete flag and makes the controller execute the configured
// primitive. ReadControl reports ControlInterrupt while the flag is raised.
type Registers interface {
	ReadControl() byte
	WriteControl(v byte)
	ReadStatus() byte
	// WriteStatus sets the writable prescaler bits of the status register.
	WriteStatus(v byte)
	ReadData() byte
	WriteData(v byte)
	WriteBitRate(v byte)
}
