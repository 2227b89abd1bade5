package twi

import "fmt"

// StatusMask selects the five significant bits of the controller status register.
const StatusMask = 0xF8

// Status is the protocol state reported by the bus controller after each primitive.
type Status byte

const (
	StatusBusError        Status = 0x00
	StatusStart           Status = 0x08
	StatusRepeatedStart   Status = 0x10
	StatusSlaveWriteAck   Status = 0x18
	StatusSlaveWriteNack  Status = 0x20
	StatusWriteAck        Status = 0x28
	StatusWriteNack       Status = 0x30
	StatusArbitrationLost Status = 0x38
	StatusSlaveReadAck    Status = 0x40
	StatusSlaveReadNack   Status = 0x48
	StatusReadAck         Status = 0x50
	StatusReadNack        Status = 0x58
	StatusIdle            Status = 0xF8
)

// StatusOf masks a raw status register value.
func StatusOf(raw byte) Status {
	return Status(raw & StatusMask)
}

func (s Status) String() string {
	switch s {
	case StatusBusError:
		return "BUS-ERROR"
	case StatusStart:
		return "START-OK"
	case StatusRepeatedStart:
		return "REPEATED-START-OK"
	case StatusSlaveWriteAck:
		return "SLAVE-WRITE-ACK"
	case StatusSlaveWriteNack:
		return "SLAVE-WRITE-NACK"
	case StatusWriteAck:
		return "WRITE-ACK"
	case StatusWriteNack:
		return "WRITE-NACK"
	case StatusArbitrationLost:
		return "ARBITRATION-LOST"
	case StatusSlaveReadAck:
		return "SLAVE-READ-ACK"
	case StatusSlaveReadNack:
		return "SLAVE-READ-NACK"
	case StatusReadAck:
		return "READ-ACK-OK"
	case StatusReadNack:
		return "READ-NACK-OK"
	case StatusIdle:
		return "IDLE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(s))
	}
}
