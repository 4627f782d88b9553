package ddc

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-displays/internal/access"
)

// Sentinel errors for the ddc package.
var (
	// ErrHandleClosed is returned when a call is attempted on a released handle.
	ErrHandleClosed = errors.New("ddc: handle closed")

	// ErrOutOfRange is returned when a set target is outside 0-100.
	ErrOutOfRange = errors.New("ddc: value out of range")

	// ErrDegenerateRange is returned when a raw range has minimum >= maximum.
	ErrDegenerateRange = errors.New("ddc: degenerate range")
)

// Platform error codes returned by the monitor configuration API.
const (
	CodeI2CErrorTransmitting   uint32 = 0xC0262582
	CodeI2CErrorReceiving      uint32 = 0xC0262583
	CodeInvalidMessageCommand  uint32 = 0xC0262589
	CodeInvalidMessageLength   uint32 = 0xC026258A
	CodeInvalidMessageChecksum uint32 = 0xC026258B
	CodeInvalidPhysicalMonitor uint32 = 0xC026258C
	CodeMonitorNoLongerExists  uint32 = 0xC026258D
)

// Error is a failed platform call carrying the OS error code.
type Error struct {
	Op   string
	Code uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("ddc: %s failed (0x%08X)", e.Op, e.Code)
}

// Classify maps an error from a PhysicalMonitor call to an access status.
//
// The table is fixed:
//   - I2C transmit/receive errors: TransmissionFailed
//   - DDC/CI invalid message command, length or checksum: ProtocolFailed
//   - monitor no longer exists: NoLongerExists
//   - anything else, including a closed handle: Failed
func Classify(err error) access.Status {
	if err == nil {
		return access.Succeeded
	}

	var de *Error
	if !errors.As(err, &de) {
		return access.Failed
	}

	switch de.Code {
	case CodeI2CErrorTransmitting, CodeI2CErrorReceiving:
		return access.TransmissionFailed
	case CodeInvalidMessageCommand, CodeInvalidMessageLength, CodeInvalidMessageChecksum:
		return access.ProtocolFailed
	case CodeMonitorNoLongerExists:
		return access.NoLongerExists
	default:
		return access.Failed
	}
}

// resultOf converts an error to an access.Result with its message.
func resultOf(err error) access.Result {
	if err == nil {
		return access.OK
	}
	return access.Result{Status: Classify(err), Message: err.Error()}
}
