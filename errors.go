package comm

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrNoSuchPort           = errors.New("no such port")
	ErrPortInUse            = errors.New("port in use")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrTooManyListeners     = errors.New("port already has an event listener")
	ErrPortClosed           = errors.New("port is closed")
	ErrReadTimeout          = errors.New("read operation timed out")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrInvalidPortName      = errors.New("port name cannot be empty")
	ErrInvalidAppName       = errors.New("application name cannot be empty")

	// ErrWouldBlock is returned by a DeviceHandle when no input is pending.
	ErrWouldBlock = errors.New("operation would block")
)

// PortInUseError is returned by Acquire when the current owner did not
// relinquish the port before the requester's timeout elapsed.
type PortInUseError struct {
	Port  string
	Owner string
}

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %s in use by %q", e.Port, e.Owner)
}

// Is reports ErrPortInUse as a match so callers can test with errors.Is.
func (e *PortInUseError) Is(target error) bool {
	return target == ErrPortInUse
}

// UnsupportedOperationError reports a feature the driver or hardware
// cannot honour. The configuration it targeted is left unchanged.
type UnsupportedOperationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *UnsupportedOperationError) Error() string {
	msg := e.Op + ": unsupported"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

func (e *UnsupportedOperationError) Unwrap() error {
	return e.Err
}

func unsupported(op, reason string) error {
	return &UnsupportedOperationError{Op: op, Reason: reason}
}
