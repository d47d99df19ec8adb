package comm

import (
	"fmt"
	"time"
)

// PortKind identifies the type of a communications port
type PortKind int

const (
	KindSerial PortKind = iota + 1
	KindParallel
)

func (k PortKind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindParallel:
		return "parallel"
	default:
		return fmt.Sprintf("PortKind(%d)", int(k))
	}
}

// ParsePortKind converts "serial" or "parallel" into a PortKind.
func ParsePortKind(s string) (PortKind, error) {
	switch s {
	case "serial", "":
		return KindSerial, nil
	case "parallel":
		return KindParallel, nil
	default:
		return 0, fmt.Errorf("%w: unknown port kind %q", ErrInvalidConfig, s)
	}
}

// LineState represents modem control signal states
type LineState struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	CD  bool // Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// ErrorCounters are monotonically increasing line error counts reported by
// drivers implementing ErrorReporter.
type ErrorCounters struct {
	Overrun uint64
	Parity  uint64
	Framing uint64
	Break   uint64
}

// DeviceHandle is the contract a driver provides for one physical port.
//
// Read must not block for long: when no input is pending it returns
// (0, ErrWouldBlock) or (0, nil). Calls on one handle are never issued
// concurrently by this package.
type DeviceHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Lines() (LineState, error)
	SetDTR(state bool) error
	SetRTS(state bool) error
	Configure(cfg SerialConfig) error
	Close() error
}

// BreakSender is implemented by handles that can hold a break condition.
type BreakSender interface {
	SendBreak(d time.Duration) error
}

// ErrorReporter is implemented by handles that count line errors.
type ErrorReporter interface {
	ErrorCounters() (ErrorCounters, error)
}

// OutputQueue is implemented by handles that can report how many bytes
// are still waiting to be transmitted.
type OutputQueue interface {
	OutputPending() (int, error)
}

// BufferSizer is implemented by handles that accept driver buffer size hints.
type BufferSizer interface {
	SetInputBufferSize(n int) error
	SetOutputBufferSize(n int) error
}

// FramingSupporter lets a handle decline receive framing.
type FramingSupporter interface {
	SupportsReceiveFraming() bool
}

// Driver discovers ports and opens device handles for them.
//
// Initialize registers zero or more ports; registration is best effort and
// duplicate names overwrite earlier entries.
type Driver interface {
	Name() string
	Initialize(r *Registry) error
	Open(desc PortDescriptor) (DeviceHandle, error)
}
