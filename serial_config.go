package comm

import (
	"fmt"
	"strings"
)

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// StopBits represents the number of stop bits
type StopBits int

const (
	StopBits1     StopBits = 1
	StopBits2     StopBits = 2
	StopBits1Half StopBits = 3
)

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits2:
		return "2"
	case StopBits1Half:
		return "1.5"
	default:
		return fmt.Sprintf("StopBits(%d)", int(s))
	}
}

// FlowControl is a bitmask of hardware and software flow control modes.
// RTS/CTS and XON/XOFF may not be combined for the same direction.
type FlowControl int

const (
	FlowControlNone       FlowControl = 0
	FlowControlRTSCTSIn   FlowControl = 1 << 0
	FlowControlRTSCTSOut  FlowControl = 1 << 1
	FlowControlXonXoffIn  FlowControl = 1 << 2
	FlowControlXonXoffOut FlowControl = 1 << 3

	flowControlMask = FlowControlRTSCTSIn | FlowControlRTSCTSOut | FlowControlXonXoffIn | FlowControlXonXoffOut
)

func (f FlowControl) String() string {
	if f == FlowControlNone {
		return "none"
	}
	var parts []string
	if f&FlowControlRTSCTSIn != 0 {
		parts = append(parts, "rtscts-in")
	}
	if f&FlowControlRTSCTSOut != 0 {
		parts = append(parts, "rtscts-out")
	}
	if f&FlowControlXonXoffIn != 0 {
		parts = append(parts, "xonxoff-in")
	}
	if f&FlowControlXonXoffOut != 0 {
		parts = append(parts, "xonxoff-out")
	}
	if rest := f &^ flowControlMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", int(rest)))
	}
	return strings.Join(parts, "|")
}

// Hardware reports whether any RTS/CTS bit is set.
func (f FlowControl) Hardware() bool {
	return f&(FlowControlRTSCTSIn|FlowControlRTSCTSOut) != 0
}

// Software reports whether any XON/XOFF bit is set.
func (f FlowControl) Software() bool {
	return f&(FlowControlXonXoffIn|FlowControlXonXoffOut) != 0
}

// SerialConfig holds the line parameters of a serial port
type SerialConfig struct {
	BaudRate    int
	DataBits    int
	StopBits    StopBits
	Parity      Parity
	FlowControl FlowControl
}

// DefaultSerialConfig returns 9600 8N1 without flow control.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    StopBits1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
	}
}

func (c SerialConfig) String() string {
	return fmt.Sprintf("%d %d%s%s flow=%s", c.BaudRate, c.DataBits, c.Parity, c.StopBits, c.FlowControl)
}

// Validate checks every field against the supported hardware ranges.
func (c SerialConfig) Validate() error {
	if err := validateLineParams(c.BaudRate, c.DataBits, c.StopBits, c.Parity); err != nil {
		return err
	}
	return validateFlowControl(c.FlowControl)
}

var supportedBaudRates = map[int]struct{}{
	50: {}, 75: {}, 110: {}, 134: {}, 150: {}, 200: {}, 300: {}, 600: {},
	1200: {}, 1800: {}, 2400: {}, 4800: {}, 9600: {}, 19200: {}, 38400: {},
	57600: {}, 115200: {}, 230400: {}, 460800: {}, 500000: {}, 576000: {},
	921600: {}, 1000000: {}, 1152000: {}, 1500000: {}, 2000000: {},
	2500000: {}, 3000000: {}, 3500000: {}, 4000000: {},
}

// IsSupportedBaudRate reports whether rate is one of the standard rates.
func IsSupportedBaudRate(rate int) bool {
	_, ok := supportedBaudRates[rate]
	return ok
}

func validateLineParams(baud, dataBits int, stopBits StopBits, parity Parity) error {
	const op = "set serial port params"
	if !IsSupportedBaudRate(baud) {
		return unsupported(op, fmt.Sprintf("baud rate %d", baud))
	}
	if dataBits < 5 || dataBits > 8 {
		return unsupported(op, fmt.Sprintf("data bits %d (must be 5-8)", dataBits))
	}
	switch stopBits {
	case StopBits1, StopBits2, StopBits1Half:
	default:
		return unsupported(op, fmt.Sprintf("stop bits %d", int(stopBits)))
	}
	if parity < ParityNone || parity > ParitySpace {
		return unsupported(op, fmt.Sprintf("parity %d", int(parity)))
	}
	return nil
}

func validateFlowControl(fc FlowControl) error {
	const op = "set flow control mode"
	if fc&^flowControlMask != 0 {
		return unsupported(op, fmt.Sprintf("unknown flow control bits 0x%x", int(fc&^flowControlMask)))
	}
	if fc&FlowControlRTSCTSIn != 0 && fc&FlowControlXonXoffIn != 0 {
		return unsupported(op, "RTS/CTS and XON/XOFF both requested for input")
	}
	if fc&FlowControlRTSCTSOut != 0 && fc&FlowControlXonXoffOut != 0 {
		return unsupported(op, "RTS/CTS and XON/XOFF both requested for output")
	}
	return nil
}
