// Package native is a portable driver built on go.bug.st/serial. It works
// on Linux, macOS and Windows but only offers what that library exposes:
// no flow control settings, no line error counters and no output queue
// inspection.
package native

import (
	"errors"
	"fmt"
	"time"

	comm "github.com/allbin/go-comm"
	"go.bug.st/serial"
)

// pollTimeout is the read timeout applied to opened ports. It keeps Read
// from blocking the port's poller for long.
const pollTimeout = time.Millisecond

// serialPort is the subset of serial.Port the driver uses.
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetMode(mode *serial.Mode) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
	SetReadTimeout(t time.Duration) error
	Break(d time.Duration) error
	Close() error
}

// Driver enumerates and opens ports through go.bug.st/serial
type Driver struct {
	open func(name string, mode *serial.Mode) (serialPort, error)
	list func() ([]string, error)
}

// New creates a native driver.
func New() *Driver {
	return &Driver{
		open: func(name string, mode *serial.Mode) (serialPort, error) {
			return serial.Open(name, mode)
		},
		list: serial.GetPortsList,
	}
}

func (d *Driver) Name() string { return "native" }

// Initialize registers every port the operating system reports as serial.
func (d *Driver) Initialize(r *comm.Registry) error {
	names, err := d.list()
	if err != nil {
		return fmt.Errorf("enumerate ports: %w", err)
	}
	for _, name := range names {
		if err := r.Register(name, comm.KindSerial, d); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Open(desc comm.PortDescriptor) (comm.DeviceHandle, error) {
	if desc.Kind != comm.KindSerial {
		return nil, &comm.UnsupportedOperationError{Op: "open " + desc.Name, Reason: "native driver only handles serial ports"}
	}
	mode, err := toMode(comm.DefaultSerialConfig())
	if err != nil {
		return nil, err
	}
	p, err := d.open(desc.Name, mode)
	if err != nil {
		return nil, translateError(err)
	}
	if err := p.SetReadTimeout(pollTimeout); err != nil {
		return nil, errors.Join(fmt.Errorf("set read timeout: %w", err), p.Close())
	}
	return &handle{port: p}, nil
}

type handle struct {
	port serialPort

	// go.bug.st/serial cannot read back the output lines
	rts, dtr bool
}

func (h *handle) Read(p []byte) (int, error) {
	n, err := h.port.Read(p)
	if err != nil {
		return n, translateError(err)
	}
	return n, nil
}

func (h *handle) Write(p []byte) (int, error) {
	n, err := h.port.Write(p)
	return n, translateError(err)
}

func (h *handle) Lines() (comm.LineState, error) {
	bits, err := h.port.GetModemStatusBits()
	if err != nil {
		return comm.LineState{}, translateError(err)
	}
	return comm.LineState{
		CTS: bits.CTS,
		DSR: bits.DSR,
		RI:  bits.RI,
		CD:  bits.DCD,
		RTS: h.rts,
		DTR: h.dtr,
	}, nil
}

func (h *handle) SetDTR(state bool) error {
	if err := h.port.SetDTR(state); err != nil {
		return translateError(err)
	}
	h.dtr = state
	return nil
}

func (h *handle) SetRTS(state bool) error {
	if err := h.port.SetRTS(state); err != nil {
		return translateError(err)
	}
	h.rts = state
	return nil
}

func (h *handle) Configure(cfg comm.SerialConfig) error {
	if cfg.FlowControl != comm.FlowControlNone {
		return fmt.Errorf("flow control %s not available through the native driver", cfg.FlowControl)
	}
	mode, err := toMode(cfg)
	if err != nil {
		return err
	}
	return translateError(h.port.SetMode(mode))
}

func (h *handle) SendBreak(d time.Duration) error {
	return translateError(h.port.Break(d))
}

func (h *handle) Close() error {
	return translateError(h.port.Close())
}

func toMode(cfg comm.SerialConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	switch cfg.StopBits {
	case comm.StopBits1:
		mode.StopBits = serial.OneStopBit
	case comm.StopBits1Half:
		mode.StopBits = serial.OnePointFiveStopBits
	case comm.StopBits2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("unknown stop bits %d", int(cfg.StopBits))
	}
	switch cfg.Parity {
	case comm.ParityNone:
		mode.Parity = serial.NoParity
	case comm.ParityOdd:
		mode.Parity = serial.OddParity
	case comm.ParityEven:
		mode.Parity = serial.EvenParity
	case comm.ParityMark:
		mode.Parity = serial.MarkParity
	case comm.ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("unknown parity %d", int(cfg.Parity))
	}
	return mode, nil
}

// translateError maps library port errors onto comm errors where one
// exists.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code() {
	case serial.PortClosed:
		return fmt.Errorf("%w: %v", comm.ErrPortClosed, err)
	case serial.PortBusy:
		return fmt.Errorf("%w: %v", comm.ErrPortInUse, err)
	case serial.PortNotFound:
		return fmt.Errorf("%w: %v", comm.ErrNoSuchPort, err)
	case serial.FunctionNotImplemented:
		return &comm.UnsupportedOperationError{Op: "native", Err: err}
	default:
		return err
	}
}
