// Package loopback provides an in-memory driver whose ports behave like a
// serial port fitted with a loopback plug: written bytes come back as
// input, RTS drives CTS and DTR drives DSR and CD.
//
// Tests and the CLI demo mode use it to exercise the full port stack
// without hardware. Handles expose hooks to inject input, line changes,
// line errors and driver failures.
package loopback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	comm "github.com/allbin/go-comm"
)

// PortSpec describes one port the driver registers
type PortSpec struct {
	Name string
	Kind comm.PortKind

	// NoEcho disables the loopback of written bytes.
	NoEcho bool
	// NoFraming makes the handle decline receive framing.
	NoFraming bool
}

// Driver registers a fixed set of in-memory ports
type Driver struct {
	mu      sync.Mutex
	specs   []PortSpec
	handles map[string]*Handle
}

// New creates a driver for the given ports.
func New(ports ...PortSpec) *Driver {
	return &Driver{
		specs:   ports,
		handles: make(map[string]*Handle),
	}
}

// Serial is a shorthand for a default serial PortSpec.
func Serial(name string) PortSpec {
	return PortSpec{Name: name, Kind: comm.KindSerial}
}

// Parallel is a shorthand for a default parallel PortSpec.
func Parallel(name string) PortSpec {
	return PortSpec{Name: name, Kind: comm.KindParallel}
}

func (d *Driver) Name() string { return "loopback" }

func (d *Driver) Initialize(r *comm.Registry) error {
	var errs []error
	for _, s := range d.specs {
		kind := s.Kind
		if kind == 0 {
			kind = comm.KindSerial
		}
		if err := r.Register(s.Name, kind, d); err != nil {
			errs = append(errs, fmt.Errorf("register %q: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) spec(name string) (PortSpec, bool) {
	for _, s := range d.specs {
		if s.Name == name {
			return s, true
		}
	}
	return PortSpec{}, false
}

func (d *Driver) Open(desc comm.PortDescriptor) (comm.DeviceHandle, error) {
	spec, ok := d.spec(desc.Name)
	if !ok {
		spec = PortSpec{Name: desc.Name}
	}
	spec.Kind = desc.Kind

	h := newHandle(spec)
	d.mu.Lock()
	d.handles[desc.Name] = h
	d.mu.Unlock()
	return h, nil
}

// Handle returns the most recently opened handle of a port.
func (d *Driver) Handle(name string) (*Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[name]
	return h, ok
}

// Handle is an in-memory device handle
type Handle struct {
	mu     sync.Mutex
	spec   PortSpec
	rx     []byte
	lines  comm.LineState
	errs   comm.ErrorCounters
	cfg    comm.SerialConfig
	inSize int
	outSz  int
	closed bool

	readErr   error
	rejectCfg error
	breaks    []time.Duration
	writes    int
}

func newHandle(spec PortSpec) *Handle {
	return &Handle{spec: spec}
}

var errClosed = errors.New("loopback handle closed")

func (h *Handle) serialOnly(op string) error {
	if h.spec.Kind != comm.KindSerial {
		return &comm.UnsupportedOperationError{Op: op, Reason: "parallel port"}
	}
	return nil
}

func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, errClosed
	}
	if h.readErr != nil {
		return 0, h.readErr
	}
	if len(h.rx) == 0 {
		return 0, comm.ErrWouldBlock
	}
	n := copy(p, h.rx)
	h.rx = h.rx[n:]
	return n, nil
}

func (h *Handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, errClosed
	}
	h.writes++
	if !h.spec.NoEcho {
		h.rx = append(h.rx, p...)
	}
	return len(p), nil
}

func (h *Handle) Lines() (comm.LineState, error) {
	if err := h.serialOnly("get lines"); err != nil {
		return comm.LineState{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lines, nil
}

// SetDTR drives DTR, and through the plug DSR and CD.
func (h *Handle) SetDTR(state bool) error {
	if err := h.serialOnly("set DTR"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines.DTR, h.lines.DSR, h.lines.CD = state, state, state
	return nil
}

// SetRTS drives RTS, and through the plug CTS.
func (h *Handle) SetRTS(state bool) error {
	if err := h.serialOnly("set RTS"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines.RTS, h.lines.CTS = state, state
	return nil
}

func (h *Handle) Configure(cfg comm.SerialConfig) error {
	if err := h.serialOnly("configure"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rejectCfg != nil && cfg != h.cfg {
		return h.rejectCfg
	}
	h.cfg = cfg
	return nil
}

func (h *Handle) SendBreak(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.breaks = append(h.breaks, d)
	h.errs.Break++
	return nil
}

func (h *Handle) ErrorCounters() (comm.ErrorCounters, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errs, nil
}

// OutputPending is always zero: writes complete immediately.
func (h *Handle) OutputPending() (int, error) {
	return 0, nil
}

func (h *Handle) SetInputBufferSize(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inSize = n
	return nil
}

func (h *Handle) SetOutputBufferSize(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outSz = n
	return nil
}

func (h *Handle) SupportsReceiveFraming() bool {
	return !h.spec.NoFraming
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errClosed
	}
	h.closed = true
	return nil
}

// Inject appends p to the pending input as if it arrived on the wire.
func (h *Handle) Inject(p []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rx = append(h.rx, p...)
}

// SetLines overrides the input lines CTS, DSR, RI and CD.
func (h *Handle) SetLines(ls comm.LineState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines.CTS, h.lines.DSR, h.lines.RI, h.lines.CD = ls.CTS, ls.DSR, ls.RI, ls.CD
}

// InjectError bumps the counter matching kind, one of the line error
// event kinds.
func (h *Handle) InjectError(kind comm.EventKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch kind {
	case comm.EventOverrunError:
		h.errs.Overrun++
	case comm.EventParityError:
		h.errs.Parity++
	case comm.EventFramingError:
		h.errs.Framing++
	case comm.EventBreakInterrupt:
		h.errs.Break++
	}
}

// FailReads makes every following Read return err.
func (h *Handle) FailReads(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readErr = err
}

// RejectConfig makes Configure fail with err for any configuration other
// than the current one. Pass nil to accept again.
func (h *Handle) RejectConfig(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejectCfg = err
}

// Config returns the configuration last applied.
func (h *Handle) Config() comm.SerialConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// BufferSizes returns the last input and output size hints.
func (h *Handle) BufferSizes() (in, out int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inSize, h.outSz
}

// Breaks returns the durations of every SendBreak call.
func (h *Handle) Breaks() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.breaks...)
}

func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Writes returns the number of Write calls that reached the handle.
func (h *Handle) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}
