package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allbin/go-comm/logger"
	"go.uber.org/atomic"
)

// Port is an open session on a communications port, owned by exactly one
// application until Close. All methods are safe for concurrent use; after
// Close every method fails with ErrPortClosed.
type Port struct {
	desc  PortDescriptor
	owner string

	handleMu sync.Mutex
	handle   DeviceHandle

	closed   atomic.Bool
	closeCh  chan struct{}
	pollDone chan struct{}
	onClose  func(*Port)

	policyMu sync.Mutex
	policy   ReadPolicy

	cfgMu   sync.Mutex
	serial  SerialConfig
	outSize int

	in          *inputBuffer
	events      *dispatcher
	outputCheck atomic.Bool

	pollInterval time.Duration
	stats        portCounters
	log          logger.Logger
}

func newPort(desc PortDescriptor, owner string, h DeviceHandle, cfg Config, onClose func(*Port)) *Port {
	log := cfg.Logger.With("port", desc.Name, "owner", owner)
	p := &Port{
		desc:         desc,
		owner:        owner,
		handle:       h,
		closeCh:      make(chan struct{}),
		pollDone:     make(chan struct{}),
		onClose:      onClose,
		serial:       cfg.SerialConfig,
		in:           newInputBuffer(cfg.InputBufferSize),
		pollInterval: cfg.PollInterval,
		log:          log,
	}
	p.events = newDispatcher(&p.stats, log)

	go p.events.run()
	go p.poll()
	return p
}

// Descriptor returns the registry entry this port was opened from.
func (p *Port) Descriptor() PortDescriptor { return p.desc }

func (p *Port) Name() string   { return p.desc.Name }
func (p *Port) Kind() PortKind { return p.desc.Kind }

// Owner returns the application name the port was acquired for.
func (p *Port) Owner() string { return p.owner }

func (p *Port) String() string {
	return fmt.Sprintf("%s (%s, owner %q)", p.desc.Name, p.desc.Kind, p.owner)
}

// Stats returns a snapshot of the port counters. It keeps working after Close.
func (p *Port) Stats() PortStats {
	return p.stats.snapshot()
}

func (p *Port) checkOpen() error {
	if p.closed.Load() {
		return ErrPortClosed
	}
	return nil
}

// withHandle serializes access to the device handle.
func (p *Port) withHandle(fn func(h DeviceHandle) error) error {
	p.handleMu.Lock()
	defer p.handleMu.Unlock()
	if p.closed.Load() {
		return ErrPortClosed
	}
	return fn(p.handle)
}

// Close releases the device and the ownership of the port. Blocked reads
// return ErrPortClosed and undelivered events are dropped.
func (p *Port) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return ErrPortClosed
	}
	close(p.closeCh)
	p.events.stop()
	<-p.pollDone

	p.handleMu.Lock()
	err := p.handle.Close()
	p.handleMu.Unlock()
	if err != nil {
		p.log.Warn("device close failed", "error", err)
	}

	if p.onClose != nil {
		p.onClose(p)
	}
	return err
}

// Read reads into b, blocking as the receive policy dictates.
func (p *Port) Read(b []byte) (int, error) {
	return p.ReadContext(context.Background(), b)
}

// ReadContext is Read bounded additionally by ctx.
//
// The receive policy is sampled when the call starts. A read that times
// out with no data returns ErrReadTimeout; with partial data it returns
// what arrived and a nil error.
func (p *Port) ReadContext(ctx context.Context, b []byte) (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return 0, nil
	}

	p.policyMu.Lock()
	rp := p.policy.plan(len(b), time.Now())
	p.policyMu.Unlock()

	var deadline <-chan time.Time
	if !rp.deadline.IsZero() {
		timer := time.NewTimer(time.Until(rp.deadline))
		defer timer.Stop()
		deadline = timer.C
	}
	var tick <-chan time.Time
	if rp.poll {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if p.closed.Load() {
			return 0, ErrPortClosed
		}
		n, done, changed, err := p.in.take(b, rp)
		if done {
			p.stats.bytesRead.Add(uint64(n))
			return n, err
		}
		if rp.poll {
			changed = nil
		}

		select {
		case <-changed:
		case <-tick:
		case <-deadline:
			n := p.in.takeExpired(b, rp)
			if n == 0 {
				p.stats.readTimeouts.Inc()
				return 0, ErrReadTimeout
			}
			p.stats.bytesRead.Add(uint64(n))
			return n, nil
		case <-p.closeCh:
			return 0, ErrPortClosed
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Write hands b to the device.
func (p *Port) Write(b []byte) (int, error) {
	var n int
	err := p.withHandle(func(h DeviceHandle) error {
		var err error
		n, err = h.Write(b)
		return err
	})
	if n > 0 {
		p.stats.bytesWritten.Add(uint64(n))
	}
	if err != nil {
		return n, err
	}
	if n > 0 && p.events.wants(EventOutputBufferEmpty) {
		if _, ok := p.handle.(OutputQueue); ok {
			p.outputCheck.Store(true)
		} else {
			p.post(EventOutputBufferEmpty, false, true)
		}
	}
	return n, nil
}

// InputAvailable returns the number of bytes that can be read without blocking.
func (p *Port) InputAvailable() (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	return p.in.len(), nil
}

// ReadPolicy returns the current receive policy.
func (p *Port) ReadPolicy() (ReadPolicy, error) {
	if err := p.checkOpen(); err != nil {
		return ReadPolicy{}, err
	}
	p.policyMu.Lock()
	defer p.policyMu.Unlock()
	return p.policy, nil
}

func (p *Port) updatePolicy(fn func(rp *ReadPolicy)) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.policyMu.Lock()
	defer p.policyMu.Unlock()
	fn(&p.policy)
	return nil
}

// EnableReceiveFraming makes a blocked read return as soon as b arrives.
func (p *Port) EnableReceiveFraming(b byte) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if fs, ok := p.handle.(FramingSupporter); ok && !fs.SupportsReceiveFraming() {
		return unsupported("enable receive framing", fmt.Sprintf("driver %s does not support framing", p.driverName()))
	}
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.framingEnabled, rp.framingByte = true, b
	})
}

func (p *Port) DisableReceiveFraming() error {
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.framingEnabled, rp.framingByte = false, 0
	})
}

// EnableReceiveTimeout bounds how long a read waits. Zero switches reads to
// polling mode.
func (p *Port) EnableReceiveTimeout(d time.Duration) error {
	if d < 0 {
		return unsupported("enable receive timeout", fmt.Sprintf("negative timeout %s", d))
	}
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.timeoutEnabled, rp.timeout = true, d
	})
}

func (p *Port) DisableReceiveTimeout() error {
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.timeoutEnabled, rp.timeout = false, 0
	})
}

// EnableReceiveThreshold makes a read wait for n bytes (or len(b) if
// smaller). Zero switches reads to polling mode.
func (p *Port) EnableReceiveThreshold(n int) error {
	if n < 0 {
		return unsupported("enable receive threshold", fmt.Sprintf("negative threshold %d", n))
	}
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.thresholdEnabled, rp.threshold = true, n
	})
}

func (p *Port) DisableReceiveThreshold() error {
	return p.updatePolicy(func(rp *ReadPolicy) {
		rp.thresholdEnabled, rp.threshold = false, 0
	})
}

// AddEventListener attaches the port's single event listener. Use a
// MultiListener to fan events out.
func (p *Port) AddEventListener(l EventListener) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if l == nil {
		return ErrInvalidConfig
	}
	return p.events.setListener(l)
}

// RemoveEventListener detaches the listener, if any. Events already queued
// are dropped. A closed port has already detached its listener and returns
// ErrPortClosed.
func (p *Port) RemoveEventListener() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.events.removeListener()
	return nil
}

func (p *Port) notifyOn(kind EventKind, enable bool) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	p.events.notifyOn(kind, enable)
	return nil
}

func (p *Port) notifyOnSerial(op string, kind EventKind, enable bool) error {
	if err := p.requireSerial(op); err != nil {
		return err
	}
	return p.notifyOn(kind, enable)
}

func (p *Port) NotifyOnDataAvailable(enable bool) error {
	return p.notifyOn(EventDataAvailable, enable)
}

func (p *Port) NotifyOnOutputEmpty(enable bool) error {
	return p.notifyOn(EventOutputBufferEmpty, enable)
}

func (p *Port) NotifyOnCTS(enable bool) error {
	return p.notifyOnSerial("notify on CTS", EventCTS, enable)
}

func (p *Port) NotifyOnDSR(enable bool) error {
	return p.notifyOnSerial("notify on DSR", EventDSR, enable)
}

func (p *Port) NotifyOnRingIndicator(enable bool) error {
	return p.notifyOnSerial("notify on ring indicator", EventRI, enable)
}

func (p *Port) NotifyOnCarrierDetect(enable bool) error {
	return p.notifyOnSerial("notify on carrier detect", EventCD, enable)
}

func (p *Port) NotifyOnOverrunError(enable bool) error {
	return p.notifyOnSerial("notify on overrun error", EventOverrunError, enable)
}

func (p *Port) NotifyOnParityError(enable bool) error {
	return p.notifyOnSerial("notify on parity error", EventParityError, enable)
}

func (p *Port) NotifyOnFramingError(enable bool) error {
	return p.notifyOnSerial("notify on framing error", EventFramingError, enable)
}

func (p *Port) NotifyOnBreakInterrupt(enable bool) error {
	return p.notifyOnSerial("notify on break interrupt", EventBreakInterrupt, enable)
}

// SetInputBufferSize passes a size hint to the driver and caps the bytes
// buffered ahead of Read.
func (p *Port) SetInputBufferSize(n int) error {
	if n < 1 {
		return unsupported("set input buffer size", fmt.Sprintf("size %d", n))
	}
	err := p.withHandle(func(h DeviceHandle) error {
		if bs, ok := h.(BufferSizer); ok {
			if err := bs.SetInputBufferSize(n); err != nil {
				return &UnsupportedOperationError{Op: "set input buffer size", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.in.setLimit(n)
	return nil
}

func (p *Port) InputBufferSize() (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	return p.in.getLimit(), nil
}

// SetOutputBufferSize passes a size hint to the driver.
func (p *Port) SetOutputBufferSize(n int) error {
	if n < 1 {
		return unsupported("set output buffer size", fmt.Sprintf("size %d", n))
	}
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	err := p.withHandle(func(h DeviceHandle) error {
		if bs, ok := h.(BufferSizer); ok {
			if err := bs.SetOutputBufferSize(n); err != nil {
				return &UnsupportedOperationError{Op: "set output buffer size", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.outSize = n
	return nil
}

// OutputBufferSize returns the last accepted hint, or 0 if none was set.
func (p *Port) OutputBufferSize() (int, error) {
	if err := p.checkOpen(); err != nil {
		return 0, err
	}
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	return p.outSize, nil
}

func (p *Port) driverName() string {
	if p.desc.Driver == nil {
		return "unknown"
	}
	return p.desc.Driver.Name()
}

func (p *Port) post(kind EventKind, from, to bool) {
	p.events.post(LineEvent{
		Port:     p.desc.Name,
		Kind:     kind,
		OldValue: from,
		NewValue: to,
		Time:     time.Now(),
	})
}

// pollState is what the device poller remembers between samples.
type pollState struct {
	buf []byte

	lines     LineState
	haveLines bool

	counters     ErrorCounters
	haveCounters bool
}

// poll moves input off the device and samples the conditions listeners
// asked for until the port is closed or the device fails.
func (p *Port) poll() {
	defer close(p.pollDone)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	st := &pollState{buf: make([]byte, 512)}
	for {
		if err := p.pollOnce(st); err != nil {
			if !errors.Is(err, ErrPortClosed) {
				p.log.Error("device poller stopped", "error", err)
				p.in.fail(err)
			}
			return
		}
		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
		}
	}
}

func (p *Port) pollOnce(st *pollState) error {
	if err := p.pollInput(st); err != nil {
		return err
	}
	if p.desc.Kind == KindSerial {
		p.pollLines(st)
		p.pollErrors(st)
	}
	p.pollOutput()
	return nil
}

func (p *Port) pollInput(st *pollState) error {
	for {
		space := p.in.space()
		if space == 0 {
			return nil
		}
		var n int
		err := p.withHandle(func(h DeviceHandle) error {
			var err error
			n, err = h.Read(st.buf[:min(space, len(st.buf))])
			return err
		})
		if n > 0 && p.in.append(st.buf[:n]) {
			p.post(EventDataAvailable, false, true)
		}
		switch {
		case errors.Is(err, ErrWouldBlock):
			return nil
		case err != nil:
			return err
		case n == 0:
			return nil
		}
	}
}

func (p *Port) pollLines(st *pollState) {
	if !p.events.wantsAny(lineEventMask) {
		st.haveLines = false
		return
	}
	var ls LineState
	err := p.withHandle(func(h DeviceHandle) error {
		var err error
		ls, err = h.Lines()
		return err
	})
	if err != nil {
		p.log.Debug("line sample failed", "error", err)
		return
	}
	if st.haveLines {
		prev := st.lines
		p.postChange(EventCTS, prev.CTS, ls.CTS)
		p.postChange(EventDSR, prev.DSR, ls.DSR)
		p.postChange(EventRI, prev.RI, ls.RI)
		p.postChange(EventCD, prev.CD, ls.CD)
	}
	st.lines, st.haveLines = ls, true
}

func (p *Port) postChange(kind EventKind, from, to bool) {
	if from != to {
		p.post(kind, from, to)
	}
}

func (p *Port) pollErrors(st *pollState) {
	er, ok := p.handle.(ErrorReporter)
	if !ok || !p.events.wantsAny(errorEventMask) {
		st.haveCounters = false
		return
	}
	var ec ErrorCounters
	err := p.withHandle(func(DeviceHandle) error {
		var err error
		ec, err = er.ErrorCounters()
		return err
	})
	if err != nil {
		p.log.Debug("error counter sample failed", "error", err)
		return
	}
	if st.haveCounters {
		prev := st.counters
		if ec.Overrun > prev.Overrun {
			p.post(EventOverrunError, false, true)
		}
		if ec.Parity > prev.Parity {
			p.post(EventParityError, false, true)
		}
		if ec.Framing > prev.Framing {
			p.post(EventFramingError, false, true)
		}
		if ec.Break > prev.Break {
			p.post(EventBreakInterrupt, false, true)
		}
	}
	st.counters, st.haveCounters = ec, true
}

func (p *Port) pollOutput() {
	if !p.outputCheck.Load() {
		return
	}
	oq, ok := p.handle.(OutputQueue)
	if !ok {
		return
	}
	var pending int
	err := p.withHandle(func(DeviceHandle) error {
		var err error
		pending, err = oq.OutputPending()
		return err
	})
	if err != nil {
		p.log.Debug("output queue sample failed", "error", err)
		return
	}
	if pending == 0 && p.outputCheck.CompareAndSwap(true, false) {
		p.post(EventOutputBufferEmpty, false, true)
	}
}
