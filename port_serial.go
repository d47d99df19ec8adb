package comm

import (
	"fmt"
	"time"
)

func (p *Port) requireSerial(op string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.desc.Kind != KindSerial {
		return unsupported(op, fmt.Sprintf("%s is a %s port", p.desc.Name, p.desc.Kind))
	}
	return nil
}

// SerialConfig returns the line parameters currently applied.
func (p *Port) SerialConfig() (SerialConfig, error) {
	if err := p.requireSerial("get serial config"); err != nil {
		return SerialConfig{}, err
	}
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	return p.serial, nil
}

// SetSerialPortParams changes baud rate, data bits, stop bits and parity
// together. On any error the previous parameters stay in effect.
func (p *Port) SetSerialPortParams(baud, dataBits int, stopBits StopBits, parity Parity) error {
	const op = "set serial port params"
	if err := p.requireSerial(op); err != nil {
		return err
	}
	if err := validateLineParams(baud, dataBits, stopBits, parity); err != nil {
		return err
	}
	return p.reconfigure(op, func(sc *SerialConfig) {
		sc.BaudRate, sc.DataBits, sc.StopBits, sc.Parity = baud, dataBits, stopBits, parity
	})
}

// FlowControlMode returns the flow control bits currently applied.
func (p *Port) FlowControlMode() (FlowControl, error) {
	sc, err := p.SerialConfig()
	return sc.FlowControl, err
}

// SetFlowControlMode replaces the flow control bits. RTS/CTS and XON/XOFF
// cannot both be requested for the same direction.
func (p *Port) SetFlowControlMode(fc FlowControl) error {
	const op = "set flow control mode"
	if err := p.requireSerial(op); err != nil {
		return err
	}
	if err := validateFlowControl(fc); err != nil {
		return err
	}
	return p.reconfigure(op, func(sc *SerialConfig) {
		sc.FlowControl = fc
	})
}

// reconfigure applies a modified copy of the current configuration. If the
// driver rejects it the previous configuration is pushed back.
func (p *Port) reconfigure(op string, mutate func(sc *SerialConfig)) error {
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	prev := p.serial
	next := prev
	mutate(&next)

	err := p.withHandle(func(h DeviceHandle) error {
		if err := h.Configure(next); err != nil {
			if rerr := h.Configure(prev); rerr != nil {
				p.log.Warn("restoring serial config failed", "config", prev.String(), "error", rerr)
			}
			return &UnsupportedOperationError{Op: op, Reason: next.String(), Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.serial = next
	p.log.Debug("serial config applied", "config", next.String())
	return nil
}

func (p *Port) lines(op string) (LineState, error) {
	if err := p.requireSerial(op); err != nil {
		return LineState{}, err
	}
	var ls LineState
	err := p.withHandle(func(h DeviceHandle) error {
		var err error
		ls, err = h.Lines()
		return err
	})
	return ls, err
}

// Lines returns all modem control lines in one device query.
func (p *Port) Lines() (LineState, error) {
	return p.lines("get lines")
}

func (p *Port) IsCTS() (bool, error) {
	ls, err := p.lines("get CTS")
	return ls.CTS, err
}

func (p *Port) IsDSR() (bool, error) {
	ls, err := p.lines("get DSR")
	return ls.DSR, err
}

func (p *Port) IsRI() (bool, error) {
	ls, err := p.lines("get RI")
	return ls.RI, err
}

func (p *Port) IsCD() (bool, error) {
	ls, err := p.lines("get CD")
	return ls.CD, err
}

func (p *Port) IsRTS() (bool, error) {
	ls, err := p.lines("get RTS")
	return ls.RTS, err
}

func (p *Port) IsDTR() (bool, error) {
	ls, err := p.lines("get DTR")
	return ls.DTR, err
}

// SetDTR sets or clears the DTR (Data Terminal Ready) signal
func (p *Port) SetDTR(state bool) error {
	if err := p.requireSerial("set DTR"); err != nil {
		return err
	}
	return p.withHandle(func(h DeviceHandle) error {
		return h.SetDTR(state)
	})
}

// SetRTS sets or clears the RTS (Request To Send) signal
func (p *Port) SetRTS(state bool) error {
	if err := p.requireSerial("set RTS"); err != nil {
		return err
	}
	return p.withHandle(func(h DeviceHandle) error {
		return h.SetRTS(state)
	})
}

// SendBreak holds the line in break condition for d. Drivers without break
// support make this a no-op.
func (p *Port) SendBreak(d time.Duration) error {
	if err := p.requireSerial("send break"); err != nil {
		return err
	}
	return p.withHandle(func(h DeviceHandle) error {
		bs, ok := h.(BreakSender)
		if !ok {
			p.log.Debug("driver cannot send break", "driver", p.driverName())
			return nil
		}
		return bs.SendBreak(d)
	})
}
