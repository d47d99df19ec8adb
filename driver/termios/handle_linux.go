//go:build linux

package termios

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	comm "github.com/allbin/go-comm"
	"golang.org/x/sys/unix"
)

// writeTimeout bounds how long Write waits for a full kernel output queue.
const writeTimeout = 5 * time.Second

type handle struct {
	fd   int
	path string
	kind comm.PortKind
}

func openHandle(path string, kind comm.PortKind) (*handle, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &handle{fd: fd, path: path, kind: kind}, nil
}

func (h *handle) Read(p []byte) (int, error) {
	n, err := unix.Read(h.fd, p)
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return 0, comm.ErrWouldBlock
	case err != nil:
		return 0, err
	case n < 0:
		return 0, nil
	}
	return n, nil
}

func (h *handle) Write(p []byte) (int, error) {
	deadline := time.Now().Add(writeTimeout)
	written := 0
	for written < len(p) {
		n, err := unix.Write(h.fd, p[written:])
		if n > 0 {
			written += n
		}
		switch {
		case errors.Is(err, unix.EAGAIN):
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return written, fmt.Errorf("write %s: output queue full", h.path)
			}
			fds := []unix.PollFd{{Fd: int32(h.fd), Events: unix.POLLOUT}}
			if _, err := unix.Poll(fds, int(min(remaining, 100*time.Millisecond).Milliseconds())); err != nil && !errors.Is(err, unix.EINTR) {
				return written, err
			}
		case errors.Is(err, unix.EINTR):
		case err != nil:
			return written, err
		}
	}
	return written, nil
}

func (h *handle) requireSerial(op string) error {
	if h.kind != comm.KindSerial {
		return &comm.UnsupportedOperationError{Op: op, Reason: h.path + " is not a serial device"}
	}
	return nil
}

// Lines reads the modem status bits using TIOCMGET
func (h *handle) Lines() (comm.LineState, error) {
	if err := h.requireSerial("get lines"); err != nil {
		return comm.LineState{}, err
	}
	status, err := unix.IoctlGetInt(h.fd, unix.TIOCMGET)
	if err != nil {
		return comm.LineState{}, err
	}
	return lineStateFromTIOCM(status), nil
}

func lineStateFromTIOCM(status int) comm.LineState {
	return comm.LineState{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		CD:  status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}
}

func (h *handle) setModemBit(bit int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(h.fd, unix.TIOCMBIS, bit)
	}
	return unix.IoctlSetPointerInt(h.fd, unix.TIOCMBIC, bit)
}

// SetDTR sets DTR signal state
func (h *handle) SetDTR(state bool) error {
	if err := h.requireSerial("set DTR"); err != nil {
		return err
	}
	return h.setModemBit(unix.TIOCM_DTR, state)
}

// SetRTS sets RTS signal state
func (h *handle) SetRTS(state bool) error {
	if err := h.requireSerial("set RTS"); err != nil {
		return err
	}
	return h.setModemBit(unix.TIOCM_RTS, state)
}

// Configure switches the device to raw mode with the given line settings.
func (h *handle) Configure(cfg comm.SerialConfig) error {
	if err := h.requireSerial("configure"); err != nil {
		return err
	}
	t, err := unix.IoctlGetTermios(h.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}
	if err := applyConfig(t, cfg); err != nil {
		return err
	}
	if err := unix.IoctlSetTermios(h.fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// applyConfig writes cfg into t as a raw, non-canonical termios.
func applyConfig(t *unix.Termios, cfg comm.SerialConfig) error {
	speed, err := getBaudRate(cfg.BaudRate)
	if err != nil {
		return err
	}

	t.Cflag = unix.CREAD | unix.CLOCAL
	t.Iflag = 0 // No input processing
	t.Oflag = 0 // No output processing
	t.Lflag = 0 // No line processing (raw mode)

	// The device is non-blocking; the port's poller does the waiting.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	t.Cflag = (t.Cflag &^ unix.CBAUD) | speed
	t.Ispeed = speed
	t.Ospeed = speed

	switch cfg.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	case 8:
		t.Cflag |= unix.CS8
	default:
		return fmt.Errorf("unsupported data bits %d", cfg.DataBits)
	}

	switch cfg.StopBits {
	case comm.StopBits1:
	case comm.StopBits2:
		t.Cflag |= unix.CSTOPB
	default:
		return fmt.Errorf("termios cannot set %s stop bits", cfg.StopBits)
	}

	switch cfg.Parity {
	case comm.ParityNone:
	case comm.ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case comm.ParityEven:
		t.Cflag |= unix.PARENB
	case comm.ParityMark:
		t.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case comm.ParitySpace:
		t.Cflag |= unix.PARENB | unix.CMSPAR
	}

	// Linux has one CRTSCTS flag for both directions.
	if cfg.FlowControl.Hardware() {
		t.Cflag |= unix.CRTSCTS
	}
	if cfg.FlowControl&comm.FlowControlXonXoffIn != 0 {
		t.Iflag |= unix.IXOFF
	}
	if cfg.FlowControl&comm.FlowControlXonXoffOut != 0 {
		t.Iflag |= unix.IXON
	}
	return nil
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	if speed, ok := baudRates[rate]; ok {
		return speed, nil
	}
	return 0, fmt.Errorf("unsupported baud rate %d", rate)
}

var baudRates = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// SendBreak holds the line in break state for d.
func (h *handle) SendBreak(d time.Duration) error {
	if err := h.requireSerial("send break"); err != nil {
		return err
	}
	if err := unix.IoctlSetInt(h.fd, unix.TIOCSBRK, 0); err != nil {
		return err
	}
	time.Sleep(d)
	return unix.IoctlSetInt(h.fd, unix.TIOCCBRK, 0)
}

// OutputPending returns the bytes still in the kernel output queue.
func (h *handle) OutputPending() (int, error) {
	return unix.IoctlGetInt(h.fd, unix.TIOCOUTQ)
}

// serialICounter mirrors struct serial_icounter_struct.
type serialICounter struct {
	CTS, DSR, RNG, DCD int32
	RX, TX             int32
	Frame, Overrun     int32
	Parity, Brk        int32
	BufOverrun         int32
	reserved           [9]int32
}

// ErrorCounters reads the line error counts with TIOCGICOUNT. Not every
// UART driver implements it.
func (h *handle) ErrorCounters() (comm.ErrorCounters, error) {
	if err := h.requireSerial("get error counters"); err != nil {
		return comm.ErrorCounters{}, err
	}
	var c serialICounter
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(h.fd), uintptr(unix.TIOCGICOUNT), uintptr(unsafe.Pointer(&c)))
	if errno != 0 {
		return comm.ErrorCounters{}, errno
	}
	return comm.ErrorCounters{
		Overrun: uint64(c.Overrun) + uint64(c.BufOverrun),
		Parity:  uint64(c.Parity),
		Framing: uint64(c.Frame),
		Break:   uint64(c.Brk),
	}, nil
}

func (h *handle) Close() error {
	return unix.Close(h.fd)
}
