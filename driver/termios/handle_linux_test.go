//go:build linux

package termios

import (
	"errors"
	"testing"

	comm "github.com/allbin/go-comm"
	"golang.org/x/sys/unix"
)

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		rate     int
		expected uint32
		wantErr  bool
	}{
		{9600, unix.B9600, false},
		{115200, unix.B115200, false},
		{921600, unix.B921600, false},
		{4000000, unix.B4000000, false},
		{12345, 0, true},
		{0, 0, true},
	}

	for _, test := range tests {
		speed, err := getBaudRate(test.rate)
		if (err != nil) != test.wantErr {
			t.Errorf("getBaudRate(%d) error = %v, wantErr %v", test.rate, err, test.wantErr)
			continue
		}
		if speed != test.expected {
			t.Errorf("getBaudRate(%d) = %#x, expected %#x", test.rate, speed, test.expected)
		}
	}
}

func TestBaudTableMatchesSupportedRates(t *testing.T) {
	for rate := range baudRates {
		if !comm.IsSupportedBaudRate(rate) {
			t.Errorf("termios rate %d is not a supported comm rate", rate)
		}
	}
}

func TestApplyConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     comm.SerialConfig
		set     uint32
		clear   uint32
		iflag   uint32
		wantErr bool
	}{
		{
			name:  "8N1",
			cfg:   comm.DefaultSerialConfig(),
			set:   unix.CS8 | unix.CREAD | unix.CLOCAL,
			clear: unix.PARENB | unix.CSTOPB | unix.CRTSCTS,
		},
		{
			name:  "7E2",
			cfg:   comm.SerialConfig{BaudRate: 19200, DataBits: 7, StopBits: comm.StopBits2, Parity: comm.ParityEven},
			set:   unix.CS7 | unix.PARENB | unix.CSTOPB,
			clear: unix.PARODD,
		},
		{
			name: "mark parity",
			cfg:  comm.SerialConfig{BaudRate: 9600, DataBits: 8, StopBits: comm.StopBits1, Parity: comm.ParityMark},
			set:  unix.PARENB | unix.PARODD | unix.CMSPAR,
		},
		{
			name:  "space parity",
			cfg:   comm.SerialConfig{BaudRate: 9600, DataBits: 8, StopBits: comm.StopBits1, Parity: comm.ParitySpace},
			set:   unix.PARENB | unix.CMSPAR,
			clear: unix.PARODD,
		},
		{
			name: "rtscts",
			cfg: comm.SerialConfig{BaudRate: 115200, DataBits: 8, StopBits: comm.StopBits1,
				FlowControl: comm.FlowControlRTSCTSIn | comm.FlowControlRTSCTSOut},
			set: unix.CRTSCTS,
		},
		{
			name: "xonxoff",
			cfg: comm.SerialConfig{BaudRate: 115200, DataBits: 8, StopBits: comm.StopBits1,
				FlowControl: comm.FlowControlXonXoffIn | comm.FlowControlXonXoffOut},
			clear: unix.CRTSCTS,
			iflag: unix.IXON | unix.IXOFF,
		},
		{
			name:    "one and a half stop bits",
			cfg:     comm.SerialConfig{BaudRate: 9600, DataBits: 5, StopBits: comm.StopBits1Half},
			wantErr: true,
		},
		{
			name:    "bad baud",
			cfg:     comm.SerialConfig{BaudRate: 12345, DataBits: 8, StopBits: comm.StopBits1},
			wantErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var tio unix.Termios
			tio.Lflag = unix.ICANON | unix.ECHO
			err := applyConfig(&tio, test.cfg)
			if (err != nil) != test.wantErr {
				t.Fatalf("applyConfig() error = %v, wantErr %v", err, test.wantErr)
			}
			if test.wantErr {
				return
			}
			if tio.Cflag&test.set != test.set {
				t.Errorf("Cflag %#x missing bits %#x", tio.Cflag, test.set&^tio.Cflag)
			}
			if tio.Cflag&test.clear != 0 {
				t.Errorf("Cflag %#x has unexpected bits %#x", tio.Cflag, tio.Cflag&test.clear)
			}
			if tio.Iflag != test.iflag {
				t.Errorf("Iflag = %#x, expected %#x", tio.Iflag, test.iflag)
			}
			if tio.Lflag != 0 {
				t.Errorf("Lflag = %#x, expected raw mode", tio.Lflag)
			}
			if tio.Cc[unix.VMIN] != 0 || tio.Cc[unix.VTIME] != 0 {
				t.Errorf("VMIN/VTIME = %d/%d, expected 0/0", tio.Cc[unix.VMIN], tio.Cc[unix.VTIME])
			}
		})
	}
}

func TestLineStateFromTIOCM(t *testing.T) {
	ls := lineStateFromTIOCM(unix.TIOCM_CTS | unix.TIOCM_CAR | unix.TIOCM_DTR)
	expected := comm.LineState{CTS: true, CD: true, DTR: true}
	if ls != expected {
		t.Errorf("lineStateFromTIOCM = %+v, expected %+v", ls, expected)
	}

	if lineStateFromTIOCM(0) != (comm.LineState{}) {
		t.Error("expected all lines low")
	}
}

func TestParallelHandleRejectsSerialOps(t *testing.T) {
	h := &handle{fd: -1, path: "/dev/lp0", kind: comm.KindParallel}

	if _, err := h.Lines(); !errors.Is(err, comm.ErrUnsupportedOperation) {
		t.Errorf("Lines() error = %v, expected unsupported", err)
	}
	if err := h.Configure(comm.DefaultSerialConfig()); !errors.Is(err, comm.ErrUnsupportedOperation) {
		t.Errorf("Configure() error = %v, expected unsupported", err)
	}
	if err := h.SetDTR(true); !errors.Is(err, comm.ErrUnsupportedOperation) {
		t.Errorf("SetDTR() error = %v, expected unsupported", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	d := New()
	_, err := d.Open(comm.PortDescriptor{Name: "/dev/ttyDOESNOTEXIST0", Kind: comm.KindSerial})
	if err == nil {
		t.Error("expected error opening a missing device")
	}
}
