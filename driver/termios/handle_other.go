//go:build !linux

package termios

import (
	"errors"

	comm "github.com/allbin/go-comm"
)

var errNotLinux = errors.New("termios driver requires linux")

func openHandle(path string, _ comm.PortKind) (comm.DeviceHandle, error) {
	return nil, &comm.UnsupportedOperationError{Op: "open " + path, Err: errNotLinux}
}
