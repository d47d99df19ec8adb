// Package termios is a Linux driver that talks to serial and parallel
// devices under /dev through raw file descriptors and termios ioctls.
//
// Ports are registered under their full device path:
//
//	mgr, err := comm.NewManager(comm.WithDrivers(termios.New()))
//	port, err := mgr.Acquire("/dev/ttyUSB0", "my-app", time.Second)
package termios

import (
	"fmt"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/logger"
)

const defaultDevDir = "/dev"

// Driver discovers and opens devices on the local machine
type Driver struct {
	dir string
	log logger.Logger
}

// Option configures a Driver
type Option func(*Driver)

// WithDevDir scans dir instead of /dev.
func WithDevDir(dir string) Option {
	return func(d *Driver) { d.dir = dir }
}

func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// New creates a termios driver.
func New(opts ...Option) *Driver {
	d := &Driver{dir: defaultDevDir, log: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string { return "termios" }

// Initialize registers every serial and parallel device found in the
// device directory.
func (d *Driver) Initialize(r *comm.Registry) error {
	found, err := scanPorts(d.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", d.dir, err)
	}
	for _, f := range found {
		if err := r.Register(f.path, f.kind, d); err != nil {
			return err
		}
		d.log.Debug("registered port", "port", f.path, "kind", f.kind.String())
	}
	return nil
}

// Open opens the device for non-blocking I/O. Line parameters are applied
// by the caller through Configure.
func (d *Driver) Open(desc comm.PortDescriptor) (comm.DeviceHandle, error) {
	h, err := openHandle(desc.Name, desc.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", desc.Name, err)
	}
	return h, nil
}
