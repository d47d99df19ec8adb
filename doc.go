// Package comm is a communications-port layer for serial and parallel
// devices. It discovers ports through pluggable drivers, arbitrates exclusive
// ownership of each port between applications, and delivers line-state and
// data events to a listener while offering byte-stream I/O whose blocking is
// governed by receive framing, timeout and threshold.
//
// # Basic Usage
//
// Create a Manager with one or more drivers and acquire a port by name:
//
//	mgr, err := comm.NewManager(comm.WithDrivers(termios.New()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	port, err := mgr.Acquire("/dev/ttyUSB0", "my-app", 2*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("AT\r"))
//	buf := make([]byte, 256)
//	n, err = port.Read(buf)
//
// Drivers live in sub-packages: driver/termios talks to Linux devices
// directly, driver/native wraps go.bug.st/serial, and driver/loopback is an
// in-memory driver for tests and demos.
//
// # Ownership
//
// At most one application owns a port. A second Acquire notifies the
// port's ownership listeners with OwnershipRequested and then waits up to its
// timeout for the owner to Close:
//
//	sub, _ := mgr.AddOwnershipListener("COM1", comm.OwnershipListenerFunc(
//	    func(name string, ev comm.OwnershipEvent) {
//	        if ev == comm.OwnershipRequested {
//	            port.Close() // hand the port over
//	        }
//	    }))
//	defer mgr.RemoveOwnershipListener("COM1", sub)
//
// Listeners run synchronously in the requester's goroutine, so a Close from
// inside the callback hands the port over before Acquire continues. If the
// owner keeps the port, Acquire fails with a *PortInUseError naming it.
//
// # Read Policies
//
// How long Read blocks is decided by three independent settings:
//
//	port.EnableReceiveFraming('\n')                 // return at the framing byte
//	port.EnableReceiveTimeout(500 * time.Millisecond) // return what arrived by then
//	port.EnableReceiveThreshold(16)                  // return once 16 bytes are buffered
//
// With none enabled, Read waits for the first byte. A zero timeout or
// threshold switches to polling: the buffer is re-checked every poll
// interval instead of on arrival. A timeout that passes with nothing
// buffered returns ErrReadTimeout.
//
// # Events
//
// Each open port has a single event listener, called from the port's
// dispatcher goroutine in detection order. Only enabled kinds are delivered:
//
//	port.AddEventListener(comm.EventListenerFunc(func(ev comm.LineEvent) {
//	    fmt.Println(ev.Kind, ev.OldValue, "->", ev.NewValue)
//	}))
//	port.NotifyOnDataAvailable(true)
//	port.NotifyOnCTS(true)
//
// Use MultiListener to fan events out to several consumers.
//
// # Serial Settings
//
// New serial ports are configured with the Manager's default SerialConfig
// (9600 8N1, no flow control unless WithDefaultSerialConfig says otherwise).
// SetSerialPortParams and SetFlowControlMode are all-or-nothing: on any
// rejection the previous settings stay in effect and the error wraps
// ErrUnsupportedOperation.
//
// # Error Handling
//
// Use errors.Is with the sentinels in errors.go:
//
//	if errors.Is(err, comm.ErrPortInUse) {
//	    var inUse *comm.PortInUseError
//	    errors.As(err, &inUse)
//	    fmt.Println("owned by", inUse.Owner)
//	}
package comm
