package comm

import (
	"fmt"

	"go.uber.org/atomic"
)

type portCounters struct {
	bytesRead       atomic.Uint64
	bytesWritten    atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64
	readTimeouts    atomic.Uint64
}

// PortStats is a snapshot of the counters of one open port
type PortStats struct {
	BytesRead       uint64
	BytesWritten    uint64
	EventsDelivered uint64
	EventsDropped   uint64
	ReadTimeouts    uint64
}

func (c *portCounters) snapshot() PortStats {
	return PortStats{
		BytesRead:       c.bytesRead.Load(),
		BytesWritten:    c.bytesWritten.Load(),
		EventsDelivered: c.eventsDelivered.Load(),
		EventsDropped:   c.eventsDropped.Load(),
		ReadTimeouts:    c.readTimeouts.Load(),
	}
}

func (s PortStats) String() string {
	return fmt.Sprintf("rx=%d tx=%d events=%d dropped=%d timeouts=%d",
		s.BytesRead, s.BytesWritten, s.EventsDelivered, s.EventsDropped, s.ReadTimeouts)
}
