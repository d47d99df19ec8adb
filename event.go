package comm

import (
	"fmt"
	"sync"
	"time"
)

// EventKind identifies the condition a LineEvent reports
type EventKind int

const (
	EventDataAvailable EventKind = iota + 1
	EventOutputBufferEmpty
	EventCTS
	EventDSR
	EventRI
	EventCD
	EventOverrunError
	EventParityError
	EventFramingError
	EventBreakInterrupt
)

var eventKindNames = map[EventKind]string{
	EventDataAvailable:     "DATA_AVAILABLE",
	EventOutputBufferEmpty: "OUTPUT_BUFFER_EMPTY",
	EventCTS:               "CTS",
	EventDSR:               "DSR",
	EventRI:                "RI",
	EventCD:                "CD",
	EventOverrunError:      "OE",
	EventParityError:       "PE",
	EventFramingError:      "FE",
	EventBreakInterrupt:    "BI",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

func (k EventKind) bit() uint32 {
	return 1 << uint(k)
}

const (
	lineEventMask  = uint32(1<<EventCTS | 1<<EventDSR | 1<<EventRI | 1<<EventCD)
	errorEventMask = uint32(1<<EventOverrunError | 1<<EventParityError | 1<<EventFramingError | 1<<EventBreakInterrupt)
)

// LineEvent reports a data, line-state or error condition change on a port.
type LineEvent struct {
	Port     string
	Kind     EventKind
	OldValue bool
	NewValue bool
	Time     time.Time
}

func (e LineEvent) String() string {
	return fmt.Sprintf("%s %s %v->%v", e.Port, e.Kind, e.OldValue, e.NewValue)
}

// EventListener receives the line events of one open port. Calls are made
// from the port's dispatcher goroutine, one at a time, in detection order.
type EventListener interface {
	SerialEvent(ev LineEvent)
}

// EventListenerFunc adapts a function to EventListener
type EventListenerFunc func(ev LineEvent)

func (f EventListenerFunc) SerialEvent(ev LineEvent) { f(ev) }

// MultiListener fans one port's events out to several listeners. Attach it
// as the port's single listener and add the real listeners to it.
type MultiListener struct {
	mu        sync.RWMutex
	listeners []EventListener
}

// Add appends l to the fan-out list.
func (m *MultiListener) Add(l EventListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Len returns the number of listeners.
func (m *MultiListener) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

func (m *MultiListener) SerialEvent(ev LineEvent) {
	m.mu.RLock()
	listeners := append([]EventListener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, l := range listeners {
		l.SerialEvent(ev)
	}
}
