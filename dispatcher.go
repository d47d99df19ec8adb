package comm

import (
	"sync"

	"github.com/allbin/go-comm/logger"
	"github.com/eapache/queue"
	"go.uber.org/atomic"
)

// dispatcher delivers a port's line events to its single listener from a
// dedicated goroutine. Producers never block: events wait in an unbounded
// FIFO until the listener is free.
type dispatcher struct {
	mu       sync.Mutex
	listener EventListener
	pending  *queue.Queue

	interest atomic.Uint32

	wake    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
	once    sync.Once

	stats *portCounters
	log   logger.Logger
}

func newDispatcher(stats *portCounters, log logger.Logger) *dispatcher {
	return &dispatcher{
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		stats:   stats,
		log:     log,
	}
}

func (d *dispatcher) setListener(l EventListener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener != nil {
		return ErrTooManyListeners
	}
	d.listener = l
	return nil
}

func (d *dispatcher) removeListener() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = nil
}

func (d *dispatcher) hasListener() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listener != nil
}

func (d *dispatcher) notifyOn(kind EventKind, enable bool) {
	for {
		old := d.interest.Load()
		next := old &^ kind.bit()
		if enable {
			next = old | kind.bit()
		}
		if d.interest.CompareAndSwap(old, next) {
			return
		}
	}
}

func (d *dispatcher) wants(kind EventKind) bool {
	return d.interest.Load()&kind.bit() != 0
}

func (d *dispatcher) wantsAny(mask uint32) bool {
	return d.interest.Load()&mask != 0
}

// post queues ev if its kind is enabled.
func (d *dispatcher) post(ev LineEvent) {
	if !d.wants(ev.Kind) {
		return
	}
	select {
	case <-d.stopCh:
		return
	default:
	}

	d.mu.Lock()
	d.pending.Add(ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) next() (LineEvent, EventListener, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending.Length() == 0 {
		return LineEvent{}, nil, false
	}
	ev := d.pending.Remove().(LineEvent)
	return ev, d.listener, true
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.wake:
		}

		for {
			ev, l, ok := d.next()
			if !ok {
				break
			}
			select {
			case <-d.stopCh:
				return
			default:
			}
			if l == nil || !d.wants(ev.Kind) {
				d.stats.eventsDropped.Inc()
				continue
			}
			d.deliver(l, ev)
		}
	}
}

func (d *dispatcher) deliver(l EventListener, ev LineEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("event listener panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	l.SerialEvent(ev)
	d.stats.eventsDelivered.Inc()
}

// stop detaches the listener and ends the goroutine. It does not wait for
// an in-flight callback, so a listener may close its own port.
func (d *dispatcher) stop() {
	d.once.Do(func() {
		close(d.stopCh)
		d.mu.Lock()
		d.listener = nil
		dropped := d.pending.Length()
		for d.pending.Length() > 0 {
			d.pending.Remove()
		}
		d.mu.Unlock()
		d.stats.eventsDropped.Add(uint64(dropped))
	})
}
