package comm

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/allbin/go-comm/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

// OwnershipEvent is delivered to ownership listeners
type OwnershipEvent int

const (
	PortOwned OwnershipEvent = iota + 1
	PortUnowned
	OwnershipRequested
)

func (e OwnershipEvent) String() string {
	switch e {
	case PortOwned:
		return "PORT_OWNED"
	case PortUnowned:
		return "PORT_UNOWNED"
	case OwnershipRequested:
		return "PORT_OWNERSHIP_REQUESTED"
	default:
		return fmt.Sprintf("OwnershipEvent(%d)", int(e))
	}
}

// OwnershipListener is told about ownership changes of a port.
//
// OwnershipRequested is delivered synchronously inside the requester's
// Acquire call, before it starts waiting. An owner willing to hand over
// the port should Close it from within the callback. A slow listener
// delays the requester.
type OwnershipListener interface {
	OwnershipChange(port string, ev OwnershipEvent)
}

// OwnershipListenerFunc adapts a function to OwnershipListener
type OwnershipListenerFunc func(port string, ev OwnershipEvent)

func (f OwnershipListenerFunc) OwnershipChange(port string, ev OwnershipEvent) { f(port, ev) }

// Subscription identifies a registered ownership listener
type Subscription uint64

type subscription struct {
	id Subscription
	l  OwnershipListener
}

// ownershipRecord is the arbiter state of one port. All fields are guarded
// by mu; listener callbacks run without it.
type ownershipRecord struct {
	mu        sync.Mutex
	name      string
	owned     bool
	owner     string
	port      *Port
	pending   string
	listeners []subscription

	// dispatchers counts the ownership callbacks each goroutine is running
	// for this port. A release made by a goroutine inside a callback emits
	// no event of its own.
	dispatchers map[uint64]int

	// released is closed and replaced whenever the port becomes unowned.
	released chan struct{}
}

func (r *ownershipRecord) snapshotLocked() []subscription {
	return append([]subscription(nil), r.listeners...)
}

func (r *ownershipRecord) enterLocked(gid uint64) {
	if r.dispatchers == nil {
		r.dispatchers = make(map[uint64]int)
	}
	r.dispatchers[gid]++
}

func (r *ownershipRecord) leave(gid uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dispatchers[gid]--; r.dispatchers[gid] <= 0 {
		delete(r.dispatchers, gid)
	}
}

// goroutineID parses the id of the calling goroutine from its stack header,
// "goroutine 18 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

type portOpener func(desc PortDescriptor, owner string) (*Port, error)

// Arbiter serializes acquisition of ports and runs the cooperative
// hand-off protocol between owners and requesters.
type Arbiter struct {
	registry *Registry
	records  *xsync.MapOf[string, *ownershipRecord]
	nextID   atomic.Uint64
	open     portOpener
	log      logger.Logger
}

func newArbiter(registry *Registry, open portOpener, log logger.Logger) *Arbiter {
	return &Arbiter{
		registry: registry,
		records:  xsync.NewMapOf[string, *ownershipRecord](),
		open:     open,
		log:      log,
	}
}

func (a *Arbiter) record(name string) *ownershipRecord {
	rec, _ := a.records.LoadOrCompute(name, func() *ownershipRecord {
		return &ownershipRecord{name: name, released: make(chan struct{})}
	})
	return rec
}

// notify runs ownership callbacks outside the record lock. The caller has
// already entered gid into the record's dispatchers.
func (a *Arbiter) notify(rec *ownershipRecord, gid uint64, listeners []subscription, ev OwnershipEvent) {
	defer rec.leave(gid)
	for _, s := range listeners {
		a.callListener(rec.name, s, ev)
	}
}

func (a *Arbiter) callListener(port string, s subscription, ev OwnershipEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("ownership listener panicked", "port", port, "event", ev.String(), "panic", r)
		}
	}()
	s.l.OwnershipChange(port, ev)
}

// AcquireContext obtains exclusive ownership of the named port for app.
//
// If another application owns the port, OwnershipRequested is delivered to
// the port's listeners first. If the owner closes the port during that
// callback the acquisition proceeds; otherwise it waits until the port is
// released or ctx is done, in which case a *PortInUseError naming the
// current owner is returned. A ctx that is already done fails fast after
// the callback.
func (a *Arbiter) AcquireContext(ctx context.Context, name, app string) (*Port, error) {
	if app == "" {
		return nil, ErrInvalidAppName
	}
	desc, err := a.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	rec := a.record(name)
	gid := goroutineID()
	requested := false
	for {
		rec.mu.Lock()
		if !rec.owned {
			port, err := a.open(desc, app)
			if err != nil {
				if rec.pending == app {
					rec.pending = ""
				}
				rec.mu.Unlock()
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			rec.owned, rec.owner, rec.port = true, app, port
			if rec.pending == app {
				rec.pending = ""
			}
			listeners := rec.snapshotLocked()
			rec.enterLocked(gid)
			rec.mu.Unlock()

			a.log.Debug("port owned", "port", name, "owner", app)
			a.notify(rec, gid, listeners, PortOwned)
			return port, nil
		}

		if !requested {
			requested = true
			if rec.pending == "" {
				rec.pending = app
			}
			listeners := rec.snapshotLocked()
			rec.enterLocked(gid)
			owner := rec.owner
			rec.mu.Unlock()

			a.log.Debug("ownership requested", "port", name, "owner", owner, "requester", app)
			a.notify(rec, gid, listeners, OwnershipRequested)
			continue
		}

		released := rec.released
		rec.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			rec.mu.Lock()
			if rec.owned {
				owner := rec.owner
				if rec.pending == app {
					rec.pending = ""
				}
				rec.mu.Unlock()
				return nil, &PortInUseError{Port: name, Owner: owner}
			}
			rec.mu.Unlock()
			// released at the deadline; try once more
		}
	}
}

// release makes the port unowned if port is its current session. A
// release made from inside an ownership callback of the same port, such as
// an owner closing in response to OwnershipRequested, emits no PortUnowned.
func (a *Arbiter) release(name string, port *Port) {
	rec := a.record(name)
	gid := goroutineID()

	rec.mu.Lock()
	if !rec.owned || rec.port != port {
		rec.mu.Unlock()
		return
	}
	owner := rec.owner
	rec.owned, rec.owner, rec.port = false, "", nil
	close(rec.released)
	rec.released = make(chan struct{})

	nested := rec.dispatchers[gid] > 0
	pending := rec.pending
	var listeners []subscription
	if !nested {
		listeners = rec.snapshotLocked()
		rec.enterLocked(gid)
	}
	rec.mu.Unlock()

	a.log.Debug("port released", "port", name, "owner", owner, "pending", pending, "nested", nested)
	if !nested {
		a.notify(rec, gid, listeners, PortUnowned)
	}
}

// AddOwnershipListener registers l for ownership events of the named port.
func (a *Arbiter) AddOwnershipListener(name string, l OwnershipListener) (Subscription, error) {
	if l == nil {
		return 0, ErrInvalidConfig
	}
	if _, err := a.registry.Lookup(name); err != nil {
		return 0, err
	}
	rec := a.record(name)
	id := Subscription(a.nextID.Inc())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.listeners = append(rec.listeners, subscription{id: id, l: l})
	return id, nil
}

// RemoveOwnershipListener unregisters a listener. Unknown subscriptions
// are ignored.
func (a *Arbiter) RemoveOwnershipListener(name string, sub Subscription) {
	rec, ok := a.records.Load(name)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, s := range rec.listeners {
		if s.id == sub {
			rec.listeners = append(rec.listeners[:i:i], rec.listeners[i+1:]...)
			return
		}
	}
}

// CurrentOwner returns the owning application of the named port.
func (a *Arbiter) CurrentOwner(name string) (string, bool, error) {
	if _, err := a.registry.Lookup(name); err != nil {
		return "", false, err
	}
	rec, ok := a.records.Load(name)
	if !ok {
		return "", false, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.owner, rec.owned, nil
}

// IsCurrentlyOwned reports whether the named port is owned.
func (a *Arbiter) IsCurrentlyOwned(name string) (bool, error) {
	_, owned, err := a.CurrentOwner(name)
	return owned, err
}
