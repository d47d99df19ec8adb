package comm

import (
	"sync"
	"testing"
	"time"

	"github.com/allbin/go-comm/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []LineEvent
}

func (r *recorder) SerialEvent(ev LineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func startDispatcher(t *testing.T, log logger.Logger) (*dispatcher, *portCounters) {
	t.Helper()
	stats := &portCounters{}
	d := newDispatcher(stats, log)
	go d.run()
	t.Cleanup(func() {
		d.stop()
		<-d.stopped
	})
	return d, stats
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	d, stats := startDispatcher(t, logger.Nop())
	rec := &recorder{}
	require.NoError(t, d.setListener(rec))

	d.notifyOn(EventCTS, true)
	d.notifyOn(EventDSR, true)

	want := []EventKind{EventCTS, EventDSR, EventCTS, EventCTS, EventDSR}
	for _, k := range want {
		d.post(LineEvent{Kind: k})
	}

	require.Eventually(t, func() bool { return len(rec.kinds()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, rec.kinds())
	assert.Equal(t, uint64(len(want)), stats.eventsDelivered.Load())
}

func TestDispatcherSkipsDisabledKinds(t *testing.T) {
	d, _ := startDispatcher(t, logger.Nop())
	rec := &recorder{}
	require.NoError(t, d.setListener(rec))

	d.notifyOn(EventRI, true)
	d.post(LineEvent{Kind: EventCD})
	d.post(LineEvent{Kind: EventRI})

	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []EventKind{EventRI}, rec.kinds())

	d.notifyOn(EventRI, false)
	assert.False(t, d.wants(EventRI))
	assert.False(t, d.wantsAny(lineEventMask))
}

func TestDispatcherSingleListener(t *testing.T) {
	d, _ := startDispatcher(t, logger.Nop())
	first := &recorder{}

	require.NoError(t, d.setListener(first))
	assert.ErrorIs(t, d.setListener(&recorder{}), ErrTooManyListeners)
	assert.True(t, d.hasListener())

	d.removeListener()
	assert.False(t, d.hasListener())
	assert.NoError(t, d.setListener(&recorder{}))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	log := logger.NewMockLogger()
	log.On("Error", "event listener panicked", mock.Anything).Return()

	d, _ := startDispatcher(t, log)
	rec := &recorder{}
	calls := 0
	require.NoError(t, d.setListener(EventListenerFunc(func(ev LineEvent) {
		calls++
		if calls == 1 {
			panic("listener bug")
		}
		rec.SerialEvent(ev)
	})))
	d.notifyOn(EventCD, true)

	d.post(LineEvent{Kind: EventCD, NewValue: true})
	d.post(LineEvent{Kind: EventCD, OldValue: true})

	require.Eventually(t, func() bool { return len(rec.kinds()) == 1 }, time.Second, time.Millisecond)
	log.AssertCalled(t, "Error", "event listener panicked", mock.Anything)
}

func TestDispatcherStopDropsPending(t *testing.T) {
	stats := &portCounters{}
	d := newDispatcher(stats, logger.Nop())
	d.notifyOn(EventDataAvailable, true)
	require.NoError(t, d.setListener(&recorder{}))

	d.post(LineEvent{Kind: EventDataAvailable})
	d.post(LineEvent{Kind: EventDataAvailable})
	d.stop()
	d.stop()

	assert.Equal(t, uint64(2), stats.eventsDropped.Load())
	assert.False(t, d.hasListener())

	d.post(LineEvent{Kind: EventDataAvailable})
	assert.Equal(t, 0, d.pending.Length())
}

func TestMultiListenerFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var m MultiListener
	m.Add(a)
	m.Add(b)
	assert.Equal(t, 2, m.Len())

	m.SerialEvent(LineEvent{Kind: EventBreakInterrupt})
	assert.Equal(t, []EventKind{EventBreakInterrupt}, a.kinds())
	assert.Equal(t, []EventKind{EventBreakInterrupt}, b.kinds())
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "DATA_AVAILABLE", EventDataAvailable.String())
	assert.Equal(t, "OE", EventOverrunError.String())
	assert.Equal(t, "EventKind(99)", EventKind(99).String())

	ev := LineEvent{Port: "COM1", Kind: EventCTS, NewValue: true}
	assert.Equal(t, "COM1 CTS false->true", ev.String())
}
