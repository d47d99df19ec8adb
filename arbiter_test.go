package comm_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/driver/loopback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ownershipLog struct {
	mu     sync.Mutex
	events []comm.OwnershipEvent
}

func (l *ownershipLog) OwnershipChange(_ string, ev comm.OwnershipEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *ownershipLog) snapshot() []comm.OwnershipEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]comm.OwnershipEvent(nil), l.events...)
}

// COM1 is acquired by app1 and app2 asks for it without app1 giving it up.
func TestAcquireContendedPortTimesOut(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))

	p1, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	defer p1.Close()

	start := time.Now()
	p2, err := m.Acquire("COM1", "app2", time.Second)
	elapsed := time.Since(start)

	assert.Nil(t, p2)
	assert.ErrorIs(t, err, comm.ErrPortInUse)
	var inUse *comm.PortInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, "app1", inUse.Owner)
	assert.Equal(t, "COM1", inUse.Port)
	assert.GreaterOrEqual(t, elapsed, 950*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)

	owner, owned, err := m.CurrentOwner("COM1")
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Equal(t, "app1", owner)
}

func TestAcquireUnknownPort(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Acquire("COM7", "app", time.Second)
	assert.ErrorIs(t, err, comm.ErrNoSuchPort)

	_, _, err = m.CurrentOwner("COM7")
	assert.ErrorIs(t, err, comm.ErrNoSuchPort)
	_, err = m.AddOwnershipListener("COM7", &ownershipLog{})
	assert.ErrorIs(t, err, comm.ErrNoSuchPort)
}

func TestAcquireRequiresAppName(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	_, err := m.Acquire("COM1", "", time.Second)
	assert.ErrorIs(t, err, comm.ErrInvalidAppName)
}

func TestOwnerHandsOverInsideCallback(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	log := &ownershipLog{}
	_, err := m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)

	var p1 *comm.Port
	_, err = m.AddOwnershipListener("COM1", comm.OwnershipListenerFunc(func(_ string, ev comm.OwnershipEvent) {
		if ev == comm.OwnershipRequested {
			assert.NoError(t, p1.Close())
		}
	}))
	require.NoError(t, err)

	p1, err = m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)

	start := time.Now()
	p2, err := m.Acquire("COM1", "app2", time.Second)
	require.NoError(t, err)
	defer p2.Close()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "app2", p2.Owner())

	owner, _, err := m.CurrentOwner("COM1")
	require.NoError(t, err)
	assert.Equal(t, "app2", owner)

	// the close inside the callback does not emit its own PortUnowned
	assert.Equal(t, []comm.OwnershipEvent{comm.PortOwned, comm.OwnershipRequested, comm.PortOwned}, log.snapshot())
}

// app1 closes on its own goroutine while another listener is still busy
// with app2's request; that release is not part of the hand-off.
func TestCloseDuringSlowCallbackEmitsUnowned(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	log := &ownershipLog{}
	_, err := m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)
	_, err = m.AddOwnershipListener("COM1", comm.OwnershipListenerFunc(func(_ string, ev comm.OwnershipEvent) {
		if ev == comm.OwnershipRequested {
			time.Sleep(200 * time.Millisecond)
		}
	}))
	require.NoError(t, err)

	p1, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = p1.Close()
	}()

	p2, err := m.Acquire("COM1", "app2", 0)
	require.NoError(t, err)
	defer p2.Close()

	assert.Equal(t, []comm.OwnershipEvent{
		comm.PortOwned, comm.OwnershipRequested, comm.PortUnowned, comm.PortOwned,
	}, log.snapshot())
}

func TestReleaseWakesWaitingRequester(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	log := &ownershipLog{}
	_, err := m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)

	p1, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = p1.Close()
	}()

	p2, err := m.Acquire("COM1", "app2", 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, p2.Close())

	assert.Equal(t, []comm.OwnershipEvent{
		comm.PortOwned, comm.OwnershipRequested, comm.PortUnowned, comm.PortOwned, comm.PortUnowned,
	}, log.snapshot())
}

func TestZeroTimeoutFailsFastAfterCallback(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	p1, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	defer p1.Close()

	log := &ownershipLog{}
	_, err = m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Acquire("COM1", "app2", 0)
	assert.ErrorIs(t, err, comm.ErrPortInUse)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.Equal(t, []comm.OwnershipEvent{comm.OwnershipRequested}, log.snapshot())
}

func TestAcquireContextCancelled(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	p1, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	defer p1.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err = m.AcquireContext(ctx, "COM1", "app2")
	var inUse *comm.PortInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, "app1", inUse.Owner)
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))

	const contenders = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*comm.Port
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.Acquire("COM1", "app", 0)
			if err != nil {
				assert.ErrorIs(t, err, comm.ErrPortInUse)
				return
			}
			mu.Lock()
			winners = append(winners, p)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.NoError(t, winners[0].Close())
}

func TestRemoveOwnershipListener(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	log := &ownershipLog{}
	sub, err := m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)

	m.RemoveOwnershipListener("COM1", sub)
	m.RemoveOwnershipListener("COM1", sub)
	m.RemoveOwnershipListener("COM9", sub)

	p, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Empty(t, log.snapshot())
}

func TestOwnershipListenerPanicIsContained(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))
	log := &ownershipLog{}
	_, err := m.AddOwnershipListener("COM1", comm.OwnershipListenerFunc(func(string, comm.OwnershipEvent) {
		panic("bad listener")
	}))
	require.NoError(t, err)
	_, err = m.AddOwnershipListener("COM1", log)
	require.NoError(t, err)

	p, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, []comm.OwnershipEvent{comm.PortOwned, comm.PortUnowned}, log.snapshot())
}

func TestIsCurrentlyOwned(t *testing.T) {
	m, _ := newTestManager(t, loopback.Serial("COM1"))

	owned, err := m.IsCurrentlyOwned("COM1")
	require.NoError(t, err)
	assert.False(t, owned)

	p, err := m.Acquire("COM1", "app1", time.Second)
	require.NoError(t, err)
	owned, err = m.IsCurrentlyOwned("COM1")
	require.NoError(t, err)
	assert.True(t, owned)

	require.NoError(t, p.Close())
	owned, err = m.IsCurrentlyOwned("COM1")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestOwnershipEventString(t *testing.T) {
	assert.Equal(t, "PORT_OWNED", comm.PortOwned.String())
	assert.Equal(t, "PORT_UNOWNED", comm.PortUnowned.String())
	assert.Equal(t, "PORT_OWNERSHIP_REQUESTED", comm.OwnershipRequested.String())
}
