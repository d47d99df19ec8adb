package comm

import "sync"

// inputBuffer holds bytes moved off the device by the poller until Read
// consumes them. Waiters block on the channel returned by take; it is
// closed and replaced on every change.
type inputBuffer struct {
	mu      sync.Mutex
	data    []byte
	limit   int
	err     error
	changed chan struct{}
}

func newInputBuffer(limit int) *inputBuffer {
	return &inputBuffer{
		data:    make([]byte, 0, limit),
		limit:   limit,
		changed: make(chan struct{}),
	}
}

func (b *inputBuffer) signalLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// space returns how many more bytes the buffer accepts.
func (b *inputBuffer) space() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return max(b.limit-len(b.data), 0)
}

// append stores p and reports whether the buffer was empty before.
func (b *inputBuffer) append(p []byte) (wasEmpty bool) {
	if len(p) == 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	wasEmpty = len(b.data) == 0
	b.data = append(b.data, p...)
	b.signalLocked()
	return wasEmpty
}

// fail records a device error; reads return it once the buffer is drained.
func (b *inputBuffer) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
		b.signalLocked()
	}
}

func (b *inputBuffer) consumeLocked(p []byte, n int) int {
	n = copy(p, b.data[:n])
	rest := copy(b.data, b.data[n:])
	b.data = b.data[:rest]
	return n
}

// take copies into p when rp is satisfied. Otherwise it returns the channel
// that is closed on the next change.
func (b *inputBuffer) take(p []byte, rp readPlan) (int, bool, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := rp.ready(b.data); ok {
		return b.consumeLocked(p, n), true, nil, nil
	}
	if b.err != nil {
		if len(b.data) > 0 {
			return b.consumeLocked(p, rp.expired(b.data)), true, nil, nil
		}
		return 0, true, nil, b.err
	}
	return 0, false, b.changed, nil
}

// takeExpired copies whatever a read past its deadline may return.
func (b *inputBuffer) takeExpired(p []byte, rp readPlan) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumeLocked(p, rp.expired(b.data))
}

func (b *inputBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func (b *inputBuffer) setLimit(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limit = n
}

func (b *inputBuffer) getLimit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}
