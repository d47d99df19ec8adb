package comm

import (
	"bytes"
	"time"
)

// ReadPolicy combines the receive framing, timeout and threshold settings
// that decide how long a Read blocks. The zero value has all three
// disabled: a read blocks until at least one byte is available.
type ReadPolicy struct {
	framingEnabled bool
	framingByte    byte

	timeoutEnabled bool
	timeout        time.Duration

	thresholdEnabled bool
	threshold        int
}

// Framing returns the framing byte and whether framing is enabled.
func (p ReadPolicy) Framing() (byte, bool) {
	return p.framingByte, p.framingEnabled
}

// Timeout returns the receive timeout and whether it is enabled.
func (p ReadPolicy) Timeout() (time.Duration, bool) {
	return p.timeout, p.timeoutEnabled
}

// Threshold returns the receive threshold and whether it is enabled.
func (p ReadPolicy) Threshold() (int, bool) {
	return p.threshold, p.thresholdEnabled
}

// Polling reports whether a zero timeout or threshold switches reads from
// change notification to checking the buffer on a fixed cadence.
func (p ReadPolicy) Polling() bool {
	return (p.timeoutEnabled && p.timeout == 0) || (p.thresholdEnabled && p.threshold == 0)
}

// readPlan is the wait condition of one Read call, derived from a policy
// snapshot taken when the read starts.
type readPlan struct {
	want     int // len(p)
	need     int // buffered bytes that satisfy the read
	deadline time.Time
	poll     bool
	framing  int // framing byte, or -1
}

func (p ReadPolicy) plan(n int, now time.Time) readPlan {
	rp := readPlan{want: n, need: 1, poll: p.Polling(), framing: -1}
	if p.thresholdEnabled && p.threshold > 0 {
		rp.need = min(p.threshold, n)
	}
	if p.timeoutEnabled && p.timeout > 0 {
		rp.deadline = now.Add(p.timeout)
	}
	if p.framingEnabled {
		rp.framing = int(p.framingByte)
	}
	return rp
}

// ready returns how many of the buffered bytes a read should take now, or
// false when it has to keep waiting.
func (rp readPlan) ready(buffered []byte) (int, bool) {
	avail := min(len(buffered), rp.want)
	if rp.framing >= 0 {
		if i := bytes.IndexByte(buffered[:avail], byte(rp.framing)); i >= 0 {
			return i + 1, true
		}
	}
	if avail >= rp.need {
		return avail, true
	}
	return 0, false
}

// expired returns what a read takes once its deadline passed.
func (rp readPlan) expired(buffered []byte) int {
	return min(len(buffered), rp.want)
}
