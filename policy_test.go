package comm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadPlanTruthTable(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		policy   ReadPolicy
		n        int
		buffered int
		wantN    int
		wantOK   bool
		deadline bool
	}{
		{"all disabled, empty", ReadPolicy{}, 10, 0, 0, false, false},
		{"all disabled, one byte", ReadPolicy{}, 10, 1, 1, true, false},
		{"all disabled, caps at n", ReadPolicy{}, 4, 9, 4, true, false},
		{"threshold 3, two bytes", ReadPolicy{thresholdEnabled: true, threshold: 3}, 10, 2, 0, false, false},
		{"threshold 3, three bytes", ReadPolicy{thresholdEnabled: true, threshold: 3}, 10, 3, 3, true, false},
		{"threshold 3, five bytes", ReadPolicy{thresholdEnabled: true, threshold: 3}, 10, 5, 5, true, false},
		{"threshold above n", ReadPolicy{thresholdEnabled: true, threshold: 20}, 4, 4, 4, true, false},
		{"timeout only", ReadPolicy{timeoutEnabled: true, timeout: time.Second}, 10, 1, 1, true, true},
		{"timeout and threshold", ReadPolicy{timeoutEnabled: true, timeout: time.Second, thresholdEnabled: true, threshold: 3}, 10, 2, 0, false, true},
		{"zero threshold polls like disabled", ReadPolicy{thresholdEnabled: true}, 10, 1, 1, true, false},
		{"zero timeout has no deadline", ReadPolicy{timeoutEnabled: true}, 10, 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp := tt.policy.plan(tt.n, now)
			n, ok := rp.ready(make([]byte, tt.buffered))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.deadline, !rp.deadline.IsZero())
		})
	}
}

func TestReadPlanFraming(t *testing.T) {
	p := ReadPolicy{framingEnabled: true, framingByte: '\n', thresholdEnabled: true, threshold: 100}
	rp := p.plan(10, time.Now())

	n, ok := rp.ready([]byte("ab\ncd"))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = rp.ready([]byte("abcd"))
	assert.False(t, ok)

	// framing byte beyond the caller's buffer does not count
	short := p.plan(2, time.Now())
	_, ok = short.ready([]byte("ab\n"))
	assert.False(t, ok)
}

func TestReadPlanExpired(t *testing.T) {
	rp := ReadPolicy{thresholdEnabled: true, threshold: 8}.plan(4, time.Now())
	assert.Equal(t, 0, rp.expired(nil))
	assert.Equal(t, 2, rp.expired([]byte("ab")))
	assert.Equal(t, 4, rp.expired([]byte("abcdef")))
}

func TestReadPolicyPolling(t *testing.T) {
	assert.False(t, ReadPolicy{}.Polling())
	assert.True(t, ReadPolicy{timeoutEnabled: true}.Polling())
	assert.True(t, ReadPolicy{thresholdEnabled: true}.Polling())
	assert.False(t, ReadPolicy{timeoutEnabled: true, timeout: time.Millisecond}.Polling())
}

func TestReadPolicyGetters(t *testing.T) {
	p := ReadPolicy{framingEnabled: true, framingByte: 0x7e, timeoutEnabled: true, timeout: time.Second}

	b, ok := p.Framing()
	assert.True(t, ok)
	assert.Equal(t, byte(0x7e), b)

	d, ok := p.Timeout()
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	_, ok = p.Threshold()
	assert.False(t, ok)
}
