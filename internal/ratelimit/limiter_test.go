package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLimiter_BoundaryDelaysOverflow mirrors spec §8's rate-limit boundary
// scenario: N=3, window=60s, six synchronous acquisitions starting at
// t=0 push the 4th-6th calls to t>=60s.
func TestLimiter_BoundaryDelaysOverflow(t *testing.T) {
	l := New(3, 60*time.Second)

	virtualNow := time.Unix(0, 0)
	var totalSlept time.Duration
	l.nowFunc = func() time.Time { return virtualNow }
	l.sleepFunc = func(d time.Duration) {
		totalSlept += d
		virtualNow = virtualNow.Add(d)
	}

	for i := 0; i < 3; i++ {
		l.Acquire()
	}
	require.Equal(t, time.Duration(0), totalSlept, "first N acquisitions must not wait")

	l.Acquire()
	require.GreaterOrEqual(t, totalSlept, 60*time.Second, "4th acquisition must wait out the window")
}

func TestLimiter_EvictsOutsideWindow(t *testing.T) {
	l := New(2, time.Second)
	virtualNow := time.Unix(0, 0)
	l.nowFunc = func() time.Time { return virtualNow }
	l.sleepFunc = func(d time.Duration) { virtualNow = virtualNow.Add(d) }

	l.Acquire()
	l.Acquire()
	virtualNow = virtualNow.Add(2 * time.Second)

	done := make(chan struct{})
	go func() {
		l.Acquire()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire should not block once window has elapsed")
	}
}
