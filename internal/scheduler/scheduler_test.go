package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_FiresRepeatedly(t *testing.T) {
	s := New()
	defer s.Stop()

	var ticks atomic.Int32
	s.Every("tick", 10*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 },
		time.Second, 5*time.Millisecond)
	assert.True(t, s.Active("tick"))
}

func TestEvery_ReplaceCancelsPrior(t *testing.T) {
	s := New()
	defer s.Stop()

	var first, second atomic.Int32
	s.Every("tick", 10*time.Millisecond, func() { first.Add(1) })
	s.Every("tick", 10*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	// The first timer was replaced before it could fire more than once.
	got := first.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, got, first.Load())
}

func TestAfter_FiresOnce(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Int32
	s.After("purge", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, s.Active("purge"))
}

func TestAfter_CancelPreventsFiring(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Int32
	s.After("purge", 30*time.Millisecond, func() { fired.Add(1) })
	s.Cancel("purge")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, s.Active("purge"))
}

func TestCancel_UnknownKeyIsNoOp(t *testing.T) {
	s := New()
	defer s.Stop()

	assert.NotPanics(t, func() { s.Cancel("never-started") })
	s.Cancel("never-started")
}

func TestAfter_FiredTimerDoesNotClearNewerTimer(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Int32
	s.After("purge", 5*time.Millisecond, func() { fired.Add(1) })
	require.Eventually(t, func() bool { return fired.Load() == 1 },
		time.Second, time.Millisecond)

	// A fresh timer under the same name must survive the old one's cleanup.
	s.After("purge", time.Hour, func() {})
	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.Active("purge"))
}

func TestStop_WaitsForCallbacks(t *testing.T) {
	s := New()

	done := make(chan struct{})
	s.After("slow", 5*time.Millisecond, func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	})

	time.Sleep(10 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the running callback finished")
	}
}
