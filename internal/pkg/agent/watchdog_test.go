package agent

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchdog_FeedKeepsAlive(t *testing.T) {
	restarts := 0
	w := NewWatchdog(30*time.Second, func() { restarts++ })
	now := day()

	w.Check(now)
	assert.Zero(t, restarts, "an unfed watchdog is not armed")

	w.Feed(now)
	w.Check(now.Add(29 * time.Second))
	assert.Zero(t, restarts)

	w.Feed(now.Add(29 * time.Second))
	w.Check(now.Add(58 * time.Second))
	assert.Zero(t, restarts, "regular feeding pushes the deadline")
}

func TestWatchdog_ExpiryRestarts(t *testing.T) {
	restarts := 0
	w := NewWatchdog(30*time.Second, func() { restarts++ })
	now := day()

	w.Feed(now)
	w.Check(now.Add(30 * time.Second))
	assert.Equal(t, 1, restarts)
}

func TestWatchdog_ConcurrentFeedAndCheck(t *testing.T) {
	var restarts atomic.Int32
	w := NewWatchdog(time.Minute, func() { restarts.Add(1) })

	// the loop feeds while the supervisor ticker checks, as in Agent.Run
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				w.Feed(time.Now())
			}
		}
	}()
	for i := 0; i < 1000; i++ {
		w.Check(time.Now())
	}
	close(done)
	wg.Wait()

	assert.Zero(t, restarts.Load(), "a continuously fed watchdog never restarts")
}

func TestMemoryGuard_GenerousLimitsNotConstrained(t *testing.T) {
	g := NewMemoryGuard(1<<40, 1<<41, func() {
		t.Fatal("restart must not fire under generous limits")
	})
	assert.False(t, g.Constrained())
}

func TestMemoryGuard_TinySoftLimitConstrains(t *testing.T) {
	restarted := false
	g := NewMemoryGuard(1, 1<<41, func() { restarted = true })
	assert.True(t, g.Constrained(), "any live heap exceeds a one-byte soft limit")
	assert.False(t, restarted, "soft limit never restarts")
}
