package agent

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watchdog is a supervisory deadline that the control loop must renew every
// tick. Expiry means the loop wedged; the restart hook performs a full
// process restart, which is safe because boot forces all outputs OFF.
// Feed and Check run on different goroutines, so the deadline is guarded.
type Watchdog struct {
	timeout time.Duration
	restart func()
	logger  *zap.Logger

	mu       sync.Mutex
	deadline time.Time
}

func NewWatchdog(timeout time.Duration, restart func()) *Watchdog {
	return &Watchdog{
		timeout: timeout,
		restart: restart,
		logger:  zap.L(),
	}
}

// Feed renews the deadline.
func (w *Watchdog) Feed(now time.Time) {
	w.mu.Lock()
	w.deadline = now.Add(w.timeout)
	w.mu.Unlock()
}

// Check fires the restart hook when the deadline has lapsed.
func (w *Watchdog) Check(now time.Time) {
	w.mu.Lock()
	deadline := w.deadline
	w.mu.Unlock()
	if deadline.IsZero() || now.Before(deadline) {
		return
	}
	w.logger.Error("watchdog deadline expired, restarting",
		zap.Duration("timeout", w.timeout))
	w.restart()
}

// MemoryGuard watches heap usage. Past the soft limit the agent skips
// non-essential work; past the hard limit it asks for a restart as a last
// resort.
type MemoryGuard struct {
	softLimit uint64
	hardLimit uint64
	restart   func()
	logger    *zap.Logger
}

func NewMemoryGuard(softLimit, hardLimit uint64, restart func()) *MemoryGuard {
	return &MemoryGuard{
		softLimit: softLimit,
		hardLimit: hardLimit,
		restart:   restart,
		logger:    zap.L(),
	}
}

// Constrained reports whether non-essential work should be skipped.
func (g *MemoryGuard) Constrained() bool {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc >= g.hardLimit {
		g.logger.Error("heap past critical threshold, restarting",
			zap.Uint64("heap_alloc", ms.HeapAlloc),
			zap.Uint64("hard_limit", g.hardLimit))
		g.restart()
		return true
	}
	if ms.HeapAlloc >= g.softLimit {
		g.logger.Warn("heap past soft threshold, skipping non-essential work",
			zap.Uint64("heap_alloc", ms.HeapAlloc),
			zap.Uint64("soft_limit", g.softLimit))
		return true
	}
	return false
}
