package gateway

import "time"

// WindowLimiter caps inbound state updates per session with a fixed window.
// Excess messages are discarded silently by the caller.
type WindowLimiter struct {
	window      time.Duration
	max         int
	count       int
	windowStart time.Time
}

func NewWindowLimiter(window time.Duration, max int) *WindowLimiter {
	return &WindowLimiter{window: window, max: max}
}

func (l *WindowLimiter) Allow(now time.Time) bool {
	if now.Sub(l.windowStart) >= l.window {
		l.count = 0
		l.windowStart = now
	}
	if l.count < l.max {
		l.count++
		return true
	}
	return false
}

func (l *WindowLimiter) Remaining(now time.Time) int {
	if now.Sub(l.windowStart) >= l.window {
		return l.max
	}
	if l.count >= l.max {
		return 0
	}
	return l.max - l.count
}
