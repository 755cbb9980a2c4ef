package agent

import "time"

// PendingCommand is the per-actuator record of the most recent ON intent seen
// during the quiet window. At most one exists per actuator; a new one always
// replaces the old. The shipped policy executes night ON commands immediately
// and keeps this store as a persisted audit trail, it is never auto-applied.
type PendingCommand struct {
	Gpio       int       `json:"gpio"`
	State      bool      `json:"state"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// NightPolicy gates automatic activation commands by time of day.
type NightPolicy struct {
	startHour int
	endHour   int
	ttl       time.Duration

	pending map[int]PendingCommand
	// day-time OFF commands, persisted with the snapshot as a TTL-bounded
	// audit of recent deactivations
	recentOff map[int]time.Time
}

func NewNightPolicy(startHour, endHour int, ttl time.Duration) *NightPolicy {
	return &NightPolicy{
		startHour: startHour,
		endHour:   endHour,
		ttl:       ttl,
		pending:   make(map[int]PendingCommand),
		recentOff: make(map[int]time.Time),
	}
}

// IsNight reports whether t falls inside the quiet window. The window may
// wrap midnight (22 -> 6). A zero-length window disables the policy.
func (n *NightPolicy) IsNight(t time.Time) bool {
	if n.startHour == n.endHour {
		return false
	}
	h := t.Hour()
	if n.startHour < n.endHour {
		return h >= n.startHour && h < n.endHour
	}
	return h >= n.startHour || h < n.endHour
}

// Filter applies the rule table to a remote command. It returns true when the
// command should be enqueued (which is always; the pending store is an audit
// trail) and whether the pending store changed and needs persisting.
//
// clockValid=false means the wall clock could not be read; the policy fails
// open toward daytime behaviour.
func (n *NightPolicy) Filter(gpio int, on bool, now time.Time, clockValid bool) (enqueue, dirty bool) {
	night := clockValid && n.IsNight(now)
	switch {
	case night && on:
		n.pending[gpio] = PendingCommand{Gpio: gpio, State: on, EnqueuedAt: now}
		return true, true
	case !night && !on:
		n.recentOff[gpio] = now
		return true, false
	default:
		return true, false
	}
}

// Sweep discards pending entries older than the TTL, returning how many were
// pruned so the caller knows to persist.
func (n *NightPolicy) Sweep(now time.Time) int {
	pruned := 0
	for gpio, pc := range n.pending {
		if now.Sub(pc.EnqueuedAt) >= n.ttl {
			delete(n.pending, gpio)
			pruned++
		}
	}
	for gpio, at := range n.recentOff {
		if now.Sub(at) >= n.ttl {
			delete(n.recentOff, gpio)
		}
	}
	return pruned
}

// Pending returns a copy of the pending store for persistence.
func (n *NightPolicy) Pending() map[int]PendingCommand {
	out := make(map[int]PendingCommand, len(n.pending))
	for k, v := range n.pending {
		out[k] = v
	}
	return out
}

// RecentOff returns a copy of the day-time OFF audit for persistence.
func (n *NightPolicy) RecentOff() map[int]time.Time {
	out := make(map[int]time.Time, len(n.recentOff))
	for k, v := range n.recentOff {
		out[k] = v
	}
	return out
}

// Restore replaces both stores, used at boot from the persisted state.
func (n *NightPolicy) Restore(pending map[int]PendingCommand, recentOff map[int]time.Time) {
	n.pending = make(map[int]PendingCommand, len(pending))
	for k, v := range pending {
		n.pending[k] = v
	}
	n.recentOff = make(map[int]time.Time, len(recentOff))
	for k, v := range recentOff {
		n.recentOff[k] = v
	}
}
