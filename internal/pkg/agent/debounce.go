package agent

import "time"

// inputState carries the per-actuator debounce bookkeeping.
type inputState struct {
	initialized   bool
	lastRaw       bool
	lastChangeAt  time.Time
	stableRaw     bool
	lastLogical   bool
	lastTriggerAt time.Time
}

// Debouncer filters raw manual-input levels into stable logical transitions.
// Raw levels are sampled every control-loop tick; a level must hold for the
// debounce interval before it counts, and repeat triggers inside the
// suppression gap are discarded even after debounce passes.
type Debouncer struct {
	interval  time.Duration
	repeatGap time.Duration
	inputs    map[int]*inputState
}

func NewDebouncer(interval, repeatGap time.Duration) *Debouncer {
	return &Debouncer{
		interval:  interval,
		repeatGap: repeatGap,
		inputs:    make(map[int]*inputState),
	}
}

// Sample feeds one raw reading for an actuator's manual input. It returns
// (true, logical) exactly when a debounced logical transition fired.
func (d *Debouncer) Sample(gpio int, raw, activeLow bool, now time.Time) (bool, bool) {
	st, ok := d.inputs[gpio]
	if !ok {
		st = &inputState{}
		d.inputs[gpio] = st
	}
	logical := raw != activeLow

	if !st.initialized {
		st.initialized = true
		st.lastRaw = raw
		st.stableRaw = raw
		st.lastLogical = logical
		st.lastChangeAt = now
		return false, false
	}

	if raw != st.lastRaw {
		st.lastRaw = raw
		st.lastChangeAt = now
		return false, false
	}

	if raw == st.stableRaw {
		return false, false
	}
	if now.Sub(st.lastChangeAt) < d.interval {
		return false, false
	}

	st.stableRaw = raw
	if logical == st.lastLogical {
		return false, false
	}
	st.lastLogical = logical

	if !st.lastTriggerAt.IsZero() && now.Sub(st.lastTriggerAt) < d.repeatGap {
		// bounced through debounce too fast, swallow the trigger
		return false, false
	}
	st.lastTriggerAt = now
	return true, logical
}

// OverrideTracker keeps the time-boxed manual priority per actuator. While a
// window is open, remote commands for that actuator are dropped.
type OverrideTracker struct {
	window time.Duration
	marks  map[int]time.Time
}

func NewOverrideTracker(window time.Duration) *OverrideTracker {
	return &OverrideTracker{
		window: window,
		marks:  make(map[int]time.Time),
	}
}

func (o *OverrideTracker) Mark(gpio int, now time.Time) {
	o.marks[gpio] = now
}

func (o *OverrideTracker) Active(gpio int, now time.Time) bool {
	at, ok := o.marks[gpio]
	if !ok {
		return false
	}
	if now.Sub(at) >= o.window {
		delete(o.marks, gpio)
		return false
	}
	return true
}
