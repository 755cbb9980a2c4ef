package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_StableTransitionFiresOnce(t *testing.T) {
	d := NewDebouncer(80*time.Millisecond, 200*time.Millisecond)
	now := at(12, 0)

	// seed the initial level
	fired, _ := d.Sample(17, false, false, now)
	assert.False(t, fired)

	// level flips and holds
	now = now.Add(20 * time.Millisecond)
	fired, _ = d.Sample(17, true, false, now)
	assert.False(t, fired, "change sample starts the debounce window")

	now = now.Add(40 * time.Millisecond)
	fired, _ = d.Sample(17, true, false, now)
	assert.False(t, fired, "still inside the debounce interval")

	now = now.Add(60 * time.Millisecond)
	fired, logical := d.Sample(17, true, false, now)
	assert.True(t, fired, "held past the interval")
	assert.True(t, logical)

	// the stable level must not fire again
	now = now.Add(20 * time.Millisecond)
	fired, _ = d.Sample(17, true, false, now)
	assert.False(t, fired)
}

func TestDebouncer_ChatterNeverFires(t *testing.T) {
	d := NewDebouncer(80*time.Millisecond, 200*time.Millisecond)
	now := at(12, 0)

	d.Sample(17, false, false, now)
	raw := true
	for i := 0; i < 20; i++ {
		// flips every 20ms never satisfy the 80ms hold
		now = now.Add(20 * time.Millisecond)
		fired, _ := d.Sample(17, raw, false, now)
		assert.False(t, fired, "sample %d", i)
		raw = !raw
	}
}

func TestDebouncer_ActiveLowInvertsLogical(t *testing.T) {
	d := NewDebouncer(80*time.Millisecond, 200*time.Millisecond)
	now := at(12, 0)

	// pull-up wiring idles high; pressing pulls the line low
	d.Sample(17, true, true, now)
	now = now.Add(20 * time.Millisecond)
	d.Sample(17, false, true, now)
	now = now.Add(100 * time.Millisecond)
	fired, logical := d.Sample(17, false, true, now)
	assert.True(t, fired)
	assert.True(t, logical, "low raw level is logically active")
}

func TestDebouncer_RepeatSuppression(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, 200*time.Millisecond)
	now := at(12, 0)

	press := func(raw bool) (bool, bool) {
		now = now.Add(5 * time.Millisecond)
		d.Sample(17, raw, false, now)
		now = now.Add(25 * time.Millisecond)
		return d.Sample(17, raw, false, now)
	}

	d.Sample(17, false, false, now)
	fired, _ := press(true)
	assert.True(t, fired, "first press fires")

	// release and press again inside the suppression gap
	fired, _ = press(false)
	assert.False(t, fired, "release inside the gap is swallowed")
	fired, _ = press(true)
	assert.False(t, fired, "re-press inside the gap is swallowed")
}

func TestOverrideTracker_Window(t *testing.T) {
	o := NewOverrideTracker(5 * time.Second)
	now := at(12, 0)

	assert.False(t, o.Active(17, now))

	o.Mark(17, now)
	assert.True(t, o.Active(17, now))
	assert.True(t, o.Active(17, now.Add(4*time.Second)))
	assert.False(t, o.Active(17, now.Add(5*time.Second)))
	assert.False(t, o.Active(17, now.Add(6*time.Second)), "expired mark stays cleared")

	assert.False(t, o.Active(27, now), "windows are per actuator")
}
