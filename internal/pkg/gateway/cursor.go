package gateway

// CursorSet tracks the last-accepted monotonic sequence per actuator. A
// command with seq <= cursor is stale. Cursors reset whenever a device
// re-identifies, since a restarted device's counters reset too.
type CursorSet struct {
	cursors map[int]uint64
}

func NewCursorSet() *CursorSet {
	return &CursorSet{cursors: make(map[int]uint64)}
}

// Accept advances the cursor and returns true when seq is strictly greater
// than the last accepted value for the actuator.
func (c *CursorSet) Accept(gpio int, seq uint64) bool {
	if seq <= c.cursors[gpio] {
		return false
	}
	c.cursors[gpio] = seq
	return true
}

// Next hands out the following sequence for gateway-originated commands.
func (c *CursorSet) Next(gpio int) uint64 {
	c.cursors[gpio]++
	return c.cursors[gpio]
}

func (c *CursorSet) Reset() {
	c.cursors = make(map[int]uint64)
}
