// Package gpio abstracts character-device GPIO lines so the control loop can
// run against real hardware or an in-memory stand-in.
package gpio

import "io"

// Output is a requested output line. Set takes the physical level, polarity
// handling happens above this layer.
type Output interface {
	Set(high bool) error
	io.Closer
}

// Input is a requested input line sampled by the control loop tick.
type Input interface {
	// Value returns the raw physical level, true for high.
	Value() (bool, error)
	io.Closer
}

// Chip hands out lines by offset.
type Chip interface {
	RequestOutput(offset int, initialHigh bool) (Output, error)
	RequestInput(offset int, pullUp bool) (Input, error)
	io.Closer
}
