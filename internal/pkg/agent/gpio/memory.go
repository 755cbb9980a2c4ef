package gpio

import (
	"fmt"
	"sync"
)

// MemoryChip is an in-process chip used in tests and on hosts without a GPIO
// character device. Input levels are settable, output writes are recorded.
type MemoryChip struct {
	mu      sync.Mutex
	outputs map[int]bool
	inputs  map[int]bool
	failing map[int]bool
}

func NewMemoryChip() *MemoryChip {
	return &MemoryChip{
		outputs: make(map[int]bool),
		inputs:  make(map[int]bool),
		failing: make(map[int]bool),
	}
}

// SetInput drives a raw input level, as a physical switch would.
func (c *MemoryChip) SetInput(offset int, high bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputs[offset] = high
}

// OutputLevel reports the last written level for an output line.
func (c *MemoryChip) OutputLevel(offset int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputs[offset]
}

// FailLine makes subsequent writes to the line return an error.
func (c *MemoryChip) FailLine(offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[offset] = true
}

func (c *MemoryChip) RequestOutput(offset int, initialHigh bool) (Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[offset] = initialHigh
	return &memoryOutput{chip: c, offset: offset}, nil
}

func (c *MemoryChip) RequestInput(offset int, pullUp bool) (Input, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inputs[offset]; !ok {
		c.inputs[offset] = pullUp
	}
	return &memoryInput{chip: c, offset: offset}, nil
}

func (c *MemoryChip) Close() error { return nil }

type memoryOutput struct {
	chip   *MemoryChip
	offset int
}

func (o *memoryOutput) Set(high bool) error {
	o.chip.mu.Lock()
	defer o.chip.mu.Unlock()
	if o.chip.failing[o.offset] {
		return fmt.Errorf("line %d write failed", o.offset)
	}
	o.chip.outputs[o.offset] = high
	return nil
}

func (o *memoryOutput) Close() error { return nil }

type memoryInput struct {
	chip   *MemoryChip
	offset int
}

func (i *memoryInput) Value() (bool, error) {
	i.chip.mu.Lock()
	defer i.chip.mu.Unlock()
	return i.chip.inputs[i.offset], nil
}

func (i *memoryInput) Close() error { return nil }
