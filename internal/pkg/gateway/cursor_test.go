package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorSet_Accept(t *testing.T) {
	tests := map[string]struct {
		accepted []uint64
		seq      uint64
		expected bool
	}{
		"first sequence":         {nil, 1, true},
		"gap is fine":            {[]uint64{1}, 10, true},
		"duplicate is stale":     {[]uint64{5}, 5, false},
		"regression is stale":    {[]uint64{5}, 3, false},
		"strictly greater wins":  {[]uint64{5}, 6, true},
		"zero is never accepted": {nil, 0, false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := NewCursorSet()
			for _, seq := range tc.accepted {
				assert.True(t, c.Accept(17, seq))
			}
			assert.Equal(t, tc.expected, c.Accept(17, tc.seq))
		})
	}
}

func TestCursorSet_PerActuator(t *testing.T) {
	c := NewCursorSet()
	assert.True(t, c.Accept(17, 5))
	assert.True(t, c.Accept(27, 1), "cursors do not bleed across actuators")
}

func TestCursorSet_NextContinuesFromAccepted(t *testing.T) {
	c := NewCursorSet()
	c.Accept(17, 5)
	assert.Equal(t, uint64(6), c.Next(17))
	assert.Equal(t, uint64(7), c.Next(17))
	assert.False(t, c.Accept(17, 7), "handed-out sequences advance the cursor")
}

func TestCursorSet_Reset(t *testing.T) {
	c := NewCursorSet()
	c.Accept(17, 100)
	c.Reset()
	assert.True(t, c.Accept(17, 1))
}
