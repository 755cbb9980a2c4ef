package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Allow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		capacity   int
		refillEach time.Duration
		drain      int           // allowed calls before the assertion
		advance    time.Duration // clock movement before the asserted call
		expected   bool
	}{
		"first token available immediately": {
			capacity:   5,
			refillEach: 200 * time.Millisecond,
			expected:   true,
		},
		"burst up to capacity": {
			capacity:   5,
			refillEach: 200 * time.Millisecond,
			drain:      4,
			expected:   true,
		},
		"rejected once empty": {
			capacity:   5,
			refillEach: 200 * time.Millisecond,
			drain:      5,
			expected:   false,
		},
		"one refill interval restores one token": {
			capacity:   5,
			refillEach: 200 * time.Millisecond,
			drain:      5,
			advance:    200 * time.Millisecond,
			expected:   true,
		},
		"partial interval restores nothing": {
			capacity:   5,
			refillEach: 200 * time.Millisecond,
			drain:      5,
			advance:    150 * time.Millisecond,
			expected:   false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			bucket := NewTokenBucket(tc.refillEach, tc.capacity, start)
			for i := 0; i < tc.drain; i++ {
				assert.True(t, bucket.Allow(start), "drain call %d", i)
			}
			assert.Equal(t, tc.expected, bucket.Allow(start.Add(tc.advance)))
		})
	}
}

func TestTokenBucket_RefillCapsAtCapacity(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(200*time.Millisecond, 3, start)

	// long idle period must not bank more than capacity
	later := start.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, bucket.Allow(later))
	}
	assert.False(t, bucket.Allow(later))
}

func TestTokenBucket_ClockBackwards(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewTokenBucket(200*time.Millisecond, 2, start)

	assert.True(t, bucket.Allow(start))
	assert.True(t, bucket.Allow(start))

	// a clock step backwards must not panic or refill
	assert.False(t, bucket.Allow(start.Add(-time.Minute)))
	assert.True(t, bucket.Allow(start.Add(200*time.Millisecond)))
}
