package agent

import "time"

// TokenBucket throttles hardware writes. One token is refilled every
// refillEach; capacity caps the burst after an idle period.
type TokenBucket struct {
	refillEach time.Duration
	capacity   int
	tokens     int
	lastRefill time.Time
}

func NewTokenBucket(refillEach time.Duration, capacity int, now time.Time) *TokenBucket {
	return &TokenBucket{
		refillEach: refillEach,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: now,
	}
}

// Allow consumes a token when one is available.
func (b *TokenBucket) Allow(now time.Time) bool {
	b.refill(now)
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (b *TokenBucket) Reset(now time.Time) {
	b.tokens = b.capacity
	b.lastRefill = now
}

func (b *TokenBucket) Tokens() int { return b.tokens }

func (b *TokenBucket) refill(now time.Time) {
	if now.Before(b.lastRefill) {
		// clock went backwards, re-anchor
		b.lastRefill = now
		return
	}
	delta := now.Sub(b.lastRefill)
	if delta < b.refillEach {
		return
	}
	cycles := int(delta / b.refillEach)
	b.tokens += cycles
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(cycles) * b.refillEach)
}
