// ABOUTME: Reconnect delay policy for node connections
// ABOUTME: Exponential growth with jitter, capped and optionally bounded in attempts
package backoff

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBase = 2 * time.Second
	DefaultMax  = 5 * time.Minute
)

// Config controls how delays grow between attempts.
type Config struct {
	Base     time.Duration
	Max      time.Duration
	MaxTries int // 0 means retry forever

	// Jitter returns a random duration in [0, d). Nil uses math/rand.
	Jitter func(d time.Duration) time.Duration
}

// Backoff hands out successive delays. It holds no timers and never sleeps;
// callers decide how to wait. Not safe for concurrent use.
type Backoff struct {
	config Config
	tries  int
	last   time.Duration
}

// New creates a Backoff, filling zero fields with defaults.
func New(config Config) *Backoff {
	if config.Base <= 0 {
		config.Base = DefaultBase
	}
	if config.Max <= 0 {
		config.Max = DefaultMax
	}
	if config.Max < config.Base {
		config.Max = config.Base
	}
	if config.Jitter == nil {
		config.Jitter = randomJitter
	}
	return &Backoff{config: config}
}

// Next returns the delay to wait before the next attempt. ok is false once
// MaxTries delays have been handed out.
func (b *Backoff) Next() (d time.Duration, ok bool) {
	if b.config.MaxTries > 0 && b.tries >= b.config.MaxTries {
		return 0, false
	}
	b.tries++

	d = Delay(b.config.Base, b.config.Max, b.tries)
	half := d / 2
	d = half + clampJitter(b.config.Jitter(half), half)

	if d <= b.last {
		d = b.last * 2
	}
	if d > b.config.Max {
		d = b.config.Max
	}
	b.last = d
	return d, true
}

// Tries reports how many delays have been handed out since the last Reset.
func (b *Backoff) Tries() int {
	return b.tries
}

// Exhausted reports whether a bounded policy has no attempts left.
func (b *Backoff) Exhausted() bool {
	return b.config.MaxTries > 0 && b.tries >= b.config.MaxTries
}

// Reset starts the sequence over, typically after a successful connect.
func (b *Backoff) Reset() {
	b.tries = 0
	b.last = 0
}

// Delay is the un-jittered delay for the given 1-based attempt:
// base doubled per attempt, never above max.
func Delay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

func clampJitter(j, limit time.Duration) time.Duration {
	if j < 0 {
		return 0
	}
	if j > limit {
		return limit
	}
	return j
}

func randomJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d)
}
