package resilience

import (
	"math/rand/v2"
	"time"
)

// exponentialJitter implements backoff.BackOff with the schedule
// base·2^n + U[0, maxJitter) before retry n (n starting at 1).
// It is stateful, so every logical call gets its own instance.
type exponentialJitter struct {
	base      time.Duration
	maxJitter time.Duration
	jitter    func(limit time.Duration) time.Duration
	n         int
}

func newExponentialJitter(base, maxJitter time.Duration, jitter func(time.Duration) time.Duration) *exponentialJitter {
	if jitter == nil {
		jitter = uniformJitter
	}
	return &exponentialJitter{base: base, maxJitter: maxJitter, jitter: jitter}
}

func (b *exponentialJitter) NextBackOff() time.Duration {
	b.n++
	d := BackoffDelay(b.base, b.n)
	if b.maxJitter > 0 {
		d += b.jitter(b.maxJitter)
	}
	return d
}

func (b *exponentialJitter) Reset() { b.n = 0 }

// BackoffDelay is the deterministic part of the wait before retry n.
func BackoffDelay(base time.Duration, n int) time.Duration {
	return base * time.Duration(int64(1)<<n)
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
