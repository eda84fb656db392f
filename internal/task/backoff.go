package task

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: exponential base-2 growth from Base,
// capped at Cap, with a symmetric jitter fraction to spread thundering herds.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Cap bounds the delay regardless of attempt count.
	Cap time.Duration
	// Jitter is the fraction of the delay randomized in both directions (0..1).
	Jitter float64

	// rand is the jitter source; overridable for deterministic tests.
	rand func() float64
}

// DefaultBackoff returns the documented default retry curve:
// 5s base, doubling per attempt, capped at 10m, with 25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: 5 * time.Second, Cap: 10 * time.Minute, Jitter: 0.25}
}

// Delay returns the backoff before retry attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := b.Base
	if base <= 0 {
		base = 5 * time.Second
	}
	capped := b.Cap
	if capped <= 0 {
		capped = 10 * time.Minute
	}

	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= capped {
			d = capped
			break
		}
	}
	if d > capped {
		d = capped
	}

	if b.Jitter > 0 {
		src := b.rand
		if src == nil {
			src = rand.Float64
		}
		// Spread across [1-jitter, 1+jitter].
		factor := 1 + b.Jitter*(2*src()-1)
		d = time.Duration(float64(d) * factor)
		if d > capped {
			d = capped
		}
		if d < 0 {
			d = 0
		}
	}
	return d
}
