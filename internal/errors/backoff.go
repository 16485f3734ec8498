package errors

import "time"

// Backoff generates the exponential retry delays for Transient errors:
// base 100ms, doubling, capped at 5s, exhausted after MaxAttempts.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff matches spec.md §7: base 100ms, cap 5s, max 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{Base: 100 * time.Millisecond, Cap: 5 * time.Second, MaxAttempts: 5}
}

// Delay returns the delay before retry attempt n (1-indexed). Exhausted
// reports true once n exceeds MaxAttempts, at which point the caller should
// classify the error as Permanent.
func (b Backoff) Delay(attempt int) (delay time.Duration, exhausted bool) {
	if attempt > b.MaxAttempts {
		return 0, true
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > b.Cap {
			d = b.Cap
			break
		}
	}
	if d > b.Cap {
		d = b.Cap
	}
	return d, false
}
