package locking

import "time"

const (
	defaultInitialBackoff = 10 * time.Millisecond
	defaultMaxBackoff     = 100 * time.Millisecond
	backoffMultiplier     = 2
)

// Backoff is the polling schedule used while a lock is contended.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoff polls at 10ms, doubling up to 100ms.
func DefaultBackoff() Backoff {
	return Backoff{Initial: defaultInitialBackoff, Max: defaultMaxBackoff}
}

// delay returns the sleep before the given retry attempt (1-based), capped at
// remaining when hasDeadline is set.
func (b Backoff) delay(attempt int, remaining time.Duration, hasDeadline bool) time.Duration {
	d := b.Initial
	if d <= 0 {
		d = defaultInitialBackoff
	}
	limit := b.Max
	if limit < d {
		limit = d
	}
	for i := 1; i < attempt && d < limit; i++ {
		d *= backoffMultiplier
	}
	if d > limit {
		d = limit
	}
	if hasDeadline && remaining < d {
		d = remaining
	}
	if d < 0 {
		d = 0
	}
	return d
}
