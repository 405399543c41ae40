package session

import "time"

// MinMotionInterval is the minimum gap between published motion samples.
const MinMotionInterval = 200 * time.Millisecond

// Throttler drops samples that arrive within Interval of the last accepted
// one. Only sample timestamps matter, never wall-clock time.
type Throttler struct {
	Interval time.Duration
	last     time.Duration
}

// Allow reports whether a sample at ts may be published and, if so, records
// it as the last accepted sample.
func (t *Throttler) Allow(ts time.Duration) bool {
	if ts-t.last < t.Interval {
		return false
	}
	t.last = ts
	return true
}

func (t *Throttler) Reset() {
	t.last = 0
}
