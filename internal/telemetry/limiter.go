package telemetry

import "time"

// DefaultInterval is the minimum spacing between two sends on one stream.
const DefaultInterval = 500 * time.Millisecond

// Limiter lets one attempt through per interval. The first attempt always
// passes; later ones pass only when strictly more than the interval has
// elapsed since the last allowed attempt. Each stream owns its own
// Limiter, so the driver and vehicle paths never share a timer.
type Limiter struct {
	interval time.Duration
	last     time.Time
	primed   bool
}

func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Ready reports whether Allow(now) would pass, without spending the slot.
func (l *Limiter) Ready(now time.Time) bool {
	return !l.primed || now.Sub(l.last) > l.interval
}

func (l *Limiter) Allow(now time.Time) bool {
	if !l.Ready(now) {
		return false
	}
	l.last = now
	l.primed = true
	return true
}
