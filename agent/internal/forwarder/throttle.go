package forwarder

import (
	"math"
	"time"
)

// ThrottleState is the time of the last write that passed the throttle.
// The zero value has never sent, so the first Allow always passes. Sent is
// tracked separately so a write at the zero time still opens a window.
type ThrottleState struct {
	LastSent time.Time
	Sent     bool
}

// Allow reports whether a write at now may go out and, if so, moves
// LastSent to now.
func (s *ThrottleState) Allow(now time.Time, window time.Duration) bool {
	if s.Sent && now.Sub(s.LastSent) < window {
		return false
	}
	s.LastSent = now
	s.Sent = true
	return true
}

// Valid reports whether v is a usable heart-rate reading. Zero and negative
// values mean the sensor has lost contact; NaN and infinities are noise.
func Valid(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
