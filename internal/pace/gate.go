// Package pace provides a single-slot pacing gate for outbound requests to
// Letterboxd. One gate is shared by every session in a run: the site's abuse
// detection is IP-scoped, not account-scoped, so pacing must be global.
package pace

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Gate spaces outbound requests so that consecutive grants are separated by
// at least the minimum interval derived from a requests-per-minute budget.
// A nil or disabled gate never delays.
type Gate struct {
	limiter *rate.Limiter
}

// NewGate creates a gate allowing requestsPerMinute outbound requests.
// requestsPerMinute <= 0 disables pacing entirely.
func NewGate(requestsPerMinute int) *Gate {
	if requestsPerMinute <= 0 {
		return &Gate{}
	}
	interval := MinInterval(requestsPerMinute)
	// Burst of 1 keeps this a strict one-at-a-time pacer rather than a
	// token bucket that could admit back-to-back requests.
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// MinInterval returns the minimum spacing between grants for the given
// requests-per-minute budget, rounded up to the next millisecond.
func MinInterval(requestsPerMinute int) time.Duration {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	ms := math.Ceil(60000.0 / float64(requestsPerMinute))
	return time.Duration(ms) * time.Millisecond
}

// Wait blocks until the next request may be issued, or until ctx is
// cancelled. With pacing disabled it returns immediately.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Enabled reports whether the gate actually paces requests.
func (g *Gate) Enabled() bool {
	return g != nil && g.limiter != nil
}
