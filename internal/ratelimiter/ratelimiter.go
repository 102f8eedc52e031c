package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles document store operations using a token bucket.
//
// A session shares one Limiter across every collection it hands out, so
// the sustained operation rate against the backing store stays bounded
// no matter how many file handles are open. Bursts above the sustained
// rate are absorbed up to the bucket capacity.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing opsPerSecond sustained store
// operations with the given burst capacity.
//
// Special cases:
//   - opsPerSecond = 0: no throttling (effectively unlimited)
//   - burst = 0: capacity defaults to twice the sustained rate
//
// Example:
//
//	// 500 ops/s sustained, up to 1000 queued instantly
//	lim := ratelimiter.New(500, 1000)
func New(opsPerSecond, burst uint) *Limiter {
	if opsPerSecond == 0 {
		// rate.Inf skips token accounting entirely, so Wait never
		// blocks and Allow always succeeds.
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = opsPerSecond * 2
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), int(burst)),
	}
}

// Wait blocks until the next store operation may proceed or ctx is
// cancelled. This is the path every throttled collection call takes.
//
// Returns:
//   - nil once a token was acquired
//   - the context error if ctx ended first
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether one operation may proceed right now, consuming
// a token when it may. Used where blocking is not acceptable, such as
// opportunistic background sweeps.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetRate changes the sustained operation rate. Zero disables
// throttling. The burst capacity follows to twice the new rate.
func (l *Limiter) SetRate(opsPerSecond uint) {
	if opsPerSecond == 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(opsPerSecond))
	l.limiter.SetBurst(int(opsPerSecond * 2))
}

// Tokens returns the tokens currently available. Monitoring only; the
// value may be stale the moment it returns.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}
