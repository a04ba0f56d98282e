package rpcperf

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Ratelimiter is the shared admission gate consulted by every connection
// before issuing a request. A rate of 0 means unlimited. The rate may be
// swapped at any time (admin PUT); in-flight admission checks observe the
// new rate on their next call, which is all the engine requires.
type Ratelimiter struct {
	limiter *rate.Limiter
	rps     atomic.Uint64
}

// NewRatelimiter creates a limiter targeting rps requests per second across
// all callers.
func NewRatelimiter(rps uint64) *Ratelimiter {
	r := &Ratelimiter{
		limiter: rate.NewLimiter(limitFor(rps), burstFor(rps)),
	}
	r.rps.Store(rps)
	return r
}

func limitFor(rps uint64) rate.Limit {
	if rps == 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

// burstFor sizes the token bucket so that high target rates are reachable by
// many concurrent connections without each one serializing on single-token
// spacing, while low rates stay smooth.
func burstFor(rps uint64) int {
	if rps == 0 {
		return 1
	}
	burst := int(rps / 100)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Admit reserves one request slot and returns how long the caller must wait
// before issuing it. A zero duration means the request may go out now.
func (r *Ratelimiter) Admit() time.Duration {
	if r.rps.Load() == 0 {
		return 0
	}
	rsv := r.limiter.Reserve()
	if !rsv.OK() {
		// Unreachable with a finite limit and burst >= 1, but never stall a
		// worker on it.
		return time.Second
	}
	return rsv.Delay()
}

// SetRate replaces the target rate for all subsequent admissions.
func (r *Ratelimiter) SetRate(rps uint64) {
	r.rps.Store(rps)
	r.limiter.SetLimit(limitFor(rps))
	r.limiter.SetBurst(burstFor(rps))
}

// Rate returns the currently configured rate in requests per second.
func (r *Ratelimiter) Rate() uint64 {
	return r.rps.Load()
}
