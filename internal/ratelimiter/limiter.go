package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// TargetLimiters holds one token bucket per ping target so a single pass
// never hammers the same endpoint. Limiters are created lazily on first use.
// Burst is 1: a target never receives two pings back to back.
type TargetLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	limiters map[string]*rate.Limiter
}

// New creates TargetLimiters allowing ratePerSec pings per second per target.
// A non-positive rate disables limiting.
func New(ratePerSec float64) *TargetLimiters {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &TargetLimiters{
		limit:    limit,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the target's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled or its deadline would be exceeded.
func (tl *TargetLimiters) Wait(ctx context.Context, targetID string) error {
	return tl.get(targetID).Wait(ctx)
}

func (tl *TargetLimiters) get(targetID string) *rate.Limiter {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	l, ok := tl.limiters[targetID]
	if !ok {
		l = rate.NewLimiter(tl.limit, 1)
		tl.limiters[targetID] = l
	}
	return l
}
