package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// limiterSet caps in-flight calls and call rate per provider, independently
// of overall request concurrency, so one hot query mix cannot exceed a
// provider's published limits.
type limiterSet struct {
	concurrency int64
	ratePerSec  float64

	mu       sync.Mutex
	limiters map[string]*providerLimiter
}

type providerLimiter struct {
	slots *semaphore.Weighted
	rate  *rate.Limiter
}

func newLimiterSet(concurrency int64, ratePerSec float64) *limiterSet {
	return &limiterSet{
		concurrency: concurrency,
		ratePerSec:  ratePerSec,
		limiters:    make(map[string]*providerLimiter),
	}
}

func (s *limiterSet) get(id string) *providerLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[id]
	if !ok {
		limiter = &providerLimiter{slots: semaphore.NewWeighted(s.concurrency)}
		if s.ratePerSec > 0 {
			limiter.rate = rate.NewLimiter(rate.Limit(s.ratePerSec), 1)
		}
		s.limiters[id] = limiter
	}
	return limiter
}

// acquire blocks until a slot and a rate token are available or the
// context ends. The returned release func must be called exactly once.
func (s *limiterSet) acquire(ctx context.Context, id string) (func(), error) {
	limiter := s.get(id)
	if err := limiter.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if limiter.rate != nil {
		if err := limiter.rate.Wait(ctx); err != nil {
			limiter.slots.Release(1)
			return nil, err
		}
	}
	return func() { limiter.slots.Release(1) }, nil
}
