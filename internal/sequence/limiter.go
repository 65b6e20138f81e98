package sequence

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterFactory hands out one rate.Limiter per order type, created lazily
// and cached, so HWS and HJB allocation traffic throttle independently
// against the same durable counter table.
type LimiterFactory struct {
	mu             sync.RWMutex
	limiters       map[string]*rate.Limiter
	requestsPerSec float64
	burst          int
}

func NewLimiterFactory(requestsPerSec float64, burst int) *LimiterFactory {
	return &LimiterFactory{
		limiters:       make(map[string]*rate.Limiter),
		requestsPerSec: requestsPerSec,
		burst:          burst,
	}
}

// For returns the limiter for orderType, creating it on first use.
func (f *LimiterFactory) For(orderType string) *rate.Limiter {
	f.mu.RLock()
	limiter, ok := f.limiters[orderType]
	f.mu.RUnlock()
	if ok {
		return limiter
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if limiter, ok := f.limiters[orderType]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(f.requestsPerSec), f.burst)
	f.limiters[orderType] = limiter
	return limiter
}
