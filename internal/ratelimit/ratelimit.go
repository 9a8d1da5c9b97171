// Package ratelimit provides the per-user limiter guarding the
// conversation-creation path.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerUser is a keyed token-bucket limiter. It is injected into the HTTP
// layer; the analysis core never sees it.
type PerUser struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewPerUser creates a limiter allowing perSec events per second with
// the given burst per key.
func NewPerUser(perSec float64, burst int) *PerUser {
	return &PerUser{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSec),
		burst:    burst,
	}
}

// Allow reports whether one more event is permitted for the key.
func (p *PerUser) Allow(key string) bool {
	p.mu.Lock()
	lim, ok := p.limiters[key]
	if !ok {
		lim = rate.NewLimiter(p.limit, p.burst)
		p.limiters[key] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}
