// Package ratelimit bounds how many envelopes per second the local API and
// gossip ingress accept from a single peer or account, so a misbehaving or
// compromised client can't flood the validate-apply pipeline.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerKeyLimiter hands out an independent token-bucket limiter per key
// (peer address, issuer DID, or API client id), created lazily on first
// use and never removed — keys in this protocol are bounded by the
// identity and peer sets, not user-controlled strings.
type PerKeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a PerKeyLimiter allowing rps sustained events per second and
// burst events in a single instant, per key.
func New(rps float64, burst int) *PerKeyLimiter {
	return &PerKeyLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether an event from key may proceed right now, consuming
// one token if so.
func (p *PerKeyLimiter) Allow(key string) bool {
	return p.limiterFor(key).Allow()
}

func (p *PerKeyLimiter) limiterFor(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.limiters[key] = l
	}
	return l
}
