// Package ratelimit paces outbound requests per venue, generalizing the
// teacher's hand-rolled Kraken-only token bucket
// (internal/providers/kraken/ratelimiter.go) onto golang.org/x/time/rate so
// every venue — generic or bespoke — gets the same pacing primitive.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultRPS is used for venues whose config omits an explicit rate.
const DefaultRPS = 1.0

// BurstFactor mirrors the teacher limiter's "allow burst up to 2x RPS".
const BurstFactor = 2

// Manager owns one rate.Limiter per venue.
type Manager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewManager creates an empty rate limit manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*rate.Limiter)}
}

// Configure installs or replaces the limiter for venueID at rps requests
// per second, with a burst of BurstFactor*rps (minimum burst 1).
func (m *Manager) Configure(venueID string, rps float64) {
	if rps <= 0 {
		rps = DefaultRPS
	}
	burst := int(rps * BurstFactor)
	if burst < 1 {
		burst = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[venueID] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until venueID's limiter admits one request or ctx is done.
// A venue with no configured limiter is paced at DefaultRPS.
func (m *Manager) Wait(ctx context.Context, venueID string) error {
	return m.get(venueID).Wait(ctx)
}

// Allow reports whether venueID's limiter currently has a token, without
// blocking or consuming time.
func (m *Manager) Allow(venueID string) bool {
	return m.get(venueID).Allow()
}

func (m *Manager) get(venueID string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[venueID]
	if !ok {
		burst := int(DefaultRPS * BurstFactor)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(DefaultRPS), burst)
		m.limiters[venueID] = l
	}
	return l
}

// Remove drops the limiter for venueID, if any.
func (m *Manager) Remove(venueID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.limiters, venueID)
}
