// Package breaker is a per-venue circuit breaker, adapted from the
// teacher's internal/net/circuit.Breaker (a per-data-provider breaker) so
// that a wedged or failing venue degrades the registry gracefully instead
// of hanging a strategy tick (spec section 4.1/5).
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpen is returned when the circuit is open and no call is attempted.
	ErrOpen = errors.New("circuit breaker is open")
)

// State is the circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	FailureThreshold int           // consecutive failures to open
	SuccessThreshold int           // consecutive half-open successes to close
	OpenTimeout      time.Duration // time before attempting half-open recovery
}

// DefaultConfig mirrors the teacher's Kraken-era defaults, generalized to
// any venue.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second}
}

// Breaker is a single venue's circuit breaker.
type Breaker struct {
	mu              sync.RWMutex
	cfg             Config
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time
	totalRequests   int64
	totalFailures   int64
}

// New creates a Breaker in the closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed, lastStateChange: time.Now()}
}

// Call runs fn if the circuit allows it, tracking the outcome.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}

	b.mu.Lock()
	b.totalRequests++
	b.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if time.Since(b.lastFailureTime) > b.cfg.OpenTimeout {
			b.setState(HalfOpen)
			return true
		}
		return false
	default: // HalfOpen
		return true
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.setState(Closed)
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.lastFailureTime = time.Now()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.setState(Open)
		}
	case HalfOpen:
		b.setState(Open)
		b.successes = 0
	}
}

func (b *Breaker) setState(s State) {
	if b.state != s {
		b.state = s
		b.lastStateChange = time.Now()
		if s == HalfOpen {
			b.failures = 0
		}
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Manager owns one Breaker per venue.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewManager creates an empty breaker manager.
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*Breaker)}
}

// Get returns (creating if absent) the breaker for venueID.
func (m *Manager) Get(venueID string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[venueID]
	if !ok {
		b = New(DefaultConfig())
		m.breakers[venueID] = b
	}
	return b
}

// Remove drops the breaker for venueID, if any.
func (m *Manager) Remove(venueID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, venueID)
}
