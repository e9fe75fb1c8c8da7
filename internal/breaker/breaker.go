// Package breaker implements the per-source circuit breaker (C4), backed
// by github.com/sony/gobreaker/v2 the same way the teacher's
// infrastructure/resilience package wraps it: a thin adapter that keeps
// an is_available()-shaped API over gobreaker's state machine.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State mirrors gobreaker's three states under the names spec §4.4 uses.
type State int

const (
	StateClosed State = State(gobreaker.StateClosed)
	StateOpen   State = State(gobreaker.StateOpen)
	StateHalfOpen State = State(gobreaker.StateHalfOpen)
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Execute when the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config controls a single source's breaker.
type Config struct {
	// Threshold is the number of consecutive failures that trips the
	// breaker from Closed to Open. Default 5 (spec §4.4).
	Threshold int
	// Cooldown is how long the breaker stays Open before allowing a
	// single Half-Open trial. Default 300s (spec §4.4).
	Cooldown time.Duration
	// OnStateChange is called, if set, whenever the breaker transitions.
	OnStateChange func(source string, from, to State)
}

// DefaultConfig returns the spec §4.4 defaults.
func DefaultConfig() Config {
	return Config{Threshold: 5, Cooldown: 300 * time.Second}
}

// Breaker wraps a single source's gobreaker.CircuitBreaker.
type Breaker struct {
	source string
	gb     *gobreaker.CircuitBreaker[any]
}

// New constructs a Breaker for source.
func New(source string, cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 300 * time.Second
	}
	threshold := uint32(cfg.Threshold)

	settings := gobreaker.Settings{
		Name:        source,
		MaxRequests: 1, // a single trial call while Half-Open (spec §4.4)
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			cfg.OnStateChange(source, State(from), State(to))
		}
	}

	return &Breaker{source: source, gb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	return State(b.gb.State())
}

// IsAvailable returns true for Closed and Half-Open (spec §4.4).
func (b *Breaker) IsAvailable() bool {
	s := b.State()
	return s == StateClosed || s == StateHalfOpen
}

// Execute runs fn under breaker protection. ctx is honored only insofar
// as fn itself should respect cancellation; gobreaker's own bookkeeping
// is synchronous.
func (b *Breaker) Execute(_ context.Context, fn func() error) error {
	_, err := b.gb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// Registry tracks one Breaker per source, created lazily with a shared
// Config.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), cfg: cfg}
}

// For returns the Breaker for source, creating it on first use.
func (r *Registry) For(source string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[source]
	if !ok {
		b = New(source, r.cfg)
		r.breakers[source] = b
	}
	return b
}
