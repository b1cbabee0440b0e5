// Package circuit keeps one circuit breaker per exchange so a failing venue is skipped
// quickly instead of slowing down every fan-out.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Venue skipped
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// Config holds circuit breaker configuration
type Config struct {
	Enabled             bool    `json:"enabled"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"` // Trip after this many failures in a row
	FailureRatio        float64 `json:"failure_ratio"`        // Trip when failures/requests reaches this
	MinRequests         uint32  `json:"min_requests"`         // Requests needed before the ratio applies
	HalfOpenRequests    uint32  `json:"half_open_requests"`   // Trial requests allowed while half-open
	IntervalSeconds     int     `json:"interval_seconds"`     // Counter reset period while closed
	CooldownSeconds     int     `json:"cooldown_seconds"`     // Open duration before probing
}

// DefaultConfig returns safe defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
		HalfOpenRequests:    1,
		IntervalSeconds:     60,
		CooldownSeconds:     30,
	}
}

// StateChangeFunc is called after a breaker changes state.
type StateChangeFunc func(name string, from, to BreakerState)

// Status is a snapshot of one breaker.
type Status struct {
	Name                string       `json:"name"`
	State               BreakerState `json:"state"`
	Requests            uint32       `json:"requests"`
	TotalFailures       uint32       `json:"total_failures"`
	ConsecutiveFailures uint32       `json:"consecutive_failures"`
}

// Manager lazily creates and owns the breakers, keyed by exchange name.
type Manager struct {
	config   *Config
	logger   zerolog.Logger
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	onChange []StateChangeFunc
}

// NewManager creates a breaker manager
func NewManager(config *Config, logger zerolog.Logger) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		config:   config,
		logger:   logger.With().Str("component", "circuit").Logger(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// OnStateChange registers a callback for breaker transitions. Register before use.
func (m *Manager) OnStateChange(fn StateChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Execute runs fn through the named breaker. While the breaker is open fn is not
// called and the returned error satisfies IsOpen.
func (m *Manager) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	if !m.config.Enabled {
		return fn()
	}
	return m.breaker(name).Execute(fn)
}

// State returns the current state of the named breaker; unknown names are closed.
func (m *Manager) State(name string) BreakerState {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return fromGobreaker(cb.State())
}

// Statuses returns a snapshot of every breaker created so far.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	snapshot := make(map[string]*gobreaker.CircuitBreaker, len(m.breakers))
	for name, cb := range m.breakers {
		snapshot[name] = cb
	}
	m.mu.RUnlock()

	// State() may fire OnStateChange, which takes the lock again.
	out := make([]Status, 0, len(snapshot))
	for name, cb := range snapshot {
		counts := cb.Counts()
		out = append(out, Status{
			Name:                name,
			State:               fromGobreaker(cb.State()),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	return out
}

// IsOpen reports whether err came from a breaker that refused the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}

	cfg := m.config
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.CooldownSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if cfg.FailureRatio > 0 && counts.Requests >= cfg.MinRequests {
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
			}
			return false
		},
		OnStateChange: m.handleStateChange,
	})
	m.breakers[name] = cb
	return cb
}

func (m *Manager) handleStateChange(name string, from, to gobreaker.State) {
	f, t := fromGobreaker(from), fromGobreaker(to)

	evt := m.logger.Info()
	if t == StateOpen {
		evt = m.logger.Warn()
	}
	evt.Str("exchange", name).Str("from", string(f)).Str("to", string(t)).Msg("Circuit breaker state changed")

	m.mu.RLock()
	callbacks := append([]StateChangeFunc(nil), m.onChange...)
	m.mu.RUnlock()
	for _, fn := range callbacks {
		fn(name, f, t)
	}
}

func fromGobreaker(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Gauge maps a state to the numeric value exported as a metric.
func (s BreakerState) Gauge() float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}
