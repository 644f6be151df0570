// Package resilience provides the circuit breakers and retry policies that
// wrap every back-end, fusion and reasoning call made by the coordinator.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/custodia-labs/sizhen/internal/logger"
)

// ErrCircuitOpen is returned without calling the operation while a breaker
// is open, or while its half-open trial call is still in flight.
var ErrCircuitOpen = gobreaker.ErrOpenState

// State is the circuit breaker state.
type State = gobreaker.State

// Breaker states.
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int

	// CoolDown is how long the breaker stays open before admitting a trial call.
	CoolDown time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		CoolDown:         30 * time.Second,
	}
}

// BreakerOption customises a circuit breaker.
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	onTransition func(name string, from, to State)
}

// WithTransitionHook registers a callback invoked on every state change,
// after the change is logged. The callback runs with the breaker lock held
// and must not call back into it.
func WithTransitionHook(fn func(name string, from, to State)) BreakerOption {
	return func(o *breakerOptions) {
		o.onTransition = fn
	}
}

// abandoned carries an error the breaker must neither count as a success
// nor as a failure, e.g. the caller cancelled the call.
type abandoned struct {
	err error
}

func (a *abandoned) Error() string { return a.err.Error() }
func (a *abandoned) Unwrap() error { return a.err }

func isExcluded(err error) bool {
	var a *abandoned
	return errors.As(err, &a) || IsPermanent(err)
}

// CircuitBreaker is a Closed → Open → Half-Open → Closed state machine
// guarding one back-end. It is safe for concurrent use.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// NewCircuitBreaker creates a closed breaker. While half-open a single
// trial call is admitted.
func NewCircuitBreaker(name string, cfg BreakerConfig, opts ...BreakerOption) *CircuitBreaker {
	var o breakerOptions
	for _, opt := range opts {
		opt(&o)
	}
	threshold := uint32(1)
	if cfg.FailureThreshold > 1 {
		threshold = uint32(cfg.FailureThreshold)
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsExcluded: isExcluded,
		OnStateChange: func(name string, from, to State) {
			if to == StateOpen {
				logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
			} else {
				logger.Info("circuit breaker %s: %s -> %s", name, from, to)
			}
			if o.onTransition != nil {
				o.onTransition(name, from, to)
			}
		},
	})}
}

// Name returns the back-end name the breaker guards.
func (b *CircuitBreaker) Name() string {
	return b.cb.Name()
}

// State returns the current state. An open breaker whose cool-down has
// elapsed is reported as half-open.
func (b *CircuitBreaker) State() State {
	return b.cb.State()
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	return int(b.cb.Counts().ConsecutiveFailures)
}

// execute runs fn if the breaker admits it. Rejections surface as ErrCircuitOpen.
func (b *CircuitBreaker) execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	var a *abandoned
	if errors.As(err, &a) {
		return v, a.err
	}
	return v, err
}

// Registry hands out one breaker per back-end name.
type Registry struct {
	cfg  BreakerConfig
	opts []BreakerOption

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers share cfg and opts.
func NewRegistry(cfg BreakerConfig, opts ...BreakerOption) *Registry {
	return &Registry{
		cfg:      cfg,
		opts:     opts,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = NewCircuitBreaker(name, r.cfg, r.opts...)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of every breaker's state.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(breakers))
	for _, b := range breakers {
		out[b.Name()] = b.State()
	}
	return out
}
