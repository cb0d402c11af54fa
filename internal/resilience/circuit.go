package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state; calls flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls immediately after too many failures.
	CircuitOpen
	// CircuitHalfOpen lets a single probe call test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitConfig controls circuit breaker behavior.
type CircuitConfig struct {
	// Name identifies the guarded service in state-change logs.
	Name string

	// FailureThreshold is the number of consecutive tripping failures
	// before opening the circuit. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing a
	// half-open probe. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count toward the threshold. If nil,
	// IsTransient is used, so terminal errors (not-found, validation,
	// malformed requests) never open the circuit.
	ShouldTrip func(err error) bool
}

func (c CircuitConfig) withDefaults() CircuitConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.ShouldTrip == nil {
		c.ShouldTrip = IsTransient
	}
	return c
}

// CircuitBreaker guards one external service. Callers bracket each call
// with Allow and Record; an Allow error means the call must not be made.
type CircuitBreaker struct {
	cfg CircuitConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailure         time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:   cfg.withDefaults(),
		state: CircuitClosed,
		now:   time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state it returns
// ErrCircuitOpen until ResetTimeout has elapsed, then admits one half-open
// probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) < cb.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(CircuitHalfOpen)
	}
	return nil
}

// Record feeds a call outcome back into the breaker. Success closes a
// half-open circuit and clears the failure count; a tripping failure
// increments it and opens the circuit at the threshold. Half-open failures
// reopen immediately.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !cb.cfg.ShouldTrip(err) {
		if cb.state == CircuitHalfOpen {
			cb.transition(CircuitClosed)
		}
		cb.consecutiveFailures = 0
		return
	}

	cb.consecutiveFailures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transition(CircuitOpen)
	}
}

// State returns the current state, surfacing the open→half-open transition
// once the reset timeout has elapsed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to

	log := zap.L().Info
	if to == CircuitOpen {
		log = zap.L().Warn
	}
	log("circuit state change",
		zap.String("service", cb.cfg.Name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutive_failures", cb.consecutiveFailures),
	)
}
