package circuitbreaker

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking calls until the reset timeout elapses
	StateHalfOpen              // Testing recovery with a limited number of trials
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the state by name, so snapshots served over HTTP read
// as "CLOSED" rather than an enum value.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON parses a state name produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	switch name {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	case "HALF-OPEN":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("unknown circuit breaker state %q", name)
	}

	return nil
}

// Config holds the construction-time settings of a CircuitBreaker. All three
// bounds must be positive; the breaker never re-reads them after construction.
type Config struct {
	// MaxFailures is the number of consecutive failures that trips the
	// circuit from CLOSED to OPEN.
	MaxFailures int

	// ResetTimeout is how long the circuit stays OPEN before a call may
	// move it to HALF-OPEN.
	ResetTimeout time.Duration

	// HalfOpenMaxRequests caps the trial calls admitted while HALF-OPEN.
	HalfOpenMaxRequests int
}

func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("%w: max failures must be positive, got %d", ErrInvalidConfig, c.MaxFailures)
	}

	if c.ResetTimeout <= 0 {
		return fmt.Errorf("%w: reset timeout must be positive, got %s", ErrInvalidConfig, c.ResetTimeout)
	}

	if c.HalfOpenMaxRequests <= 0 {
		return fmt.Errorf("%w: half-open max requests must be positive, got %d", ErrInvalidConfig, c.HalfOpenMaxRequests)
	}

	return nil
}

// CircuitBreaker guards calls to a single unreliable dependency. One instance
// guards one dependency; use a Registry when several dependencies each need
// their own circuit.
type CircuitBreaker struct {
	mutex            sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	halfOpenRequests int

	config        Config
	name          string
	logger        *slog.Logger
	onStateChange func(name string, from, to State)
}

// Option configures optional breaker behavior at construction time.
type Option func(*CircuitBreaker)

// WithName labels the breaker in logs, state-change notifications and
// snapshots. A Registry sets this to the dependency name automatically.
func WithName(name string) Option {
	return func(cb *CircuitBreaker) {
		cb.name = name
	}
}

// WithLogger makes the breaker log its transitions and blocked calls.
// Passing nil keeps logging disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(cb *CircuitBreaker) {
		if logger != nil {
			cb.logger = logger
		}
	}
}

// WithOnStateChange registers a callback fired on every state transition.
// The callback runs while the breaker holds its internal lock, so it must
// not call back into the breaker and should return quickly.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// NewCircuitBreaker creates a breaker in the CLOSED state. It fails with an
// error wrapping ErrInvalidConfig if any configuration bound is non-positive.
func NewCircuitBreaker(config Config, opts ...Option) (*CircuitBreaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return newCircuitBreaker(config, opts...), nil
}

// newCircuitBreaker skips validation; NewRegistry validates once up front.
func newCircuitBreaker(config Config, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:  StateClosed,
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// Execute runs fn under the protection of the breaker. It returns fn's result
// on success, ErrOpenState or ErrTooManyRequests when the call is blocked
// without fn being invoked, or an *OperationError wrapping fn's own error.
//
// fn runs with no internal lock held, so concurrent calls are not serialized
// on its latency. The breaker imposes no timeout; a hanging fn hangs its
// caller.
func (cb *CircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	if err := cb.allow(); err != nil {
		return nil, err
	}

	result, err := fn()
	if err != nil {
		cb.logger.Error("Protected call failed",
			slog.String("breaker", cb.name),
			slog.Any("err", err))
		cb.recordFailure()
		return nil, &OperationError{Err: err}
	}

	cb.reset()
	return result, nil
}

// allow decides whether a call may proceed, applying the OPEN timeout check
// and the HALF-OPEN admission count atomically with respect to other calls.
func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailure) < cb.config.ResetTimeout {
			cb.logger.Warn("Circuit is open, call blocked",
				slog.String("breaker", cb.name))
			return ErrOpenState
		}

		cb.logger.Info("Reset timeout elapsed, transitioning to half-open",
			slog.String("breaker", cb.name))
		cb.setState(StateHalfOpen)
		cb.halfOpenRequests = 0
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			cb.logger.Warn("Circuit is half-open, too many trial requests",
				slog.String("breaker", cb.name))
			return ErrTooManyRequests
		}

		cb.halfOpenRequests++
	}

	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++

	if cb.state == StateHalfOpen {
		// A single failed trial reopens the circuit, regardless of the
		// failure count.
		cb.logger.Warn("Trial call failed, reopening circuit",
			slog.String("breaker", cb.name))
		cb.setState(StateOpen)
	} else if cb.failures >= cb.config.MaxFailures {
		cb.logger.Warn("Failure threshold reached, opening circuit",
			slog.String("breaker", cb.name),
			slog.Int("failures", cb.failures))
		cb.setState(StateOpen)
	}

	cb.lastFailure = time.Now()
}

func (cb *CircuitBreaker) reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.logger.Info("Trial call succeeded, closing circuit",
			slog.String("breaker", cb.name))
	case StateOpen:
		// A call admitted before the circuit opened finished with a success.
		cb.logger.Info("In-flight call succeeded, closing circuit",
			slog.String("breaker", cb.name))
	}

	cb.failures = 0
	cb.halfOpenRequests = 0
	cb.setState(StateClosed)
}

// setState must be called with the mutex held.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// Name returns the label set with WithName, or "" if none was set.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Snapshot is a point-in-time, read-only view of a breaker for monitoring.
type Snapshot struct {
	State      State         `json:"state"`
	Failures   int           `json:"failures"`
	RetryAfter time.Duration `json:"retry_after"`
}

// Snapshot reports the current state, the consecutive-failure count, and how
// long an OPEN circuit will keep blocking calls. RetryAfter is zero unless
// the circuit is open.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	snap := Snapshot{
		State:    cb.state,
		Failures: cb.failures,
	}

	if cb.state == StateOpen {
		if remaining := cb.config.ResetTimeout - time.Since(cb.lastFailure); remaining > 0 {
			snap.RetryAfter = remaining
		}
	}

	return snap
}
