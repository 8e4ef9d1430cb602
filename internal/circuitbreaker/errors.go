package circuitbreaker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by NewCircuitBreaker and NewRegistry when
	// a configuration bound is not positive.
	ErrInvalidConfig = errors.New("circuitbreaker: invalid configuration")

	// ErrOpenState is returned by Execute when the circuit is open and the
	// reset timeout has not elapsed. The operation is not invoked.
	ErrOpenState = errors.New("circuitbreaker: circuit is open, call blocked")

	// ErrTooManyRequests is returned by Execute when the circuit is half-open
	// and all trial slots are taken. The operation is not invoked.
	ErrTooManyRequests = errors.New("circuitbreaker: circuit is half-open, too many trial requests")
)

// OperationError wraps the error returned by a protected operation, so that
// callers can tell "the dependency failed" apart from "the circuit blocked
// the call". The original cause is reachable through Unwrap.
type OperationError struct {
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("circuitbreaker: operation failed: %v", e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// IsCircuitOpen reports whether err means the call was rejected by the
// breaker without the operation being invoked, for either reason: the
// circuit was open, or the half-open trial limit was reached.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrOpenState) || errors.Is(err, ErrTooManyRequests)
}
