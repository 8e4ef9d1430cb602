// Package circuitbreaker implements the circuit breaker pattern for calls to
// unreliable dependencies.
//
// A circuit breaker prevents cascading failures by temporarily blocking calls
// to a failing dependency. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Dependency failing, calls blocked until the reset timeout elapses
//   - HALF-OPEN: Testing recovery with a limited number of trial calls
//
// Usage:
//
//	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
//	    MaxFailures:         5,
//	    ResetTimeout:        30 * time.Second,
//	    HalfOpenMaxRequests: 1,
//	})
//	if err != nil {
//	    // Invalid configuration.
//	}
//	result, err := cb.Execute(func() (any, error) {
//	    return fetchRemoteData()
//	})
//	if circuitbreaker.IsCircuitOpen(err) {
//	    // Call was blocked, the dependency was never invoked.
//	}
//
// When several dependencies each need their own circuit, a Registry hands out
// one named breaker per dependency:
//
//	registry, err := circuitbreaker.NewRegistry(cfg)
//	result, err := registry.Execute("payments", callPayments)
package circuitbreaker
