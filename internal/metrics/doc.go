// Package metrics provides real-time metrics collection for circuit breakers.
//
// It uses a channel-based event pipeline to asynchronously collect metrics about:
//   - Successful and failed calls per breaker
//   - Rejected calls broken down by reason (open circuit, half-open limit)
//   - Call durations with percentile calculations (P50, P95, P99)
//   - Current breaker state and transition counts
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the call path. Events are sent via buffered channels with
// non-blocking semantics so a saturated collector never slows a protected call.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	// Emit events around protected calls
//	collector.EventChannel() <- metrics.MetricEvent{
//		Type:     metrics.EventCallSucceeded,
//		Breaker:  "payments",
//		Duration: 150 * time.Millisecond,
//	}
//
//	// Get metrics snapshot
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics
