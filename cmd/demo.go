package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bahramrousta/circuit-breaker/internal/circuitbreaker"
	"github.com/bahramrousta/circuit-breaker/internal/metrics"
)

const demoBreakerName = "unreliable-service"

// demo drives a breaker through its full lifecycle against a service that
// goes down and recovers: healthy traffic, an outage that opens the circuit,
// a blocked call, and trial calls once the reset timeout elapses.
type demo struct {
	logger       *slog.Logger
	registry     *circuitbreaker.Registry
	service      *UnreliableService
	collector    *metrics.Collector
	resetTimeout time.Duration
}

func (d *demo) run(ctx context.Context) {
	d.logger.Info("Phase: initial successful requests")
	d.makeRequest()
	d.makeRequest()

	d.logger.Info("Phase: simulating failures")
	d.service.SetFailing(true)
	for i := 0; i < 4; i++ {
		d.makeRequest()
	}

	d.logger.Info("Phase: waiting for reset timeout",
		slog.Duration("timeout", d.resetTimeout))
	if !d.sleep(ctx, d.resetTimeout) {
		return
	}

	d.logger.Info("Phase: trial traffic after recovery")
	d.service.SetFailing(false)
	d.makeRequest()
	d.service.SetFailing(true)
	d.makeRequest()
	d.makeRequest()
	d.service.SetFailing(false)
	d.makeRequest()

	d.logger.Info("Phase: back to normal operation")
	d.makeRequest()

	d.logger.Info("Demo complete, metrics endpoints remain available")
}

func (d *demo) makeRequest() {
	start := time.Now()
	result, err := d.registry.Execute(demoBreakerName, d.service.Call)
	duration := time.Since(start)

	switch {
	case err == nil:
		d.logger.Info("Call succeeded", slog.Any("result", result))
		d.emit(metrics.MetricEvent{
			Type:      metrics.EventCallSucceeded,
			Timestamp: time.Now(),
			Breaker:   demoBreakerName,
			Duration:  duration,
		})

	case circuitbreaker.IsCircuitOpen(err):
		d.logger.Warn("Call rejected", slog.Any("err", err))
		d.emit(metrics.MetricEvent{
			Type:      metrics.EventCallRejected,
			Timestamp: time.Now(),
			Breaker:   demoBreakerName,
			Reason:    rejectionReason(err),
		})

	default:
		d.logger.Error("Call failed", slog.Any("err", err))
		d.emit(metrics.MetricEvent{
			Type:      metrics.EventCallFailed,
			Timestamp: time.Now(),
			Breaker:   demoBreakerName,
			Duration:  duration,
		})
	}
}

func (d *demo) emit(event metrics.MetricEvent) {
	if d.collector == nil {
		return
	}

	select {
	case d.collector.EventChannel() <- event:
	default:
	}
}

func (d *demo) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(duration):
		return true
	}
}

func rejectionReason(err error) string {
	if errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return metrics.ReasonHalfOpenLimit
	}
	return metrics.ReasonOpen
}
