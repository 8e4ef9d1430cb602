package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCallSucceeded EventType = "call_succeeded"
	EventCallFailed    EventType = "call_failed"
	EventCallRejected  EventType = "call_rejected"
	EventStateChanged  EventType = "state_changed"
)

// Rejection reasons carried by EventCallRejected events.
const (
	ReasonOpen          = "open"
	ReasonHalfOpenLimit = "half-open-limit"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Breaker   string
	Duration  time.Duration
	Reason    string
	State     string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.RecordSuccess(event.Breaker, event.Duration)

	case EventCallFailed:
		c.metrics.RecordFailure(event.Breaker, event.Duration)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Breaker, event.Reason)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Breaker, event.State, event.Timestamp)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
