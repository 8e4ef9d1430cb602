package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bahramrousta/circuit-breaker/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with specified buffer size", func() {
			c := metrics.NewCollector(500, log)
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("EventChannel", func() {
		It("should return a write-only channel", func() {
			ch := collector.EventChannel()
			Expect(ch).NotTo(BeNil())
		})
	})

	Describe("Start and event processing", func() {
		It("should process EventCallSucceeded", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventCallSucceeded,
				Timestamp: time.Now(),
				Breaker:   "payments",
				Duration:  100 * time.Millisecond,
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["payments"].Successes).To(Equal(int64(1)))
			Expect(snap.Breakers["payments"].AvgResponse).To(Equal(100 * time.Millisecond))
		})

		It("should process EventCallFailed", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventCallFailed,
				Timestamp: time.Now(),
				Breaker:   "payments",
				Duration:  50 * time.Millisecond,
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["payments"].Failures).To(Equal(int64(1)))
		})

		It("should process EventCallRejected", func() {
			collector.Start(ctx)

			event := metrics.MetricEvent{
				Type:      metrics.EventCallRejected,
				Timestamp: time.Now(),
				Breaker:   "payments",
				Reason:    metrics.ReasonOpen,
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["payments"].Rejections[metrics.ReasonOpen]).To(Equal(int64(1)))
		})

		It("should process EventStateChanged", func() {
			collector.Start(ctx)

			at := time.Now()
			event := metrics.MetricEvent{
				Type:      metrics.EventStateChanged,
				Timestamp: at,
				Breaker:   "payments",
				State:     "OPEN",
			}

			collector.EventChannel() <- event
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.Breakers["payments"].State).To(Equal("OPEN"))
			Expect(snap.Breakers["payments"].LastTransition).To(Equal(at))
		})

		It("should process multiple events in sequence", func() {
			collector.Start(ctx)

			events := []metrics.MetricEvent{
				{
					Type:      metrics.EventCallFailed,
					Timestamp: time.Now(),
					Breaker:   "payments",
					Duration:  50 * time.Millisecond,
				},
				{
					Type:      metrics.EventStateChanged,
					Timestamp: time.Now(),
					Breaker:   "payments",
					State:     "OPEN",
				},
				{
					Type:      metrics.EventCallRejected,
					Timestamp: time.Now(),
					Breaker:   "payments",
					Reason:    metrics.ReasonOpen,
				},
			}

			for _, event := range events {
				collector.EventChannel() <- event
			}
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			breaker := snap.Breakers["payments"]
			Expect(breaker.Failures).To(Equal(int64(1)))
			Expect(breaker.State).To(Equal("OPEN"))
			Expect(breaker.Rejections[metrics.ReasonOpen]).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			collector.Start(ctx)

			// Send events before cancellation
			for i := 0; i < 5; i++ {
				collector.EventChannel() <- metrics.MetricEvent{
					Type:      metrics.EventCallSucceeded,
					Timestamp: time.Now(),
					Breaker:   "payments",
					Duration:  time.Millisecond,
				}
			}

			cancel()
			time.Sleep(20 * time.Millisecond)

			snap := collector.Snapshot()
			// All events should be processed via drain
			Expect(snap.Breakers["payments"].Successes).To(Equal(int64(5)))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallSucceeded,
				Timestamp: time.Now(),
				Breaker:   "payments",
				Duration:  time.Millisecond,
			}
			time.Sleep(10 * time.Millisecond)

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec := httptest.NewRecorder()
			collector.Handler().ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.TotalCalls).To(Equal(int64(1)))
			Expect(snap.Breakers).To(HaveKey("payments"))
		})
	})

	Describe("Snapshot", func() {
		It("should return current metrics snapshot", func() {
			collector.Start(ctx)

			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventCallSucceeded,
				Timestamp: time.Now(),
				Breaker:   "payments",
				Duration:  time.Millisecond,
			}
			time.Sleep(10 * time.Millisecond)

			snap := collector.Snapshot()
			Expect(snap.TotalCalls).To(Equal(int64(1)))
		})
	})
})
