package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bahramrousta/circuit-breaker/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		var err error
		registry, err = circuitbreaker.NewRegistry(circuitbreaker.Config{
			MaxFailures:         5,
			ResetTimeout:        30 * time.Second,
			HalfOpenMaxRequests: 1,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should create a registry", func() {
			Expect(registry).NotTo(BeNil())
		})

		It("should reject invalid configuration", func() {
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				MaxFailures:         0,
				ResetTimeout:        time.Second,
				HalfOpenMaxRequests: 1,
			})
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidConfig))
			Expect(registry).To(BeNil())
		})
	})

	Describe("GetBreaker", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.GetBreaker("payments")
			Expect(cb).NotTo(BeNil())
			Expect(cb.Name()).To(Equal("payments"))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.GetBreaker("payments")
			cb2 := registry.GetBreaker("payments")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.GetBreaker("payments")
			cb2 := registry.GetBreaker("inventory")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should use the registry config for new breakers", func() {
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				MaxFailures:         2,
				ResetTimeout:        100 * time.Millisecond,
				HalfOpenMaxRequests: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			cb := registry.GetBreaker("payments")
			cb.Execute(failingCall)
			cb.Execute(failingCall)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should apply registry options to new breakers", func() {
			var notified []string
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				MaxFailures:         1,
				ResetTimeout:        time.Second,
				HalfOpenMaxRequests: 1,
			}, circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				notified = append(notified, name)
			}))
			Expect(err).NotTo(HaveOccurred())

			registry.Execute("payments", failingCall)
			Expect(notified).To(Equal([]string{"payments"}))
		})
	})

	Describe("Execute", func() {
		It("should run the call through the named breaker", func() {
			result, err := registry.Execute("payments", healthyCall)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))

			_, err = registry.Execute("payments", failingCall)
			Expect(err).To(MatchError(errServiceDown))
		})

		It("should isolate failures between dependencies", func() {
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				MaxFailures:         2,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			// Trip the payments circuit
			registry.Execute("payments", failingCall)
			registry.Execute("payments", failingCall)

			_, err = registry.Execute("payments", healthyCall)
			Expect(err).To(MatchError(circuitbreaker.ErrOpenState))

			// Inventory still has a closed circuit of its own
			result, err := registry.Execute("inventory", healthyCall)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))
			Expect(registry.GetBreaker("inventory").State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent GetBreaker calls safely", func() {
			const goroutines = 100
			const callsPerGoroutine = 10

			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < callsPerGoroutine; j++ {
						cb := registry.GetBreaker("payments") // Same name
						Expect(cb).NotTo(BeNil())
					}
				}()
			}

			wg.Wait()

			// Should only have one breaker for the name
			stats := registry.Stats()
			Expect(stats).To(HaveLen(1))
		})

		It("should handle concurrent calls through the same breaker", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			// Half failing calls
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					registry.Execute("payments", failingCall)
				}()
			}

			// Half healthy calls
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					registry.Execute("payments", healthyCall)
				}()
			}

			wg.Wait()

			// Should not panic and state should be valid
			state := registry.GetBreaker("payments").State()
			Expect(state).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})

	Describe("Reset", func() {
		It("should clear all breakers", func() {
			registry.GetBreaker("payments")
			registry.GetBreaker("inventory")
			registry.GetBreaker("search")

			stats := registry.Stats()
			Expect(stats).To(HaveLen(3))

			registry.Reset()

			stats = registry.Stats()
			Expect(stats).To(HaveLen(0))
		})

		It("should hand out a fresh circuit after reset", func() {
			registry, err := circuitbreaker.NewRegistry(circuitbreaker.Config{
				MaxFailures:         1,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			registry.Execute("payments", failingCall)
			_, err = registry.Execute("payments", healthyCall)
			Expect(err).To(MatchError(circuitbreaker.ErrOpenState))

			registry.Reset()

			result, err := registry.Execute("payments", healthyCall)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal("ok"))
		})
	})

	Describe("Stats", func() {
		It("should return a snapshot of all breakers", func() {
			cb1 := registry.GetBreaker("payments")
			cb2 := registry.GetBreaker("inventory")

			// Trip the inventory circuit
			for i := 0; i < 5; i++ {
				cb2.Execute(failingCall)
			}

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["payments"].State).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["payments"].Failures).To(BeZero())
			Expect(stats["inventory"].State).To(Equal(circuitbreaker.StateOpen))
			Expect(stats["inventory"].Failures).To(Equal(5))
			Expect(stats["inventory"].RetryAfter).To(BeNumerically(">", 0))

			Expect(cb1.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})
})
