package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex          sync.RWMutex
	successes      map[string]int64
	failures       map[string]int64
	rejections     map[string]map[string]int64
	states         map[string]string
	transitions    map[string]int64
	lastTransition map[string]time.Time
	callDurations  map[string][]time.Duration
	startTime      time.Time
}

type Snapshot struct {
	TotalCalls    int64                     `json:"total_calls"`
	TotalRejected int64                     `json:"total_rejected"`
	Uptime        time.Duration             `json:"uptime"`
	Breakers      map[string]BreakerMetrics `json:"breakers"`
}

type BreakerMetrics struct {
	Successes      int64            `json:"successes"`
	Failures       int64            `json:"failures"`
	Rejections     map[string]int64 `json:"rejections"`
	State          string           `json:"state"`
	Transitions    int64            `json:"transitions"`
	LastTransition time.Time        `json:"last_transition"`
	AvgResponse    time.Duration    `json:"avg_response"`
	P50Response    time.Duration    `json:"p50_response"`
	P95Response    time.Duration    `json:"p95_response"`
	P99Response    time.Duration    `json:"p99_response"`
}

func (m *Metrics) RecordSuccess(breaker string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.successes[breaker]++
	m.recordDuration(breaker, duration)
}

func (m *Metrics) RecordFailure(breaker string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[breaker]++
	m.recordDuration(breaker, duration)
}

// recordDuration must be called with the mutex held.
func (m *Metrics) recordDuration(breaker string, duration time.Duration) {
	m.callDurations[breaker] = append(m.callDurations[breaker], duration)

	if len(m.callDurations[breaker]) > 1000 {
		m.callDurations[breaker] = m.callDurations[breaker][1:]
	}
}

func (m *Metrics) RecordRejection(breaker string, reason string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.rejections[breaker] == nil {
		m.rejections[breaker] = make(map[string]int64)
	}
	m.rejections[breaker][reason]++
}

func (m *Metrics) RecordStateChange(breaker string, state string, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[breaker] = state
	m.transitions[breaker]++
	m.lastTransition[breaker] = at
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Breakers: make(map[string]BreakerMetrics),
	}

	// Collect all breaker names seen on any event stream
	allBreakers := make(map[string]bool)
	for breaker := range m.successes {
		allBreakers[breaker] = true
	}
	for breaker := range m.failures {
		allBreakers[breaker] = true
	}
	for breaker := range m.rejections {
		allBreakers[breaker] = true
	}
	for breaker := range m.states {
		allBreakers[breaker] = true
	}

	for breaker := range allBreakers {
		snap.TotalCalls += m.successes[breaker] + m.failures[breaker]

		bm := BreakerMetrics{
			Successes:      m.successes[breaker],
			Failures:       m.failures[breaker],
			State:          m.states[breaker],
			Transitions:    m.transitions[breaker],
			LastTransition: m.lastTransition[breaker],
		}

		// A breaker that never transitioned is still on its initial state
		if bm.State == "" {
			bm.State = "CLOSED"
		}

		if rejections := m.rejections[breaker]; len(rejections) > 0 {
			bm.Rejections = make(map[string]int64, len(rejections))
			for reason, count := range rejections {
				bm.Rejections[reason] = count
				snap.TotalRejected += count
			}
		}

		durations := m.callDurations[breaker]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			bm.AvgResponse = average(sorted)
			bm.P50Response = percentile(sorted, 0.50)
			bm.P95Response = percentile(sorted, 0.95)
			bm.P99Response = percentile(sorted, 0.99)
		}

		snap.Breakers[breaker] = bm
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		successes:      make(map[string]int64),
		failures:       make(map[string]int64),
		rejections:     make(map[string]map[string]int64),
		states:         make(map[string]string),
		transitions:    make(map[string]int64),
		lastTransition: make(map[string]time.Time),
		callDurations:  make(map[string][]time.Duration),
		startTime:      time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
