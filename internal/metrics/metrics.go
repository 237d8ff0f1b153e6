package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter names tracked by the catalog.
const (
	CounterEventsCreated    = "events_created"
	CounterEventsApproved   = "events_approved"
	CounterEventsRejected   = "events_rejected"
	CounterEventsDestroyed  = "events_destroyed"
	CounterValidationFailed = "validation_failures"
	CounterDigestRuns       = "digest_runs"
	CounterDigestsSent      = "digests_sent"
	CounterDispatchErrors   = "digest_dispatch_errors"
)

// Metrics is an in-process metrics collector
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]*int64
	gauges    map[string]*int64
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]*int64),
		gauges:    make(map[string]*int64),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	atomic.AddInt64(m.counter(name), value)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if gauge, exists = m.gauges[name]; !exists {
			var g int64
			gauge = &g
			m.gauges[name] = gauge
		}
		m.mu.Unlock()
	}

	atomic.StoreInt64(gauge, value)
}

func (m *Metrics) counter(name string) *int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Check again to avoid race conditions
		if counter, exists = m.counters[name]; !exists {
			var c int64
			counter = &c
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	return counter
}

// Snapshot is a point-in-time view of all metrics
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Counters      map[string]int64 `json:"counters"`
	Gauges        map[string]int64 `json:"gauges"`
}

// GetSnapshot returns a copy of all current metric values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]int64, len(m.gauges)),
	}
	for name, v := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(v)
	}
	for name, v := range m.gauges {
		snap.Gauges[name] = atomic.LoadInt64(v)
	}
	return snap
}
