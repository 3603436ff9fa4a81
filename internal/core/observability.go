package core

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Operation names recorded by the service.
const (
	OpSetup    = "setup"
	OpValidate = "validate"
	OpTransfer = "transfer"
	OpReplay   = "replay"
	OpMinify   = "minify"
)

// Result statuses recorded alongside operations.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// MetricsRecorder receives per-operation timing and result counters.
type MetricsRecorder interface {
	ObserveOperation(op string, duration time.Duration, status string)
}

type nopMetrics struct{}

// NopMetrics discards all observations.
func NopMetrics() MetricsRecorder { return nopMetrics{} }

func (nopMetrics) ObserveOperation(string, time.Duration, string) {}

var expvarSeq uint64

// ExpvarMetricsRecorder publishes aggregate timing and result counters via
// expvar, for deployments that prefer process-local metrics without external
// dependencies. Totals are milliseconds per operation plus status counters.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	results   map[string]map[string]int64
}

// ExpvarMetricsSnapshot is a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs a recorder published under the supplied
// expvar name; an empty name gets a generated unique one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("cellcore_service_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// ObserveOperation accumulates one timed operation result.
func (r *ExpvarMetricsRecorder) ObserveOperation(op string, duration time.Duration, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[op] += float64(duration.Milliseconds())
	statuses, ok := r.results[op]
	if !ok {
		statuses = make(map[string]int64)
		r.results[op] = statuses
	}
	statuses[status]++
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, statuses := range r.results {
		cp := make(map[string]int64, len(statuses))
		for status, count := range statuses {
			cp[status] = count
		}
		results[op] = cp
	}
	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		Results:     results,
		RecordedAt:  time.Now().UTC(),
	}
}
