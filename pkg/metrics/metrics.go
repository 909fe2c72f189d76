// Package metrics exposes Prometheus collectors for the table engine.
//
// All collectors are registered with the default registry on package load
// through promauto, so a host only has to serve promhttp to export them.
//
// # Basic Usage
//
//	// Count written rows
//	metrics.RowsWritten.Add(float64(n))
//
//	// Time a lazy open
//	timer := metrics.NewTimer("lazy_open")
//	err := table.EnsureOpen(ctx)
//	metrics.LazyOpenLatency.Observe(timer.Stop().Seconds())
//	metrics.LazyOpens.WithLabelValues(metrics.Status(err, nil)).Inc()
//
// # Metric Types
//
// Counter: rows written, containers closed, lazy opens, iterators opened
// Gauge: tables currently holding an open store
// Histogram: lazy open latency
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	StatusCancelled = "cancelled"
)

// Iterator kind label values.
const (
	IteratorFull         = "full"
	IteratorProjected    = "projected"
	IteratorEmptyKeyed   = "empty_keyed"
	IteratorEmptyKeyless = "empty_keyless"
)

var (
	// RowsWritten counts rows appended to row containers.
	RowsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coltable_rows_written_total",
			Help: "Total number of rows appended to row containers",
		},
	)

	// ContainersClosed counts row container closes by outcome.
	// Labels: status (success/failure/cancelled)
	//
	// Example:
	//	metrics.ContainersClosed.WithLabelValues(metrics.StatusSuccess).Inc()
	ContainersClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coltable_containers_closed_total",
			Help: "Total number of row containers sealed into tables",
		},
		[]string{"status"},
	)

	// LazyOpens counts executions of the lazy table open routine.
	// Labels: status (success/failure/cancelled)
	LazyOpens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coltable_lazy_opens_total",
			Help: "Total number of lazy table store opens",
		},
		[]string{"status"},
	)

	// LazyOpenLatency tracks how long opening a persisted store takes.
	LazyOpenLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "coltable_lazy_open_latency_seconds",
			Help: "Latency of lazy table store opens in seconds",
			Buckets: []float64{
				0.0001, // 100μs - small in-cache tables
				0.001,  // 1ms
				0.01,   // 10ms
				0.1,    // 100ms
				1,      // 1s - large uncompressed tables
				10,     // 10s
			},
		},
	)

	// IteratorsOpened counts row iterators by strategy.
	// Labels: kind (full/projected/empty_keyed/empty_keyless)
	IteratorsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coltable_iterators_opened_total",
			Help: "Total number of row iterators opened",
		},
		[]string{"kind"},
	)

	// TablesLive tracks tables that currently own an open store.
	TablesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coltable_tables_live",
			Help: "Number of tables currently holding an open store",
		},
	)
)

// Status maps an operation result onto a status label value. Cancelled is
// reported separately when isCancelled says so.
func Status(err error, isCancelled func(error) bool) string {
	switch {
	case err == nil:
		return StatusSuccess
	case isCancelled != nil && isCancelled(err):
		return StatusCancelled
	default:
		return StatusFailure
	}
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. The timer can be stopped
// multiple times, each returning the total elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
