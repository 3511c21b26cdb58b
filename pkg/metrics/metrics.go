// Package metrics provides Prometheus instrumentation for colreplace.
//
// Each Collector owns its metric vectors and registers them on the
// Registerer it is given, so tests and embedding programs can keep their
// own registries apart from the process default.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg)
//
//	timer := metrics.NewTimer("render")
//	result := renderer.Render(table, params)
//	collector.ObserveRender(metrics.OutcomeOK, timer.Stop())
//
//	// Batch jobs have no scrape endpoint; dump the registry instead.
//	metrics.WriteTextfile(reg, "/var/lib/node_exporter/colreplace.prom")
//
// # Metric Types
//
// Counter: renders, columns, values and reconciliations
// Histogram: render duration and the read and write stages of a job
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeNoop  = "noop"
	OutcomeError = "error"
)

// Collector records render and job metrics. All methods are safe for
// concurrent use; a nil *Collector records nothing.
type Collector struct {
	renders         *prometheus.CounterVec   // Renders by outcome
	renderDuration  prometheus.Histogram     // Render wall time
	columns         *prometheus.CounterVec   // Columns rewritten by representation
	values          *prometheus.CounterVec   // Values the matcher ran on
	changed         *prometheus.CounterVec   // Values the rewrite altered
	reconciliations *prometheus.CounterVec   // Type reconciliation results
	stageDuration   *prometheus.HistogramVec // Job stage wall time
	rows            prometheus.Counter       // Rows written by jobs
}

// NewCollector creates a Collector and registers its metrics on reg. A nil
// reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colreplace_renders_total",
				Help: "Total number of render calls by outcome",
			},
			[]string{"outcome"},
		),
		renderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name: "colreplace_render_duration_seconds",
				Help: "Render latency in seconds",
				Buckets: []float64{
					0.0001, // 100μs - small tables
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1,      // 1s - large plain columns
					10,     // 10s
				},
			},
		),
		columns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colreplace_columns_rewritten_total",
				Help: "Total number of columns rewritten",
			},
			[]string{"representation"},
		),
		values: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colreplace_values_matched_total",
				Help: "Total number of values the pattern ran on (dictionary entries for dictionary columns)",
			},
			[]string{"representation"},
		),
		changed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colreplace_values_changed_total",
				Help: "Total number of values altered by a rewrite",
			},
			[]string{"representation"},
		),
		reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "colreplace_type_reconciliations_total",
				Help: "Non-text columns by whether they kept their original type",
			},
			[]string{"result"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "colreplace_job_stage_duration_seconds",
				Help:    "Job stage latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"stage"},
		),
		rows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "colreplace_job_rows_total",
				Help: "Total number of rows written by jobs",
			},
		),
	}
}

// ObserveRender records one render call.
func (c *Collector) ObserveRender(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.renders.WithLabelValues(outcome).Inc()
	c.renderDuration.Observe(d.Seconds())
}

// ObserveColumn records the work done on one column.
func (c *Collector) ObserveColumn(representation string, values, changed int) {
	if c == nil {
		return
	}
	c.columns.WithLabelValues(representation).Inc()
	c.values.WithLabelValues(representation).Add(float64(values))
	c.changed.WithLabelValues(representation).Add(float64(changed))
}

// ObserveReconciliation records whether a non-text column kept its type.
func (c *Collector) ObserveReconciliation(kept bool) {
	if c == nil {
		return
	}
	result := "text"
	if kept {
		result = "kept"
	}
	c.reconciliations.WithLabelValues(result).Inc()
}

// ObserveStage records the duration of a job stage (read, render, write).
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddRows counts rows written by a job.
func (c *Collector) AddRows(n int64) {
	if c == nil {
		return
	}
	c.rows.Add(float64(n))
}

// WriteTextfile writes every metric in g to path in the Prometheus text
// format, for pickup by the node exporter textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

var (
	defaultOnce      sync.Once
	defaultCollector *Collector
)

// Default returns a Collector registered on prometheus.DefaultRegisterer.
// It is created once per process.
func Default() *Collector {
	defaultOnce.Do(func() {
		defaultCollector = NewCollector(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}
