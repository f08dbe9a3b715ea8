// Package metrics exposes classification progress as Prometheus metrics.
// A batch job has no scrape window, so the registry is pushed to a
// Pushgateway at the end of a run when one is configured.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/writer"
)

// Metrics holds the run metrics on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	// Records committed by category
	RecordsWritten *prometheus.CounterVec

	// Duplicates suppressed by category
	RecordsSkipped *prometheus.CounterVec

	// Committed batches by category
	Batches *prometheus.CounterVec

	// Membership set size by category
	ClosureSize *prometheus.GaugeVec

	// Category outcomes by category and status
	CategoryOutcome *prometheus.CounterVec

	// Category wall time
	CategoryDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with every metric registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RecordsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikiner_records_written_total",
			Help: "Classified records committed to the output store",
		}, []string{"category"}),

		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikiner_records_skipped_total",
			Help: "Candidates dropped because the (id, category) record already exists",
		}, []string{"category"}),

		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikiner_batches_total",
			Help: "Bulk writes committed",
		}, []string{"category"}),

		ClosureSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wikiner_membership_classes",
			Help: "Number of classes in the resolved membership set",
		}, []string{"category"}),

		CategoryOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wikiner_category_runs_total",
			Help: "Category runs by final status",
		}, []string{"category", "status"}),

		CategoryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wikiner_category_duration_seconds",
			Help:    "Wall time of a category run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"category"}),
	}
}

// Observer returns a writer observer that counts committed batches
func (m *Metrics) Observer() writer.Observer {
	return func(c writer.Commit) {
		if m == nil {
			return
		}
		label := string(c.Category)
		m.RecordsWritten.WithLabelValues(label).Add(float64(c.Inserted))
		m.Batches.WithLabelValues(label).Inc()
	}
}

// ObserveClosure records the membership set size of a category
func (m *Metrics) ObserveClosure(c model.Category, size int) {
	if m != nil {
		m.ClosureSize.WithLabelValues(string(c)).Set(float64(size))
	}
}

// ObserveCategory records the outcome of a finished category run
func (m *Metrics) ObserveCategory(r model.CategoryReport) {
	if m == nil {
		return
	}
	label := string(r.Category)
	m.CategoryOutcome.WithLabelValues(label, string(r.Status)).Inc()
	if r.Skipped > 0 {
		m.RecordsSkipped.WithLabelValues(label).Add(float64(r.Skipped))
	}
	if r.Status != model.StatusNotRun {
		m.CategoryDuration.WithLabelValues(label).Observe(r.Duration.Seconds())
	}
}

// Push sends the registry to a Pushgateway under job, grouped by run id
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := push.New(url, job).
		Gatherer(m.Registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	return errors.Wrapf(err, "push metrics to %s", url)
}
