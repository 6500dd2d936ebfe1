// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// An ingestion run is a batch job with no long-lived HTTP endpoint to scrape,
// so collected metrics are pushed to a Pushgateway on Flush. The job label is
// the Pushgateway grouping key; the remaining labels map onto collector
// labels.
package prompush

import (
	"ingest/internal/errs"
	"ingest/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // ingest_step_total
	stepDuration  *prometheus.SummaryVec // ingest_step_duration_seconds
	recordCounter *prometheus.CounterVec // ingest_records_total
	batchCounter  prometheus.Counter     // ingest_batches_total
	batchDuration prometheus.Histogram   // ingest_batch_duration_seconds
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend constructs a Pushgateway backend. An empty jobName defaults to
// "ingest".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, errs.Kindf(errs.ErrConfig, "prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ingest"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline stage executions, partitioned by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Duration of pipeline stages in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Record counts per kind (read, dropped, written).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Committed batches.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.BatchDurationSeconds,
			Help:    "Per-batch transform and write latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.recordCounter, b.batchCounter, b.batchDuration} {
		if err := b.reg.Register(c); err != nil {
			return nil, errs.Wrap(err, "prompush: register collector")
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batchCounter.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.BatchDurationSeconds:
		b.batchDuration.Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway, replacing the
// previous push for this job.
func (b *Backend) Flush() error {
	if err := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push(); err != nil {
		return errs.Wrap(err, "prompush: push")
	}
	return nil
}
