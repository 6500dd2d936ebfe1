// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from an ingestion run.
//
// Backends (Prometheus Pushgateway, Datadog) live in subpackages so the core
// depends only on the Backend interface. A Recorder binds a backend to one
// job and exposes the few measurements the pipeline reports.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal            = "ingest_step_total"
	StepDurationSeconds  = "ingest_step_duration_seconds"
	RecordsTotal         = "ingest_records_total"
	BatchesTotal         = "ingest_batches_total"
	BatchDurationSeconds = "ingest_batch_duration_seconds"
)

// Record kinds used with RecordsTotal.
const (
	KindRead    = "read"
	KindDropped = "dropped"
	KindWritten = "written"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder reports pipeline measurements for one job.
type Recorder struct {
	backend Backend
	job     string
}

// NewRecorder binds b to job. A nil backend records nothing.
func NewRecorder(b Backend, job string) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{backend: b, job: job}
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error { return r.backend.Flush() }

// RecordStep measures latency and success/failure of a pipeline stage
// (acquire, provision, write, release).
func (r *Recorder) RecordStep(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": r.job, "step": step, "status": status}
	r.backend.IncCounter(StepTotal, 1, lbls)
	r.backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments the record counter for kind (read, dropped,
// written). Non-positive deltas are ignored.
func (r *Recorder) RecordRows(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	r.backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": r.job, "kind": kind})
}

// RecordBatch counts one committed batch and its latency.
func (r *Recorder) RecordBatch(d time.Duration) {
	lbls := Labels{"job": r.job}
	r.backend.IncCounter(BatchesTotal, 1, lbls)
	r.backend.ObserveHistogram(BatchDurationSeconds, d.Seconds(), lbls)
}
