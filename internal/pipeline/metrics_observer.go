package pipeline

import (
	"go.uber.org/zap"

	"ingest/internal/metrics"
)

// MetricsObserver forwards progress to a metrics backend and flushes it when
// the run ends.
type MetricsObserver struct {
	rec *metrics.Recorder
	log *zap.SugaredLogger
}

// NewMetricsObserver wraps rec. Flush failures are logged on log.
func NewMetricsObserver(rec *metrics.Recorder, log *zap.SugaredLogger) *MetricsObserver {
	return &MetricsObserver{rec: rec, log: log}
}

func (o *MetricsObserver) OnChunkProgress(p Progress) {
	o.rec.RecordRows(metrics.KindRead, p.Read)
	o.rec.RecordRows(metrics.KindDropped, p.Dropped)
	o.rec.RecordRows(metrics.KindWritten, p.Rows)
	o.rec.RecordBatch(p.Elapsed)
}

func (o *MetricsObserver) OnComplete(s Summary) {
	o.rec.RecordStep("run", nil, s.TotalElapsed)
	o.flush()
}

func (o *MetricsObserver) OnError(e *RunError) {
	o.rec.RecordStep("run", e, e.Metrics.TotalElapsed)
	o.rec.RecordStep(e.State.String(), e, 0)
	o.flush()
}

func (o *MetricsObserver) flush() {
	if err := o.rec.Flush(); err != nil && o.log != nil {
		o.log.Warnw("metrics: flush failed", "err", err)
	}
}
