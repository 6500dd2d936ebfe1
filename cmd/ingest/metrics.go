package main

import (
	"go.uber.org/zap"

	"ingest/internal/config"
	"ingest/internal/metrics"
	"ingest/internal/metrics/datadog"
	"ingest/internal/metrics/prompush"
)

// newRecorder selects the metrics backend. A backend that cannot be set up
// is logged and replaced by a no-op one; metrics never fail a run.
func newRecorder(p config.Pipeline, log *zap.SugaredLogger) *metrics.Recorder {
	var b metrics.Backend = metrics.Nop{}
	switch p.Metrics.Backend {
	case "", "none":
		log.Debugw("metrics: disabled")
	case "pushgateway":
		pb, err := prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL)
		if err != nil {
			log.Warnw("metrics: pushgateway backend unavailable; using nop", "err", err)
			break
		}
		log.Debugw("metrics: pushgateway", "url", p.Metrics.PushgatewayURL, "job", p.Job)
		b = pb
	case "datadog":
		addr := p.Metrics.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		db, err := datadog.NewBackend(datadog.Config{Addr: addr})
		if err != nil {
			log.Warnw("metrics: datadog backend unavailable; using nop", "err", err)
			break
		}
		log.Debugw("metrics: datadog", "addr", addr)
		b = db
	default:
		log.Warnw("metrics: unknown backend; metrics disabled", "backend", p.Metrics.Backend)
	}
	return metrics.NewRecorder(b, p.Job)
}
