package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/errs"
	"ingest/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "trips", wantErr: true},
		{name: "empty job uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "ingest"},
		{name: "explicit job kept", jobName: "yellow", gatewayURL: "http://pushgateway:9091", wantJobName: "yellow"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.Is(err, errs.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJobName, b.jobName)
		})
	}
}

func TestCountersAndHistograms(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("trips", "http://unused")
	require.NoError(t, err)

	r := metrics.NewRecorder(b, "trips")
	r.RecordRows(metrics.KindRead, 10)
	r.RecordRows(metrics.KindDropped, 3)
	r.RecordRows(metrics.KindRead, 5)
	r.RecordBatch(0)
	r.RecordBatch(0)
	b.IncCounter("unknown_metric", 1, nil)

	assert.Equal(t, 15.0, testutil.ToFloat64(b.recordCounter.WithLabelValues(metrics.KindRead)))
	assert.Equal(t, 3.0, testutil.ToFloat64(b.recordCounter.WithLabelValues(metrics.KindDropped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.batchCounter))
	assert.Equal(t, 1, testutil.CollectAndCount(b.batchDuration))
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("trips", srv.URL)
	require.NoError(t, err)
	metrics.NewRecorder(b, "trips").RecordRows(metrics.KindWritten, 7)

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/trips", path)
	assert.NotEmpty(t, body)
}

func TestFlushReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("trips", srv.URL)
	require.NoError(t, err)
	require.Error(t, b.Flush())
}
