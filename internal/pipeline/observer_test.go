package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ingest/internal/errs"
	"ingest/internal/metrics"
	"ingest/internal/record"
)

func TestObserversFanOut(t *testing.T) {
	t.Parallel()
	a, b := &recorder{}, &recorder{}
	obs := Observers{a, b, nopObserver{}}

	obs.OnChunkProgress(Progress{Chunk: 1, Rows: 3})
	obs.OnStateChange(Idle, Acquiring)
	obs.OnComplete(Summary{TotalRows: 3})
	obs.OnError(&RunError{Kind: "WriteError"})

	for _, r := range []*recorder{a, b} {
		require.Len(t, r.progress, 1)
		assert.EqualValues(t, 3, r.progress[0].Rows)
		assert.Equal(t, []State{Acquiring}, r.states)
		require.NotNil(t, r.summary)
		require.NotNil(t, r.runErr)
	}
}

func TestLogObserver(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	o := NewLogObserver(zap.New(core).Sugar())

	o.OnStateChange(Provisioning, Writing)
	o.OnChunkProgress(Progress{
		RunID:          "r1",
		Chunk:          2,
		Rows:           1000,
		Elapsed:        1500 * time.Millisecond,
		CumulativeRows: 2000,
		Fingerprint:    0xabc,
		DroppedBy:      map[string]int{"positive_fields": 4},
	})
	o.OnComplete(Summary{RunID: "r1", Relation: "trips", TotalRows: 1234567})
	o.OnError(&RunError{RunID: "r1", Kind: "WriteError", State: Writing, Err: errs.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, "pipeline: state", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)

	chunk := entries[1]
	assert.Equal(t, "pipeline: inserted chunk 2 (1000 records) in 1.500 seconds. Total: 2,000", chunk.Message)
	fields := chunk.ContextMap()
	assert.Equal(t, "r1", fields["run_id"])
	assert.Equal(t, "0000000000000abc", fields["fingerprint"])
	assert.Contains(t, fields, "dropped_by")

	assert.Equal(t, "pipeline: completed", entries[2].Message)
	assert.Equal(t, "1,234,567", entries[2].ContextMap()["rows"])

	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "writing", entries[3].ContextMap()["state"])
}

type backendCall struct {
	name   string
	value  float64
	labels metrics.Labels
}

type fakeBackend struct {
	counters   []backendCall
	histograms []backendCall
	flushes    int
	flushErr   error
}

func (b *fakeBackend) IncCounter(name string, v float64, l metrics.Labels) {
	b.counters = append(b.counters, backendCall{name, v, l})
}

func (b *fakeBackend) ObserveHistogram(name string, v float64, l metrics.Labels) {
	b.histograms = append(b.histograms, backendCall{name, v, l})
}

func (b *fakeBackend) Flush() error {
	b.flushes++
	return b.flushErr
}

func (b *fakeBackend) counter(name, key, value string) float64 {
	var sum float64
	for _, c := range b.counters {
		if c.name == name && (key == "" || c.labels[key] == value) {
			sum += c.value
		}
	}
	return sum
}

func TestMetricsObserver(t *testing.T) {
	t.Parallel()
	b := &fakeBackend{}
	o := NewMetricsObserver(metrics.NewRecorder(b, "trips"), nil)

	o.OnChunkProgress(Progress{Read: 10, Dropped: 2, Rows: 8, Elapsed: time.Second})
	o.OnChunkProgress(Progress{Read: 5, Rows: 5, Elapsed: time.Second})
	o.OnComplete(Summary{TotalElapsed: 2 * time.Second})

	assert.EqualValues(t, 15, b.counter(metrics.RecordsTotal, "kind", metrics.KindRead))
	assert.EqualValues(t, 2, b.counter(metrics.RecordsTotal, "kind", metrics.KindDropped))
	assert.EqualValues(t, 13, b.counter(metrics.RecordsTotal, "kind", metrics.KindWritten))
	assert.EqualValues(t, 2, b.counter(metrics.BatchesTotal, "", ""))
	assert.EqualValues(t, 1, b.counter(metrics.StepTotal, "status", "success"))
	assert.Equal(t, 1, b.flushes)
}

func TestMetricsObserverOnError(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	b := &fakeBackend{flushErr: errs.New("gateway down")}
	o := NewMetricsObserver(metrics.NewRecorder(b, "trips"), zap.New(core).Sugar())

	o.OnError(&RunError{State: Writing, Err: errs.New("boom")})

	assert.EqualValues(t, 2, b.counter(metrics.StepTotal, "status", "failure"))
	assert.EqualValues(t, 1, b.counter(metrics.StepTotal, "step", "writing"))
	assert.Equal(t, 1, b.flushes)
	require.Equal(t, 1, logs.Len())
	assert.True(t, strings.HasPrefix(logs.All()[0].Message, "metrics: flush failed"))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	ts := time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC)
	b := record.Batch{
		Index:   1,
		Columns: []string{"pickup", "fare", "vendor", "note"},
		Rows: []record.Row{
			{ts, 12.5, int64(1), nil},
			{ts, 3.0, int64(2), "x"},
		},
	}

	same := b
	same.Index = 7
	assert.Equal(t, Fingerprint(b), Fingerprint(same))

	changed := cloneBatch(b)
	changed.Rows[1][3] = "y"
	assert.NotEqual(t, Fingerprint(b), Fingerprint(changed))

	blank := cloneBatch(b)
	blank.Rows[0][3] = ""
	assert.NotEqual(t, Fingerprint(b), Fingerprint(blank))

	renamed := cloneBatch(b)
	renamed.Columns = []string{"pickup", "fare", "vendor", "memo"}
	assert.NotEqual(t, Fingerprint(b), Fingerprint(renamed))
}

func cloneBatch(b record.Batch) record.Batch {
	out := b
	out.Rows = make([]record.Row, len(b.Rows))
	for i, r := range b.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}
