package transformer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/config"
	"ingest/internal/record"
)

var taxiColumns = []string{
	"VendorID", "tpep_pickup_datetime", "tpep_dropoff_datetime",
	"trip_distance", "fare_amount", "pickup_longitude", "pickup_latitude",
}

func taxiRow(pickup, fare, distance, lon, lat any) record.Row {
	return record.Row{"1", pickup, "2021-01-01 00:45:00", distance, fare, lon, lat}
}

func TestTransform_DefaultSteps(t *testing.T) {
	t.Parallel()

	in := record.Batch{Index: 4, Columns: taxiColumns, Rows: []record.Row{
		taxiRow("2021-01-01 00:30:10", "12.5", "2.1", "-73.98", "40.75"), // kept
		taxiRow(nil, "12.5", "2.1", "-73.98", "40.75"),                   // required
		taxiRow("not-a-date", "12.5", "2.1", "-73.98", "40.75"),          // timestamp
		taxiRow("2021-01-01 00:30:10", "0", "2.1", "-73.98", "40.75"),    // positive
		taxiRow("2021-01-01 00:30:10", "-5", "2.1", "-73.98", "40.75"),   // positive
		taxiRow("2021-01-01 00:30:10", "7", "abc", "-73.98", "40.75"),    // positive
		taxiRow("2021-01-01 00:30:10", "7", "1", "0", "0"),               // box
		taxiRow("2021-01-01 00:30:10", "7", "1", "-75", "41"),            // kept: bounds inclusive
	}}
	snapshot := make([]record.Row, len(in.Rows))
	for i, r := range in.Rows {
		snapshot[i] = r.Clone()
	}

	tr := FromConfig(config.Default().Transform)
	assert.Equal(t, []string{"required_fields", "timestamp_fields", "positive_fields", "bounding_box"}, tr.Steps())

	out, st := tr.Transform(in)

	require.Equal(t, 2, out.Len())
	assert.Equal(t, 4, out.Index)
	assert.Equal(t, taxiColumns, out.Columns)
	assert.Equal(t, Stats{In: 8, Out: 2, Dropped: map[string]int{
		"required_fields":  1,
		"timestamp_fields": 1,
		"positive_fields":  3,
		"bounding_box":     1,
	}}, st)
	assert.Equal(t, 6, st.DroppedTotal())

	first := out.Rows[0]
	assert.Equal(t, time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC), first[1])
	assert.Equal(t, 12.5, first[4])
	assert.Equal(t, -73.98, first[5])

	assert.Equal(t, snapshot, in.Rows, "input batch must not be mutated")
}

func TestTransform_MissingColumnsSkipSteps(t *testing.T) {
	t.Parallel()

	in := record.Batch{Index: 1, Columns: []string{"id", "name"}, Rows: []record.Row{
		{"1", nil}, {"2", "x"},
	}}
	out, st := FromConfig(config.Default().Transform).Transform(in)
	assert.Equal(t, in.Rows, out.Rows)
	assert.Empty(t, st.Dropped)
}

func TestTransform_StepSubset(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Transform
	cfg.Steps = []string{config.StepPositiveFields}

	in := record.Batch{Columns: taxiColumns, Rows: []record.Row{
		taxiRow(nil, "3", "1", "0", "0"),
	}}
	out, _ := FromConfig(cfg).Transform(in)
	require.Equal(t, 1, out.Len(), "only the positive step runs")
	assert.Nil(t, out.Rows[0][1])
}

func TestTransform_EmptyBatch(t *testing.T) {
	t.Parallel()

	out, st := New().Transform(record.Batch{Index: 1, Columns: []string{"a"}})
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, []string{"a"}, out.Columns)
	assert.Equal(t, 0, st.DroppedTotal())
}

// TestTransform_UnparseableTimestampDropsOnlyThatRow uses a ten row batch with
// one bad timestamp at position 6.
func TestTransform_UnparseableTimestampDropsOnlyThatRow(t *testing.T) {
	t.Parallel()

	rows := make([]record.Row, 10)
	for i := range rows {
		rows[i] = record.Row{"2021-01-01 00:00:00", "2021-01-01 00:10:00"}
	}
	rows[6][0] = "2021-13-45 99:99:99"

	cfg := config.Default().Transform
	in := record.Batch{Columns: []string{"tpep_pickup_datetime", "tpep_dropoff_datetime"}, Rows: rows}
	out, st := FromConfig(cfg).Transform(in)

	assert.Equal(t, 9, out.Len())
	assert.Equal(t, 1, st.Dropped["timestamp_fields"])
	for _, r := range out.Rows {
		assert.IsType(t, time.Time{}, r[0])
	}
}
