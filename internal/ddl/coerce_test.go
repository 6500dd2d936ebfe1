package ddl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/record"
)

func TestCoerce(t *testing.T) {
	t.Parallel()

	ts := time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC)
	cases := []struct {
		name    string
		kind    Kind
		in      any
		want    any
		wantErr bool
	}{
		{"nil_passes", KindInteger, nil, nil, false},
		{"int_from_string", KindInteger, " 42 ", int64(42), false},
		{"int_from_pandas_float", KindInteger, "1.0", int64(1), false},
		{"int_rounds_fraction_to_even", KindInteger, 2.5, int64(2), false},
		{"int_rounds_string_fraction", KindInteger, "0.5", int64(0), false},
		{"int_rounds_up", KindInteger, "-1.7", int64(-2), false},
		{"int_rejects_infinity", KindInteger, "Inf", nil, true},
		{"int_rejects_nan", KindInteger, "NaN", nil, true},
		{"int_rejects_overflow", KindInteger, 1e19, nil, true},
		{"int_blank_is_null", KindInteger, "", nil, false},
		{"float_from_string", KindFloat, "12.5", 12.5, false},
		{"float_from_int", KindFloat, int64(3), 3.0, false},
		{"float_rejects_text", KindFloat, "abc", nil, true},
		{"time_passthrough", KindTimestamp, ts, ts, false},
		{"time_from_string", KindTimestamp, "2021-01-01 00:30:10", ts, false},
		{"time_rejects_garbage", KindTimestamp, "yesterday", nil, true},
		{"text_from_float", KindText, 2.25, "2.25", false},
		{"text_from_time", KindText, ts, "2021-01-01 00:30:10", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Coerce(tc.kind, tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCoerceRow(t *testing.T) {
	t.Parallel()

	kinds := []Kind{KindInteger, KindText}
	out, err := CoerceRow(kinds, record.Row{"7", "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(7), "x"}, out)

	_, err = CoerceRow(kinds, record.Row{"7"})
	require.Error(t, err)

	_, err = CoerceRow(kinds, record.Row{"seven", "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 0")
}
