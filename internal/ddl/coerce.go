package ddl

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"ingest/internal/errs"
	"ingest/internal/record"
)

// Coerce converts v into the Go value a driver expects for kind. nil stays
// nil; blank strings become nil for non-text kinds.
func Coerce(kind Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case KindInteger:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindTimestamp:
		return toTime(v)
	default:
		return toText(v), nil
	}
}

// CoerceRow converts every value of row according to kinds (positional) and
// returns a new slice.
func CoerceRow(kinds []Kind, row record.Row) ([]any, error) {
	if len(row) != len(kinds) {
		return nil, errs.Newf("ddl: row has %d values, want %d", len(row), len(kinds))
	}
	out := make([]any, len(row))
	for i, v := range row {
		c, err := Coerce(kinds[i], v)
		if err != nil {
			return nil, errs.Wrapf(err, "column %d", i)
		}
		out[i] = c
	}
	return out, nil
}

// toInt follows the float-to-bigint assignment cast: fractional values are
// rounded half to even.
func toInt(v any) (any, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return roundInt(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundInt(f)
		}
		return nil, errs.Newf("value %q is not an integer", s)
	}
	return nil, errs.Newf("cannot use %T as integer", v)
}

func roundInt(f float64) (any, error) {
	r := math.RoundToEven(f)
	if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
		return nil, errs.Newf("value %v is out of integer range", f)
	}
	return int64(r), nil
}

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errs.Newf("value %q is not a number", s)
		}
		return f, nil
	}
	return nil, errs.Newf("cannot use %T as float", v)
}

func toTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return record.ParseTime(t, nil)
	}
	return nil, errs.Newf("cannot use %T as timestamp", v)
}

func toText(v any) any {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
