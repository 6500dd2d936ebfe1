package builtin

import (
	"math"
	"strconv"
	"strings"

	"ingest/internal/record"
)

// Positive keeps rows whose Fields are numbers strictly greater than zero and
// stores them as float64. Null and non-numeric values drop the row.
type Positive struct {
	Fields []string
}

// Name implements transformer.Step.
func (Positive) Name() string { return "positive_fields" }

// Bind implements transformer.Step.
func (p Positive) Bind(columns []string) func(record.Row) bool {
	idx := indexes(columns, p.Fields)
	if len(idx) == 0 {
		return nil
	}
	return func(row record.Row) bool {
		for _, i := range idx {
			f, ok := toFloat(row[i])
			if !ok || f <= 0 {
				return false
			}
			row[i] = f
		}
		return true
	}
}

// BoundingBox keeps rows whose coordinates fall inside the box, bounds
// included. Both columns must be present for the step to bind.
type BoundingBox struct {
	LongitudeField, LatitudeField string
	MinLon, MaxLon                float64
	MinLat, MaxLat                float64
}

// NYC returns the box used for New York City taxi pickups.
func NYC() BoundingBox {
	return BoundingBox{
		LongitudeField: "pickup_longitude",
		LatitudeField:  "pickup_latitude",
		MinLon:         -75, MaxLon: -73,
		MinLat: 40, MaxLat: 41,
	}
}

// Name implements transformer.Step.
func (BoundingBox) Name() string { return "bounding_box" }

// Bind implements transformer.Step.
func (b BoundingBox) Bind(columns []string) func(record.Row) bool {
	lon := indexes(columns, []string{b.LongitudeField})
	lat := indexes(columns, []string{b.LatitudeField})
	if len(lon) == 0 || len(lat) == 0 {
		return nil
	}
	li, ai := lon[0], lat[0]
	return func(row record.Row) bool {
		x, ok := toFloat(row[li])
		if !ok || x < b.MinLon || x > b.MaxLon {
			return false
		}
		y, ok := toFloat(row[ai])
		if !ok || y < b.MinLat || y > b.MaxLat {
			return false
		}
		row[li], row[ai] = x, y
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
