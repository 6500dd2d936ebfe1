package builtin

import (
	"time"

	"ingest/internal/record"
)

// Timestamps parses Fields into time.Time. A null value stays null; a value
// that matches none of Layouts drops the row.
type Timestamps struct {
	Fields []string
	// Layouts defaults to record.DefaultTimeLayouts.
	Layouts []string
}

// Name implements transformer.Step.
func (Timestamps) Name() string { return "timestamp_fields" }

// Bind implements transformer.Step.
func (t Timestamps) Bind(columns []string) func(record.Row) bool {
	idx := indexes(columns, t.Fields)
	if len(idx) == 0 {
		return nil
	}
	layouts := t.Layouts
	if len(layouts) == 0 {
		layouts = record.DefaultTimeLayouts
	}
	return func(row record.Row) bool {
		for _, i := range idx {
			switch v := row[i].(type) {
			case nil, time.Time:
			case string:
				if record.IsNull(v) {
					row[i] = nil
					continue
				}
				ts, err := record.ParseTime(v, layouts)
				if err != nil {
					return false
				}
				row[i] = ts
			default:
				return false
			}
		}
		return true
	}
}
