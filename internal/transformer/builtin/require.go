// Package builtin contains the row-level cleaning steps applied to every
// batch: required fields, timestamp parsing, positive amounts and a
// geographic bounding box.
//
// Each step binds to a batch's column set first. A step whose columns are
// all absent binds to nil and is skipped for that batch.
package builtin

import (
	"ingest/internal/record"
)

// Require drops rows with a null or blank value in any of Fields.
type Require struct {
	Fields []string
}

// Name implements transformer.Step.
func (Require) Name() string { return "required_fields" }

// Bind implements transformer.Step.
func (r Require) Bind(columns []string) func(record.Row) bool {
	idx := indexes(columns, r.Fields)
	if len(idx) == 0 {
		return nil
	}
	return func(row record.Row) bool {
		for _, i := range idx {
			if record.IsNull(row[i]) {
				return false
			}
		}
		return true
	}
}

// indexes resolves fields against columns, skipping absent ones.
func indexes(columns, fields []string) []int {
	var out []int
	for _, f := range fields {
		for i, c := range columns {
			if c == f {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
