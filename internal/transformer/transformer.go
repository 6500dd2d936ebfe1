// Package transformer applies the configured cleaning steps to each batch.
//
// Steps are compiled against the batch's column set once per batch (column
// positions are resolved up front) and then run row by row. The input batch
// is never mutated; rows that survive are copies.
package transformer

import (
	"ingest/internal/config"
	"ingest/internal/record"
	"ingest/internal/transformer/builtin"
)

// Step is one row filter/converter. Bind returns nil when none of the step's
// columns are present, in which case the step is skipped for the batch. The
// returned function may rewrite values in the row it is given and reports
// whether the row is kept.
type Step interface {
	Name() string
	Bind(columns []string) func(record.Row) bool
}

// Stats describes one Transform call.
type Stats struct {
	In  int
	Out int
	// Dropped counts rows by the first step that rejected them.
	Dropped map[string]int
}

// DroppedTotal returns In - Out.
func (s Stats) DroppedTotal() int { return s.In - s.Out }

// Transformer runs steps in order. It holds no per-run state and is safe for
// concurrent use.
type Transformer struct {
	steps []Step
}

// New returns a Transformer running steps in the given order.
func New(steps ...Step) *Transformer { return &Transformer{steps: steps} }

// FromConfig builds the default step order (required fields, timestamps,
// positive amounts, bounding box), keeping only the enabled steps.
func FromConfig(cfg config.Transform) *Transformer {
	var steps []Step
	if cfg.StepEnabled(config.StepRequiredFields) {
		steps = append(steps, builtin.Require{Fields: cfg.RequiredFields})
	}
	if cfg.StepEnabled(config.StepTimestampFields) {
		steps = append(steps, builtin.Timestamps{Fields: cfg.TimestampFields, Layouts: cfg.TimestampLayouts})
	}
	if cfg.StepEnabled(config.StepPositiveFields) {
		steps = append(steps, builtin.Positive{Fields: cfg.PositiveFields})
	}
	if cfg.StepEnabled(config.StepBoundingBox) {
		b := cfg.BoundingBox
		steps = append(steps, builtin.BoundingBox{
			LongitudeField: b.LongitudeField,
			LatitudeField:  b.LatitudeField,
			MinLon:         b.MinLon,
			MaxLon:         b.MaxLon,
			MinLat:         b.MinLat,
			MaxLat:         b.MaxLat,
		})
	}
	return New(steps...)
}

// Steps returns the configured step names in order.
func (t *Transformer) Steps() []string {
	names := make([]string, len(t.steps))
	for i, s := range t.steps {
		names[i] = s.Name()
	}
	return names
}

// Transform returns a new batch holding the rows that pass every step. The
// column set and index are carried over unchanged.
func (t *Transformer) Transform(in record.Batch) (record.Batch, Stats) {
	st := Stats{In: len(in.Rows), Dropped: map[string]int{}}

	type bound struct {
		name string
		fn   func(record.Row) bool
	}
	plan := make([]bound, 0, len(t.steps))
	for _, s := range t.steps {
		if fn := s.Bind(in.Columns); fn != nil {
			plan = append(plan, bound{s.Name(), fn})
		}
	}

	out := make([]record.Row, 0, len(in.Rows))
rows:
	for _, r := range in.Rows {
		row := r.Clone()
		for _, p := range plan {
			if !p.fn(row) {
				st.Dropped[p.name]++
				continue rows
			}
		}
		out = append(out, row)
	}
	st.Out = len(out)
	return in.WithRows(out), st
}
