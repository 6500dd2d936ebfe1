// Package schema derives the destination structure from the first
// transformed batch and provisions it according to an existence policy.
package schema

import (
	"strconv"
	"strings"
	"time"

	"ingest/internal/ddl"
	"ingest/internal/record"
)

// Hints steer inference. Overrides win over everything; the field lists name
// columns whose type the transform steps fix regardless of the sampled data.
type Hints struct {
	// Overrides maps column name (case-insensitive) to a kind.
	Overrides       map[string]ddl.Kind
	TimestampFields []string
	PositiveFields  []string
}

// InferTableDef builds a TableDef for relation from batch. It works for
// batches with zero rows. Precedence per column:
//
//   - explicit override
//   - configured timestamp field
//   - configured positive field → float, the type the positive step stores
//   - observed values (all time.Time → timestamp; all integers → integer;
//     all numbers → float; anything else → text)
//   - text
func InferTableDef(relation string, batch record.Batch, h Hints) ddl.TableDef {
	overrides := make(map[string]ddl.Kind, len(h.Overrides))
	for k, v := range h.Overrides {
		overrides[strings.ToLower(k)] = v
	}
	ts := toSet(h.TimestampFields)
	pos := toSet(h.PositiveFields)

	cols := make([]ddl.ColumnDef, len(batch.Columns))
	for i, name := range batch.Columns {
		kind, ok := overrides[strings.ToLower(name)]
		if !ok {
			switch {
			case ts[name]:
				kind = ddl.KindTimestamp
			case pos[name]:
				kind = ddl.KindFloat
			default:
				kind = observedKind(batch.Rows, i)
			}
		}
		if kind == "" {
			kind = ddl.KindText
		}
		cols[i] = ddl.ColumnDef{Name: name, Kind: kind, Nullable: true}
	}
	return ddl.TableDef{Name: relation, Columns: cols}
}

// observedKind classifies column i across rows, ignoring nulls. It returns
// "" when every value is null.
func observedKind(rows []record.Row, i int) ddl.Kind {
	var seen, times, ints, nums int
	for _, r := range rows {
		if i >= len(r) || record.IsNull(r[i]) {
			continue
		}
		seen++
		switch v := r[i].(type) {
		case time.Time:
			times++
		case int64:
			ints++
			nums++
		case float64:
			nums++
		case string:
			s := strings.TrimSpace(v)
			if _, err := strconv.ParseInt(s, 10, 64); err == nil {
				ints++
				nums++
			} else if _, err := strconv.ParseFloat(s, 64); err == nil {
				nums++
			}
		}
	}
	switch {
	case seen == 0:
		return ""
	case times == seen:
		return ddl.KindTimestamp
	case ints == seen:
		return ddl.KindInteger
	case nums == seen:
		return ddl.KindFloat
	}
	return ddl.KindText
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
