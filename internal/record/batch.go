// Package record defines the in-memory unit that flows through the pipeline:
// a Batch of positional rows sharing one column set.
package record

import "time"

// Row holds one record's values aligned to Batch.Columns. A value is nil,
// string, int64, float64, or time.Time.
type Row []any

// Batch is a bounded group of rows decoded from one source. Index is the
// 1-based chunk number assigned by the reader.
type Batch struct {
	Index   int
	Columns []string
	Rows    []Row
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Rows) }

// ColumnIndex returns the position of name in the column set or -1.
func (b Batch) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// WithRows returns a copy of the batch header carrying rows. The receiver is
// not modified.
func (b Batch) WithRows(rows []Row) Batch {
	return Batch{Index: b.Index, Columns: b.Columns, Rows: rows}
}

// Clone returns a copy of r so callers can change values without touching
// the source row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// IsNull reports whether v is a missing value. Empty and whitespace-only
// strings count as missing, matching how the reader represents blank cells.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		for i := 0; i < len(t); i++ {
			if t[i] != ' ' && t[i] != '\t' {
				return false
			}
		}
		return true
	case time.Time:
		return t.IsZero()
	}
	return false
}
