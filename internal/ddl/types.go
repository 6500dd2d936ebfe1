package ddl

import (
	"strings"

	"ingest/internal/errs"
)

// Kind is the logical column type inferred for a destination column. Each
// backend maps it onto a concrete SQL type.
type Kind string

const (
	KindText      Kind = "text"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindTimestamp Kind = "timestamp"
)

// ParseKind normalizes a user-supplied type name (e.g. "bigint", "double",
// "timestamptz") onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "varchar", "":
		return KindText, nil
	case "int", "integer", "bigint", "int8", "int4", "int2":
		return KindInteger, nil
	case "float", "double", "float8", "real", "numeric", "decimal", "double precision":
		return KindFloat, nil
	case "timestamp", "timestamptz", "datetime", "date":
		return KindTimestamp, nil
	}
	return "", errs.Kindf(errs.ErrConfig, "ddl: unknown column type %q", s)
}

// ColumnDef describes one destination column. Name is unquoted; quoting
// happens at render time.
type ColumnDef struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// TableDef is the schema descriptor for one relation: its (possibly
// schema-qualified) name and ordered columns.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Kinds returns the column kinds in order.
func (t TableDef) Kinds() []Kind {
	out := make([]Kind, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Kind
	}
	return out
}
