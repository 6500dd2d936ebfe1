// Package ddl defines a small, backend-agnostic model for destination
// relations and renders CREATE/DROP statements through a per-backend Dialect.
//
// The package does not know any SQL dialect itself: identifier quoting and
// type mapping come from the Dialect supplied by the storage backend.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect carries the backend-specific rendering rules.
type Dialect struct {
	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(string) string
	// MapType returns the SQL type for a Kind.
	MapType func(Kind) string
	// DropIfExists renders a DROP TABLE statement for an already quoted name.
	// Nil means "DROP TABLE IF EXISTS <name>".
	DropIfExists func(quoted string) string
}

// QuoteName quotes a possibly schema-qualified name ("public.trips") segment
// by segment. Empty segments are ignored.
func (d Dialect) QuoteName(name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// BuildCreateTableSQL renders a deterministic CREATE TABLE statement.
//
// Rules:
//   - t.Name must be non-empty.
//   - At least one column; every column needs a non-empty name.
//   - A column is rendered as `<quoted name> <MapType(kind)> [NOT NULL]`.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cn := strings.TrimSpace(c.Name)
		if cn == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		kind := c.Kind
		if kind == "" {
			kind = KindText
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(cn))
		sb.WriteByte(' ')
		sb.WriteString(d.MapType(kind))
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n)",
		d.QuoteName(name),
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildDropTableSQL renders the statement that removes the relation if present.
func BuildDropTableSQL(name string, d Dialect) string {
	q := d.QuoteName(name)
	if d.DropIfExists != nil {
		return d.DropIfExists(q)
	}
	return "DROP TABLE IF EXISTS " + q
}
