// Package sqldb implements storage.Store on top of database/sql. Backends
// that speak database/sql (sqlite, mysql, mssql) supply a Dialect with their
// quoting, type mapping, catalog queries and bulk insert strategy.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/storage"
)

// InsertFunc appends rows inside tx and returns the number of rows written.
type InsertFunc func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error)

// Dialect describes one SQL backend.
type Dialect struct {
	// Name is used in error messages ("sqlite", "mysql", ...).
	Name string
	DDL  ddl.Dialect
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// ExistsQuery returns a query yielding a single count for name.
	ExistsQuery func(name string) (string, []any)
	// ColumnsQuery returns a query yielding column names of name in order.
	ColumnsQuery func(name string) (string, []any)
	// SampleQuery renders a bounded SELECT * for an already quoted name.
	// Nil means "SELECT * FROM <name> LIMIT <n>".
	SampleQuery func(quoted string, limit int) string
	// Insert overrides the default prepared-statement insert.
	Insert InsertFunc
	// Transient recognises driver errors worth retrying.
	Transient storage.Classifier
}

// Store is a database/sql backed storage.Store.
type Store struct {
	db *sql.DB
	d  Dialect
}

var _ storage.Store = (*Store)(nil)

// New wraps an already open *sql.DB.
func New(db *sql.DB, d Dialect) *Store {
	if d.Placeholder == nil {
		d.Placeholder = func(int) string { return "?" }
	}
	return &Store{db: db, d: d}
}

// Open opens driver with dsn and pings it with a short deadline so an
// unreachable destination fails fast.
func Open(ctx context.Context, driver, dsn string, d Dialect) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errs.Kindf(errs.ErrConfig, "%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errs.WrapKind(err, errs.ErrConfig, "%s: open", d.Name)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.WrapKind(storage.MarkTransient(err, d.Transient), errs.ErrWrite, "%s: ping", d.Name)
	}
	return New(db, d), nil
}

// DB exposes the underlying handle for backend-specific setup.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() { _ = s.db.Close() }

// CreateOrReplaceStructure drops name if present and creates it from def.
func (s *Store) CreateOrReplaceStructure(ctx context.Context, def ddl.TableDef) error {
	create, err := ddl.BuildCreateTableSQL(def, s.d.DDL)
	if err != nil {
		return errs.Mark(err, errs.ErrConfig)
	}
	drop := ddl.BuildDropTableSQL(def.Name, s.d.DDL)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(err, "begin tx")
	}
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		_ = tx.Rollback()
		return s.wrap(err, "drop %s", def.Name)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		_ = tx.Rollback()
		return s.wrap(err, "create %s", def.Name)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap(err, "commit")
	}
	return nil
}

// AppendRows inserts rows into name in a single transaction.
func (s *Store) AppendRows(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, errs.Newf("%s: AppendRows: columns must not be empty", s.d.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return 0, errs.Newf("%s: AppendRows: row %d has %d values, want %d", s.d.Name, i, len(r), len(columns))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.wrap(err, "begin tx")
	}
	insert := s.d.Insert
	if insert == nil {
		insert = s.insertPrepared
	}
	n, err := insert(ctx, tx, name, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, s.wrap(err, "insert into %s", name)
	}
	if err := tx.Commit(); err != nil {
		return 0, s.wrap(err, "commit")
	}
	return n, nil
}

// insertPrepared runs one prepared INSERT per row.
func (s *Store) insertPrepared(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	ph := make([]string, len(columns))
	for i := range ph {
		ph[i] = s.d.Placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.d.DDL.QuoteName(table), strings.Join(s.quoteAll(columns), ", "), strings.Join(ph, ", "))

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return 0, errs.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	var n int64
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return 0, errs.Wrapf(err, "row %d", i)
		}
		n++
	}
	return n, nil
}

// MultiRowInsert returns an InsertFunc that packs rows into multi-row
// VALUES statements of at most maxParams bind parameters each.
func MultiRowInsert(d Dialect, maxParams int) InsertFunc {
	return func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
		per := maxParams / len(columns)
		if per < 1 {
			per = 1
		}
		head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", d.DDL.QuoteName(table), strings.Join(quoteWith(d.DDL, columns), ", "))

		var total int64
		for lo := 0; lo < len(rows); lo += per {
			hi := min(lo+per, len(rows))
			var sb strings.Builder
			sb.WriteString(head)
			args := make([]any, 0, (hi-lo)*len(columns))
			n := 0
			for i := lo; i < hi; i++ {
				if i > lo {
					sb.WriteString(", ")
				}
				sb.WriteByte('(')
				for j := range columns {
					if j > 0 {
						sb.WriteString(", ")
					}
					n++
					if d.Placeholder != nil {
						sb.WriteString(d.Placeholder(n))
					} else {
						sb.WriteByte('?')
					}
				}
				sb.WriteByte(')')
				args = append(args, rows[i]...)
			}
			res, err := tx.ExecContext(ctx, sb.String(), args...)
			if err != nil {
				return total, errs.Wrapf(err, "rows %d-%d", lo, hi-1)
			}
			if affected, err := res.RowsAffected(); err == nil {
				total += affected
			} else {
				total += int64(hi - lo)
			}
		}
		return total, nil
	}
}

// RelationExists reports whether name is present in the catalog.
func (s *Store) RelationExists(ctx context.Context, name string) (bool, error) {
	q, args := s.d.ExistsQuery(name)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, s.wrap(err, "exists %s", name)
	}
	return n > 0, nil
}

// Columns lists the columns of name in ordinal order.
func (s *Store) Columns(ctx context.Context, name string) ([]string, error) {
	q, args := s.d.ColumnsQuery(name)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, s.wrap(err, "columns %s", name)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, s.wrap(err, "scan column")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "columns %s", name)
	}
	return out, nil
}

// CountRows returns the number of rows in name.
func (s *Store) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + s.d.DDL.QuoteName(name)
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, s.wrap(err, "count %s", name)
	}
	return n, nil
}

// SampleRows reads up to limit rows from name.
func (s *Store) SampleRows(ctx context.Context, name string, limit int) (storage.Sample, error) {
	if limit <= 0 {
		return storage.Sample{}, nil
	}
	quoted := s.d.DDL.QuoteName(name)
	q := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoted, limit)
	if s.d.SampleQuery != nil {
		q = s.d.SampleQuery(quoted, limit)
	}
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return storage.Sample{}, s.wrap(err, "sample %s", name)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return storage.Sample{}, s.wrap(err, "sample columns")
	}
	out := storage.Sample{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return storage.Sample{}, s.wrap(err, "scan sample")
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return storage.Sample{}, s.wrap(err, "sample %s", name)
	}
	return out, nil
}

func (s *Store) quoteAll(cols []string) []string { return quoteWith(s.d.DDL, cols) }

func quoteWith(d ddl.Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}

func (s *Store) wrap(err error, format string, args ...any) error {
	return errs.Wrapf(storage.MarkTransient(err, s.d.Transient), s.d.Name+": "+format, args...)
}
