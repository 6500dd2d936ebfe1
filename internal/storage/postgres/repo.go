// Package postgres implements storage.Store on Postgres using pgx v5. Batches
// are loaded with COPY FROM inside a transaction.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/storage"
)

// Dialect renders the generic DDL model for Postgres.
var Dialect = ddl.Dialect{
	QuoteIdent: pgIdent,
	MapType:    MapType,
}

// MapType maps a column kind to a Postgres type.
func MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindInteger:
		return "BIGINT"
	case ddl.KindFloat:
		return "DOUBLE PRECISION"
	case ddl.KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// DSN resolves the connection string, building a postgres:// URL from the
// parts when no explicit DSN is configured.
func DSN(cfg storage.Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			Path:   "/" + cfg.Database,
		}
		dsn = u.String()
	}
	if _, err := pgxpool.ParseConfig(dsn); err != nil {
		return "", errs.WrapKind(err, errs.ErrConfig, "postgres dsn")
	}
	return dsn, nil
}

// Repository is a Postgres-backed storage.Store (minus Close, which the
// adapter supplies).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository connects to dsn, verifies the server answers, and returns the
// repository plus a close function.
func NewRepository(ctx context.Context, dsn string) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, errs.WrapKind(err, errs.ErrConfig, "postgres dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, errs.Wrap(err, "pgxpool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, errs.WrapKind(classify(err), errs.ErrWrite, "postgres: ping")
	}
	return &Repository{pool: pool}, pool.Close, nil
}

// CreateOrReplaceStructure drops name if present and creates it from def, in
// one transaction.
func (r *Repository) CreateOrReplaceStructure(ctx context.Context, def ddl.TableDef) error {
	create, err := ddl.BuildCreateTableSQL(def, Dialect)
	if err != nil {
		return errs.Mark(err, errs.ErrConfig)
	}
	drop := ddl.BuildDropTableSQL(def.Name, Dialect)
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, drop); err != nil {
			return errs.Wrapf(err, "drop %s", def.Name)
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return errs.Wrapf(err, "create %s", def.Name)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(classify(err), "postgres")
	}
	return nil
}

// AppendRows copies rows into name inside a transaction.
func (r *Repository) AppendRows(ctx context.Context, name string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var n int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx, splitFQN(name), columns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errs.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, errs.Wrapf(classify(err), "copy into %s: %s (%s)", name, pgErr.Detail, pgErr.SQLState())
		}
		return 0, errs.Wrapf(classify(err), "copy into %s", name)
	}
	return n, nil
}

// RelationExists resolves name through to_regclass, so search_path applies.
func (r *Repository) RelationExists(ctx context.Context, name string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgFQN(name)).Scan(&ok); err != nil {
		return false, errs.Wrapf(classify(err), "exists %s", name)
	}
	return ok, nil
}

// Columns lists the live columns of name in ordinal order.
func (r *Repository) Columns(ctx context.Context, name string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT attname FROM pg_attribute
WHERE attrelid = to_regclass($1) AND attnum > 0 AND NOT attisdropped
ORDER BY attnum`, pgFQN(name))
	if err != nil {
		return nil, errs.Wrapf(classify(err), "columns %s", name)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errs.Wrapf(classify(err), "columns %s", name)
	}
	return cols, nil
}

// CountRows returns the number of rows in name.
func (r *Repository) CountRows(ctx context.Context, name string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(name)).Scan(&n); err != nil {
		return 0, errs.Wrapf(classify(err), "count %s", name)
	}
	return n, nil
}

// SampleRows reads up to limit rows from name.
func (r *Repository) SampleRows(ctx context.Context, name string, limit int) (storage.Sample, error) {
	if limit <= 0 {
		return storage.Sample{}, nil
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", pgFQN(name), limit))
	if err != nil {
		return storage.Sample{}, errs.Wrapf(classify(err), "sample %s", name)
	}
	defer rows.Close()

	var out storage.Sample
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return storage.Sample{}, errs.Wrap(err, "sample values")
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return storage.Sample{}, errs.Wrapf(classify(err), "sample %s", name)
	}
	return out, nil
}

// classify marks retryable Postgres failures: anything pgconn deems safe to
// retry, serialization failures, deadlocks, connection exceptions (class 08)
// and admin shutdowns.
func classify(err error) error {
	return storage.MarkTransient(err, func(err error) bool {
		if pgconn.SafeToRetry(err) {
			return true
		}
		var pgErr *pgconn.PgError
		if errs.As(err, &pgErr) {
			switch {
			case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
				return true
			case strings.HasPrefix(pgErr.Code, "08"):
				return true
			}
		}
		return false
	})
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.trips" to
// "public"."trips".
func pgFQN(name string) string { return Dialect.QuoteName(name) }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
