// Package sqlite implements storage.Store on SQLite (modernc.org/sqlite, no
// cgo). Appends are prepared INSERTs inside one transaction; SQLite has no
// bulk-load API, but a single transaction keeps throughput acceptable.
package sqlite

import (
	"context"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"ingest/internal/ddl"
	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

// Dialect is the SQLite rendering of the generic DDL model.
var Dialect = sqldb.Dialect{
	Name: "sqlite",
	DDL: ddl.Dialect{
		QuoteIdent: quoteIdent,
		MapType:    MapType,
	},
	ExistsQuery: func(name string) (string, []any) {
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []any{tableName(name)}
	},
	ColumnsQuery: func(name string) (string, []any) {
		return "SELECT name FROM pragma_table_info(?) ORDER BY cid", []any{tableName(name)}
	},
	Transient: isBusy,
}

// MapType maps a column kind to a SQLite type. Timestamps are stored as
// ISO-8601 text.
func MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindInteger:
		return "INTEGER"
	case ddl.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

// DSN resolves the connection string. Without an explicit DSN the database
// name is used as a file path, with ".db" appended when it has no extension.
func DSN(cfg storage.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	db := strings.TrimSpace(cfg.Database)
	switch {
	case db == "":
		return ":memory:"
	case db == ":memory:", strings.HasPrefix(db, "file:"), filepath.Ext(db) != "":
		return db
	}
	return db + ".db"
}

// NewRepository opens dsn and returns the store.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	s, err := sqldb.Open(ctx, "sqlite", dsn, Dialect)
	if err != nil {
		return nil, err
	}
	// One connection: writes serialize anyway and ":memory:" is per-connection.
	s.DB().SetMaxOpenConns(1)
	_, _ = s.DB().ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	return s, nil
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// tableName drops an optional "main." style schema prefix for catalog lookups.
func tableName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
