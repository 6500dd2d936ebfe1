// Package mssql implements storage.Store on SQL Server via
// microsoft/go-mssqldb. Appends use the driver's bulk copy (INSERT BULK)
// inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

// Dialect is the SQL Server rendering of the generic DDL model.
var Dialect = sqldb.Dialect{
	Name: "mssql",
	DDL: ddl.Dialect{
		QuoteIdent: msIdent,
		MapType:    MapType,
	},
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	ExistsQuery: func(name string) (string, []any) {
		schema, table := splitName(name)
		if schema == "" {
			return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1", []any{table}
		}
		return "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2", []any{schema, table}
	},
	ColumnsQuery: func(name string) (string, []any) {
		schema, table := splitName(name)
		if schema == "" {
			return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION", []any{table}
		}
		return "SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 ORDER BY ORDINAL_POSITION", []any{schema, table}
	},
	SampleQuery: func(quoted string, limit int) string {
		return fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, quoted)
	},
	Insert:    bulkInsert,
	Transient: IsTransient,
}

// MapType maps a column kind to a SQL Server type.
func MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindInteger:
		return "BIGINT"
	case ddl.KindFloat:
		return "FLOAT"
	case ddl.KindTimestamp:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

// DSN resolves the connection string and validates it with msdsn so obvious
// mistakes fail before dialing.
func DSN(cfg storage.Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		port := cfg.Port
		if port == 0 {
			port = 1433
		}
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   cfg.Host + ":" + strconv.Itoa(port),
		}
		q := url.Values{}
		if cfg.Database != "" {
			q.Set("database", cfg.Database)
		}
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", errs.WrapKind(err, errs.ErrConfig, "mssql dsn")
	}
	return dsn, nil
}

// NewRepository opens dsn and returns the store.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	return sqldb.Open(ctx, "sqlserver", dsn, Dialect)
}

// bulkInsert streams rows through mssql.CopyIn. The final argument-less Exec
// flushes the bulk batch and reports the row count.
func bulkInsert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(msFQN(table), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, errs.Wrap(err, "prepare bulk")
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, errs.Wrapf(err, "bulk row %d", i)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errs.Wrap(err, "bulk finalize")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Wrap(err, "rows affected")
	}
	return n, nil
}

// IsTransient recognises deadlock victims, lock timeouts and snapshot
// conflicts.
func IsTransient(err error) bool {
	var me mssql.Error
	if errs.As(err, &me) {
		switch me.Number {
		case 1205, 1222, 3960:
			return true
		}
	}
	return false
}

func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes "dbo.trips" as [dbo].[trips].
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

func splitName(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
