// Package mysql implements storage.Store on MySQL via go-sql-driver/mysql.
// Rows are appended with multi-row INSERT statements inside one transaction.
package mysql

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/storage"
	"ingest/internal/storage/sqldb"
)

// maxParams stays well below the server's 65535 placeholder limit.
const maxParams = 60000

// Dialect is the MySQL rendering of the generic DDL model.
var Dialect = newDialect()

func newDialect() sqldb.Dialect {
	d := sqldb.Dialect{
		Name: "mysql",
		DDL: ddl.Dialect{
			QuoteIdent: quoteIdent,
			MapType:    MapType,
		},
		ExistsQuery: func(name string) (string, []any) {
			schema, table := splitName(name)
			if schema == "" {
				return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{table}
			}
			return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{schema, table}
		},
		ColumnsQuery: func(name string) (string, []any) {
			schema, table := splitName(name)
			if schema == "" {
				return "SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []any{table}
			}
			return "SELECT column_name FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position", []any{schema, table}
		},
		Transient: IsTransient,
	}
	d.Insert = sqldb.MultiRowInsert(d, maxParams)
	return d
}

// MapType maps a column kind to a MySQL type.
func MapType(k ddl.Kind) string {
	switch k {
	case ddl.KindInteger:
		return "BIGINT"
	case ddl.KindFloat:
		return "DOUBLE"
	case ddl.KindTimestamp:
		return "DATETIME(6)"
	default:
		return "TEXT"
	}
}

// DSN resolves the connection string, building one from the parts when no
// explicit DSN is configured.
func DSN(cfg storage.Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
			return "", errs.WrapKind(err, errs.ErrConfig, "mysql: parse dsn")
		}
		return cfg.DSN, nil
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// NewRepository opens dsn and returns the store.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Store, error) {
	return sqldb.Open(ctx, "mysql", dsn, Dialect)
}

// IsTransient recognises deadlocks, lock wait timeouts and dropped
// connections.
func IsTransient(err error) bool {
	if errs.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	if errs.As(err, &me) {
		switch me.Number {
		case 1205, 1213, 2006, 2013:
			return true
		}
	}
	return false
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func splitName(name string) (schema, table string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
