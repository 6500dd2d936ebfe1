package mysql

import (
	"context"

	"ingest/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = func(ctx context.Context, dsn string) (storage.Store, error) {
	return NewRepository(ctx, dsn)
}

// init registers the "mysql" backend with the factory.
func init() {
	storage.RegisterDialect("mysql", Dialect.DDL)
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		dsn, err := DSN(cfg)
		if err != nil {
			return nil, err
		}
		return newRepository(ctx, dsn)
	})
}
