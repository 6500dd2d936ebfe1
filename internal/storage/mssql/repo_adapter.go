package mssql

import (
	"context"

	"ingest/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = func(ctx context.Context, dsn string) (storage.Store, error) {
	return NewRepository(ctx, dsn)
}

func init() {
	storage.RegisterDialect("mssql", Dialect.DDL)
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		dsn, err := DSN(cfg)
		if err != nil {
			return nil, err
		}
		return newRepository(ctx, dsn)
	})
}
