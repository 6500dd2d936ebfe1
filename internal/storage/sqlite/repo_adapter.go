package sqlite

import (
	"context"

	"ingest/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = func(ctx context.Context, dsn string) (storage.Store, error) {
	return NewRepository(ctx, dsn)
}

func init() {
	storage.RegisterDialect("sqlite", Dialect.DDL)
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return newRepository(ctx, DSN(cfg))
	})
}
