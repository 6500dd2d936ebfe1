package postgres

import (
	"context"

	"ingest/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Store = (*wrappedRepo)(nil)

// init registers the "postgres" backend with the factory.
func init() {
	storage.RegisterDialect("postgres", Dialect)
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		dsn, err := DSN(cfg)
		if err != nil {
			return nil, err
		}
		r, closeFn, err := newRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

// wrappedRepo adds Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
