// Package all wires every built-in storage backend into the storage factory.
//
// It exists for side effects only: importing it runs each backend's init,
// which registers its factory, making these kinds available:
//
//   - "postgres" (ingest/internal/storage/postgres)
//   - "sqlite"   (ingest/internal/storage/sqlite)
//   - "mysql"    (ingest/internal/storage/mysql)
//   - "mssql"    (ingest/internal/storage/mssql)
//
// Typical usage in a wiring layer:
//
//	import _ "ingest/internal/storage/all"
//
//	store, err := storage.New(ctx, storage.ConfigFrom(p.Storage))
//
// A binary that needs fewer backends can blank-import just those packages.
package all

import (
	_ "ingest/internal/storage/mssql"
	_ "ingest/internal/storage/mysql"
	_ "ingest/internal/storage/postgres"
	_ "ingest/internal/storage/sqlite"
)
