package storage

import (
	"strings"
	"sync"

	"ingest/internal/ddl"
	"ingest/internal/errs"
)

var (
	dialectMu sync.RWMutex
	dialects  = map[string]ddl.Dialect{}
)

// RegisterDialect registers (or replaces) the DDL rendering rules of kind.
// Backends call it from init next to Register so callers can render DDL
// without opening a connection.
func RegisterDialect(kind string, d ddl.Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[strings.ToLower(kind)] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (ddl.Dialect, error) {
	dialectMu.RLock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(kind))]
	dialectMu.RUnlock()
	if !ok {
		return ddl.Dialect{}, errs.Kindf(errs.ErrConfig, "no DDL dialect registered for storage.kind=%q", kind)
	}
	return d, nil
}
