// Package storage defines the destination contract used by the pipeline and a
// small factory that maps a storage kind ("postgres", "sqlite", ...) to a
// backend constructor.
//
// Backends register themselves from init; importing ingest/internal/storage/all
// makes every built-in backend available.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ingest/internal/config"
	"ingest/internal/ddl"
	"ingest/internal/errs"
)

// Store is a relational destination.
//
// AppendRows must be all-or-nothing: either every row of the call is visible
// afterwards or none is.
type Store interface {
	CreateOrReplaceStructure(ctx context.Context, def ddl.TableDef) error
	AppendRows(ctx context.Context, name string, columns []string, rows [][]any) (int64, error)
	RelationExists(ctx context.Context, name string) (bool, error)
	Columns(ctx context.Context, name string) ([]string, error)
	CountRows(ctx context.Context, name string) (int64, error)
	SampleRows(ctx context.Context, name string, limit int) (Sample, error)
	Close()
}

// Sample is a handful of rows read back from a relation.
type Sample struct {
	Columns []string
	Rows    [][]any
}

// Config carries connection parameters for a backend. DSN, when set, wins
// over the individual parts.
type Config struct {
	Kind     string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// ConfigFrom maps the pipeline storage section onto a backend Config.
func ConfigFrom(s config.Storage) Config {
	return Config{
		Kind:     strings.ToLower(strings.TrimSpace(s.Kind)),
		DSN:      s.DSN,
		Host:     s.Host,
		Port:     s.Port,
		User:     s.User,
		Password: s.Password,
		Database: s.Database,
	}
}

// String describes the destination without credentials.
func (c Config) String() string {
	if c.DSN != "" {
		return fmt.Sprintf("%s (dsn)", c.Kind)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", c.Kind, c.User, c.Host, c.Port, c.Database)
}

// Factory opens a Store for cfg. Factories should verify connectivity so a bad
// destination fails before any source is acquired.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register (or replace) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(kind)] = f
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Store using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, errs.Hintf(
			errs.Kindf(errs.ErrConfig, "unsupported storage.kind=%s", cfg.Kind),
			"registered kinds: %s", strings.Join(ListKinds(), ", "),
		)
	}
	s, err := f(ctx, cfg)
	if err != nil {
		return nil, errs.Wrapf(err, "open %s", cfg)
	}
	return s, nil
}
