package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/config"
	"ingest/internal/ddl"
	"ingest/internal/errs"
)

// fakeStore is a minimal Store for factory tests.
type fakeStore struct{ closed bool }

func (f *fakeStore) CreateOrReplaceStructure(context.Context, ddl.TableDef) error { return nil }
func (f *fakeStore) AppendRows(_ context.Context, _ string, _ []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeStore) RelationExists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) Columns(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakeStore) CountRows(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeStore) SampleRows(context.Context, string, int) (Sample, error) { return Sample{}, nil }
func (f *fakeStore) Close() { f.closed = true }

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake", func(_ context.Context, cfg Config) (Store, error) {
		got = cfg
		return &fakeStore{}, nil
	})

	s, err := New(context.Background(), Config{Kind: "FAKE", Database: "d"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "d", got.Database)
	assert.Contains(t, ListKinds(), "fake")
}

func TestNewUnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrConfig))
	assert.Contains(t, err.Error(), "unsupported storage.kind=does-not-exist")
}

func TestRegisterOverride(t *testing.T) {
	t.Parallel()

	calls := 0
	Register("override", func(context.Context, Config) (Store, error) { calls++; return &fakeStore{}, nil })
	Register("override", func(context.Context, Config) (Store, error) { calls += 10; return &fakeStore{}, nil })

	_, err := New(context.Background(), Config{Kind: "override"})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}

func TestFactoryErrorsBubbleUp(t *testing.T) {
	t.Parallel()

	boom := errs.New("boom")
	Register("errkind", func(context.Context, Config) (Store, error) { return nil, boom })

	_, err := New(context.Background(), Config{Kind: "errkind"})
	assert.True(t, errs.Is(err, boom))
}

func TestConfigFromAndString(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.Storage{Kind: " Postgres ", Host: "localhost", Port: 5432, User: "root", Password: "secret", Database: "ny_taxi"})
	assert.Equal(t, "postgres", cfg.Kind)
	assert.Equal(t, "postgres://root@localhost:5432/ny_taxi", cfg.String())
	assert.NotContains(t, cfg.String(), "secret")

	cfg.DSN = "postgres://root:secret@x/y"
	assert.Equal(t, "postgres (dsn)", cfg.String())
}
