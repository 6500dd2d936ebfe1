package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest/internal/config"
	"ingest/internal/errs"
	"ingest/internal/pipeline"
	"ingest/internal/storage"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func tripsCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("VendorID,tpep_pickup_datetime,tpep_dropoff_datetime,passenger_count,trip_distance,fare_amount\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "1,2021-01-01 00:%02d:00,2021-01-01 00:%02d:30,1,1.5,%d.5\n", i, i, i+5)
	}
	path := filepath.Join(dir, "yellow_tripdata_2021-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunIngestsIntoSQLite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := tripsCSV(t, dir, 5)
	db := filepath.Join(dir, "ny_taxi.db")

	stdout, stderr, err := execute(t, "run",
		"--path", src,
		"--storage", "sqlite",
		"--dsn", db,
		"--table", "yellow_taxi_data",
		"--chunk-size", "2",
		"--sample-limit", "3",
	)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Inserted 5 rows into yellow_taxi_data in 3 chunks")
	assert.Contains(t, stdout, "Total rows in yellow_taxi_data: 5")
	assert.Contains(t, stdout, "fare_amount")
	assert.Contains(t, stderr, "pipeline: inserted chunk 3 (1 records)")
	assert.FileExists(t, src)

	stdout, stderr, err = execute(t, "verify",
		"--storage", "sqlite",
		"--dsn", db,
		"--table", "yellow_taxi_data",
		"--sample-limit", "0",
	)
	require.NoError(t, err, stderr)
	assert.Equal(t, "Total rows in yellow_taxi_data: 5\n", stdout)
}

func TestRunFromConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := tripsCSV(t, dir, 4)
	cfg := filepath.Join(dir, "ingest.yaml")
	body := fmt.Sprintf(`job: trips
source:
  path: %s
reader:
  chunk_size: 3
storage:
  kind: sqlite
  dsn: %s
  table: trips
  policy: append
run:
  verify: false
`, src, filepath.Join(dir, "trips.db"))
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))

	for i := 0; i < 2; i++ {
		stdout, stderr, err := execute(t, "run", "--config", cfg)
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, "Inserted 4 rows into trips in 2 chunks")
		assert.NotContains(t, stdout, "Total rows")
	}

	stdout, _, err := execute(t, "verify", "-c", cfg, "--sample-limit", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total rows in trips: 8")
}

func TestRunFailsOnMissingSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, _, err := execute(t, "run",
		"--path", filepath.Join(dir, "missing.csv"),
		"--storage", "sqlite",
		"--dsn", filepath.Join(dir, "x.db"),
		"--table", "trips",
	)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrSourceNotFound))

	var re *pipeline.RunError
	require.True(t, errs.As(err, &re))
	assert.Equal(t, "SourceNotFoundError", re.Kind)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	_, stderr, err := execute(t, "run", "--storage", "sqlite", "--table", "trips")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrConfig))
	assert.Contains(t, stderr, "one of source.path or source.url is required")
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name: "valid",
			args: []string{"--path", "trips.csv", "--table", "trips"},
		},
		{
			name:    "missing table",
			args:    []string{"--path", "trips.csv"},
			wantErr: "storage.table",
		},
		{
			name:    "bad policy",
			args:    []string{"--path", "trips.csv", "--table", "t", "--policy", "merge"},
			wantErr: "storage.policy",
		},
		{
			name:    "unregistered backend",
			args:    []string{"--path", "trips.csv", "--table", "t", "--storage", "oracle"},
			wantErr: `no backend registered for "oracle"`,
		},
		{
			name:    "both path and url",
			args:    []string{"--path", "a.csv", "--url", "https://example.com/a.csv", "--table", "t"},
			wantErr: "got both",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stdout, stderr, err := execute(t, append([]string{"validate"}, tt.args...)...)
			if tt.wantErr == "" {
				require.NoError(t, err, stderr)
				assert.Equal(t, "configuration is valid\n", stdout)
				return
			}
			require.Error(t, err)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()
	stdout, _, err := execute(t, "backends")
	require.NoError(t, err)
	for _, k := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		assert.Contains(t, stdout, k)
	}
}

func TestWriteVerification(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ts := time.Date(2021, 1, 1, 0, 30, 10, 0, time.UTC)
	err := writeVerification(&buf, pipeline.Verification{
		Relation: "trips",
		Rows:     1234567,
		Sample: storage.Sample{
			Columns: []string{"tpep_pickup_datetime", "fare_amount", "store_and_fwd_flag"},
			Rows:    [][]any{{ts, 12.5, nil}},
		},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Total rows in trips: 1,234,567")
	assert.Contains(t, out, "tpep_pickup_datetime")
	assert.Contains(t, out, "2021-01-01 00:30:10")
	assert.Contains(t, out, "NULL")
}

func TestProbe(t *testing.T) {
	t.Parallel()
	src := tripsCSV(t, t.TempDir(), 3)

	stdout, stderr, err := execute(t, "probe", "--path", src, "--storage", "sqlite")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Sampled 3 rows of yellow_tripdata_2021-01.csv (3 kept)")
	assert.Contains(t, stdout, "tpep_pickup_datetime")
	assert.Contains(t, stdout, `CREATE TABLE "yellow_tripdata_2021_01" (`)
	assert.Contains(t, stdout, `"fare_amount" REAL`)
}

func TestProbeConfigRuns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := tripsCSV(t, dir, 3)

	stdout, stderr, err := execute(t, "probe", "--json", "--path", src, "--storage", "sqlite", "--table", "trips")
	require.NoError(t, err, stderr)

	var p config.Pipeline
	require.NoError(t, json.Unmarshal([]byte(stdout), &p))
	assert.Equal(t, "trips", p.Storage.Table)
	assert.Equal(t, src, p.Source.Path)
	assert.Equal(t, "float", p.Storage.Types["fare_amount"])
	assert.Equal(t, "timestamp", p.Storage.Types["tpep_pickup_datetime"])
	assert.Equal(t, "integer", p.Storage.Types["VendorID"])

	cfg := filepath.Join(dir, "trips.json")
	require.NoError(t, os.WriteFile(cfg, []byte(stdout), 0o644))
	stdout, stderr, err = execute(t, "run", "-c", cfg, "--dsn", filepath.Join(dir, "trips.db"), "--sample-limit", "0")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Inserted 3 rows into trips in 1 chunks")
	assert.Contains(t, stdout, "Total rows in trips: 3")
}

func TestLoadConfigOptOutFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		args        []string
		wantCleanup bool
		wantVerify  bool
	}{
		{nil, true, true},
		{[]string{"--no-cleanup", "--no-verify"}, false, false},
		{[]string{"--no-cleanup=false", "--no-verify=false"}, true, true},
		{[]string{"--no-cleanup=true"}, false, true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Parallel()
			cmd := newRunCommand(io.Discard, io.Discard)
			require.NoError(t, cmd.ParseFlags(tt.args))
			p, err := loadConfig(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCleanup, p.Source.Cleanup)
			assert.Equal(t, tt.wantVerify, p.Run.Verify)
		})
	}
}
