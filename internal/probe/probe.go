// Package probe samples the head of a delimited-text file and proposes the
// destination table for it: the inferred column kinds, the CREATE TABLE
// statement of the configured backend and a starter configuration that pins
// those kinds.
package probe

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"ingest/internal/config"
	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/parser/csv"
	"ingest/internal/record"
	"ingest/internal/schema"
	"ingest/internal/storage"
	"ingest/internal/transformer"
)

// DefaultRows is the sample size used when Options.Rows is not positive.
const DefaultRows = 1000

// Options control sampling.
type Options struct {
	// Rows is the number of data rows read from the head of the file.
	Rows int
	// Raw skips the transform steps; kinds are inferred from the raw text.
	Raw bool
}

// Column summarizes one proposed column.
type Column struct {
	ddl.ColumnDef
	// SQLType is the backend type the kind maps to.
	SQLType string
	// Nulls counts missing values among the kept rows.
	Nulls int
}

// Report is the outcome of one probe.
type Report struct {
	Path    string
	Table   ddl.TableDef
	Columns []Column
	// Sampled is the number of rows read; Kept survived the transform steps.
	Sampled   int
	Kept      int
	DroppedBy map[string]int
	CreateSQL string
	// Config is p with the table name and the inferred kinds filled in.
	Config config.Pipeline
}

// Probe reads up to opt.Rows rows of the local file at path, cleans them with
// the transform steps of p and infers the destination table. The table is
// named p.Storage.Table, or after the file when that is empty.
func Probe(ctx context.Context, path string, p config.Pipeline, opt Options) (Report, error) {
	rows := opt.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	dialect, err := storage.DialectFor(p.Storage.Kind)
	if err != nil {
		return Report{}, err
	}
	hints, err := schema.HintsFrom(p)
	if err != nil {
		return Report{}, err
	}

	r, err := csv.Open(path, rows, csv.OptionsFrom(p.Reader.Options))
	if err != nil {
		return Report{}, err
	}
	defer r.Close()

	sample, ok, err := r.Next(ctx)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		sample = record.Batch{Columns: r.Columns()}
	}

	kept := sample
	dropped := map[string]int{}
	if !opt.Raw {
		var st transformer.Stats
		kept, st = transformer.FromConfig(p.Transform).Transform(sample)
		dropped = st.Dropped
	}

	name := strings.TrimSpace(p.Storage.Table)
	if name == "" {
		name = TableName(path)
	}
	if name == "" {
		return Report{}, errs.Kindf(errs.ErrConfig, "probe: cannot derive a table name from %q; set --table", path)
	}
	def := schema.InferTableDef(name, kept, hints)
	create, err := ddl.BuildCreateTableSQL(def, dialect)
	if err != nil {
		return Report{}, errs.WrapKind(err, errs.ErrConfig, "probe: render %s", name)
	}

	rep := Report{
		Path:      path,
		Table:     def,
		Columns:   make([]Column, len(def.Columns)),
		Sampled:   sample.Len(),
		Kept:      kept.Len(),
		DroppedBy: dropped,
		CreateSQL: create,
		Config:    starterConfig(p, def),
	}
	for i, c := range def.Columns {
		rep.Columns[i] = Column{ColumnDef: c, SQLType: dialect.MapType(c.Kind)}
		for _, row := range kept.Rows {
			if i < len(row) && record.IsNull(row[i]) {
				rep.Columns[i].Nulls++
			}
		}
	}
	return rep, nil
}

// starterConfig returns a copy of p targeting def. Credentials are cleared.
func starterConfig(p config.Pipeline, def ddl.TableDef) config.Pipeline {
	out := p
	out.Storage.Table = def.Name
	out.Storage.Password = ""
	out.Storage.Types = make(map[string]string, len(def.Columns))
	for _, c := range def.Columns {
		out.Storage.Types[c.Name] = string(c.Kind)
	}
	return out
}

// TableName derives an identifier from the file name of path or URL:
// "yellow_tripdata_2021-01.csv.gz" becomes "yellow_tripdata_2021_01".
func TableName(path string) string {
	if u, err := url.Parse(path); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.Path
	}
	base := filepath.Base(path)
	for _, ext := range []string{".gz", ".csv", ".tsv", ".txt"} {
		base = strings.TrimSuffix(strings.TrimSuffix(base, ext), strings.ToUpper(ext))
	}
	name := csv.NormalizeHeader(base)
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return name
}
