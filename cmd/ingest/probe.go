package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"ingest/internal/config"
	"ingest/internal/datasource"
	"ingest/internal/errs"
	"ingest/internal/probe"
)

func newProbeCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Sample a source and propose the destination table",
		Long: `Probe reads the first --rows rows of the source, applies the configured
cleaning steps and prints the inferred columns with the CREATE TABLE statement
of --storage. With --json it prints a configuration for "ingest run" that pins
the inferred column types instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(p.Storage.Table) == "" {
				p.Storage.Table = probe.TableName(p.Source.Path + p.Source.URL)
			}
			if printIssues(stderr, config.ValidatePipeline(p)) {
				return errs.Kindf(errs.ErrConfig, "configuration is invalid")
			}
			rows, _ := cmd.Flags().GetInt("rows")
			raw, _ := cmd.Flags().GetBool("raw")
			asJSON, _ := cmd.Flags().GetBool("json")

			log, err := newLogger(cmd, p)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			src := datasource.Local(p.Source.Path)
			if p.Source.Remote() {
				src = datasource.Remote(p.Source.URL)
			}
			acq := datasource.NewAcquirer(datasource.Config{
				DownloadDir:        p.Source.DownloadDir,
				Timeout:            p.Source.DownloadTimeout,
				MaxRetries:         p.Source.MaxRetries,
				InsecureSkipVerify: p.Source.InsecureSkipVerify,
			}, log)
			got, err := acq.Acquire(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer acq.Release(got.Path, got.Temporary && p.Source.Cleanup)

			rep, err := probe.Probe(cmd.Context(), got.Path, p, probe.Options{Rows: rows, Raw: raw})
			if err != nil {
				return err
			}
			log.Debugw("probe: sampled", "source", src.String(), "rows", rep.Sampled, "kept", rep.Kept)
			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep.Config)
			}
			return writeProbe(stdout, src.String(), rep)
		},
	}
	addSourceFlags(cmd.Flags())
	d := config.Default()
	cmd.Flags().String("storage", d.Storage.Kind, "backend whose DDL is rendered")
	cmd.Flags().String("table", "", "table name (default: derived from the file name)")
	cmd.Flags().Int("rows", probe.DefaultRows, "rows to sample")
	cmd.Flags().Bool("raw", false, "infer from the raw values, skipping the cleaning steps")
	cmd.Flags().Bool("json", false, "print a run configuration instead of the report")
	return cmd
}

func writeProbe(w io.Writer, source string, rep probe.Report) error {
	fmt.Fprintf(w, "Sampled %s rows of %s (%s kept)\n",
		humanize.Comma(int64(rep.Sampled)), filepath.Base(source), humanize.Comma(int64(rep.Kept)))
	for _, step := range slices.Sorted(maps.Keys(rep.DroppedBy)) {
		if n := rep.DroppedBy[step]; n > 0 {
			fmt.Fprintf(w, "  dropped by %s: %s\n", step, humanize.Comma(int64(n)))
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"#", "column", "kind", "sql type", "nulls"})
	for i, c := range rep.Columns {
		t.AppendRow(table.Row{i + 1, c.Name, string(c.Kind), c.SQLType, c.Nulls})
	}
	t.Render()

	_, err := fmt.Fprintf(w, "\n%s;\n", rep.CreateSQL)
	return err
}
