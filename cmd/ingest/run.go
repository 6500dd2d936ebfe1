package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ingest/internal/config"
	"ingest/internal/datasource"
	"ingest/internal/errs"
	"ingest/internal/pipeline"
	"ingest/internal/storage"
)

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest a source into the destination table",
		Long: `Run acquires the source, reads it in chunks of --chunk-size rows and
appends every cleaned chunk to --table in its own transaction. The table is
created from the first chunk according to --policy. Chunks committed before
a failure stay in the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if printIssues(stderr, config.ValidatePipeline(p)) {
				return errs.Kindf(errs.ErrConfig, "configuration is invalid")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd, p, stdout)
		},
	}
	addSourceFlags(cmd.Flags())
	addStorageFlags(cmd.Flags())
	cmd.Flags().Bool("no-verify", false, "skip the read-back after the run")
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, p config.Pipeline, stdout io.Writer) error {
	log, err := newLogger(cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	scfg := storage.ConfigFrom(p.Storage)
	store, err := storage.New(ctx, scfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := newRecorder(p, log)
	obs := pipeline.Observers{
		pipeline.NewLogObserver(log),
		pipeline.NewMetricsObserver(rec, log),
	}
	pl, err := pipeline.FromConfig(p, store, log, obs)
	if err != nil {
		return err
	}

	source := p.Source.Path
	if p.Source.Remote() {
		source = datasource.RedactURL(p.Source.URL)
	}
	log.Infow("pipeline: starting",
		"run_id", pl.RunID(),
		"source", source,
		"storage", scfg.String(),
		"table", p.Storage.Table,
		"policy", p.Storage.Policy,
		"chunk_size", p.Reader.ChunkSize,
	)

	res, err := pl.Run(ctx)
	if err != nil {
		return err
	}
	m := res.Metrics
	fmt.Fprintf(stdout, "Inserted %s rows into %s in %d chunks (%s read, %s dropped) in %s\n",
		humanize.Comma(m.TotalRows), res.Relation, len(m.ChunkElapsed),
		humanize.Comma(m.RowsRead), humanize.Comma(m.RowsDropped), m.TotalElapsed.Round(time.Millisecond))

	if !p.Run.Verify {
		return nil
	}
	v, err := pipeline.Verify(ctx, store, p.Storage.Table, p.Run.SampleLimit)
	if err != nil {
		return err
	}
	return writeVerification(stdout, v)
}
