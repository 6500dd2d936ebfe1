// Package pipeline runs one ingestion: acquire the source, decode it in
// chunks, clean every chunk, provision the destination from the first chunk
// and append the chunks in order, one transaction each.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ingest/internal/config"
	"ingest/internal/datasource"
	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/parser/csv"
	"ingest/internal/record"
	"ingest/internal/schema"
	"ingest/internal/storage"
	"ingest/internal/transformer"
)

// Acquirer makes a source available locally and releases it afterwards.
type Acquirer interface {
	Acquire(ctx context.Context, src datasource.Source) (datasource.Acquired, error)
	Release(path string, wasTemporary bool)
}

// BatchReader yields the batches of one source in order.
type BatchReader interface {
	Columns() []string
	Next(ctx context.Context) (record.Batch, bool, error)
	Close() error
}

// OpenFunc opens a BatchReader on a local file.
type OpenFunc func(path string) (BatchReader, error)

// CSVOpener opens delimited text files with the given chunk size.
func CSVOpener(chunkSize int, opt csv.Options) OpenFunc {
	return func(path string) (BatchReader, error) {
		r, err := csv.Open(path, chunkSize, opt)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Config identifies what one run ingests and where.
type Config struct {
	// Job labels progress and metrics. Defaults to "ingest".
	Job string
	// RunID defaults to a random UUID.
	RunID    string
	Source   datasource.Source
	Relation string
	Policy   schema.Policy
	// Cleanup releases a downloaded source once the run ends.
	Cleanup bool
	// ReadAhead is 0 (decode inline) or 1 (decode the next batch while the
	// current one is written).
	ReadAhead int
}

// Deps are the collaborators of a run.
type Deps struct {
	Acquirer    Acquirer
	Open        OpenFunc
	Transformer *transformer.Transformer
	Store       storage.Store
	Hints       schema.Hints
	Writer      storage.WriterOptions
	Observer    Observer
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Relation string
	Table    ddl.TableDef
	Metrics  Metrics
}

// Pipeline is a single-use ingestion run.
type Pipeline struct {
	cfg  Config
	deps Deps

	state   State
	metrics Metrics
	start   time.Time
}

// New checks cfg and deps and returns an idle Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := cfg.Source.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Relation) == "" {
		return nil, errs.Kindf(errs.ErrConfig, "pipeline: destination relation must not be empty")
	}
	if deps.Acquirer == nil || deps.Open == nil || deps.Store == nil {
		return nil, errs.Kindf(errs.ErrConfig, "pipeline: acquirer, reader and store are required")
	}
	if cfg.Policy == "" {
		cfg.Policy = schema.PolicyReplace
	}
	if cfg.Job == "" {
		cfg.Job = "ingest"
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if deps.Transformer == nil {
		deps.Transformer = transformer.New()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// FromConfig assembles a Pipeline from a loaded configuration. store must
// already be open; it is not closed by the pipeline.
func FromConfig(p config.Pipeline, store storage.Store, log *zap.SugaredLogger, obs Observer) (*Pipeline, error) {
	if err := config.Err(config.ValidatePipeline(p)); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	src := datasource.Local(p.Source.Path)
	if p.Source.Remote() {
		src = datasource.Remote(p.Source.URL)
	}
	policy, err := schema.ParsePolicy(p.Storage.Policy)
	if err != nil {
		return nil, err
	}

	hints, err := schema.HintsFrom(p)
	if err != nil {
		return nil, err
	}

	acq := datasource.NewAcquirer(datasource.Config{
		DownloadDir:        p.Source.DownloadDir,
		Timeout:            p.Source.DownloadTimeout,
		MaxRetries:         p.Source.MaxRetries,
		InsecureSkipVerify: p.Source.InsecureSkipVerify,
	}, log)

	wopts := storage.WriterOptionsFrom(p.Storage)
	wopts.OnRetry = func(err error, wait time.Duration) {
		log.Warnw("storage: retrying batch", "err", err, "wait", wait)
	}

	return New(Config{
		Job:       p.Job,
		Source:    src,
		Relation:  p.Storage.Table,
		Policy:    policy,
		Cleanup:   p.Source.Cleanup,
		ReadAhead: p.Reader.ReadAhead,
	}, Deps{
		Acquirer:    acq,
		Open:        CSVOpener(p.Reader.ChunkSize, csv.OptionsFrom(p.Reader.Options)),
		Transformer: transformer.FromConfig(p.Transform),
		Store:       store,
		Hints:       hints,
		Writer:      wopts,
		Observer:    obs,
	})
}

// RunID returns the identifier attached to progress and errors.
func (p *Pipeline) RunID() string { return p.cfg.RunID }

// State returns the current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// Run performs the ingestion. A Pipeline runs once; later calls fail.
//
// On failure the returned error is a *RunError. Chunks committed before the
// failure stay in the destination and are counted in its metrics. A
// temporary source is released on every path once it was acquired.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.state != Idle {
		return Result{}, errs.Newf("pipeline: run %s already %s", p.cfg.RunID, p.state)
	}
	p.start = time.Now()
	if err := p.moveTo(Acquiring); err != nil {
		return Result{}, err
	}

	acq, err := p.deps.Acquirer.Acquire(ctx, p.cfg.Source)
	if err != nil {
		return p.fail(err)
	}
	defer p.deps.Acquirer.Release(acq.Path, acq.Temporary && p.cfg.Cleanup)

	r, err := p.deps.Open(acq.Path)
	if err != nil {
		return p.fail(err)
	}
	defer func() { _ = r.Close() }()

	var src batchSource = direct{r}
	if p.cfg.ReadAhead > 0 {
		src = startPrefetch(ctx, r)
	}
	// Deferred after Close so the producer has stopped before Close runs.
	defer src.stop()

	chunkStart := time.Now()
	raw, ok, err := src.next(ctx)
	if err != nil {
		return p.fail(err)
	}
	first := record.Batch{Columns: r.Columns()}
	var stats transformer.Stats
	if ok {
		first, stats = p.deps.Transformer.Transform(raw)
	}

	if err := p.moveTo(Provisioning); err != nil {
		return p.fail(err)
	}
	// When the steps dropped every row of the first chunk, its raw values
	// still say more about the column types than an empty batch.
	sample := first
	if ok && first.Len() == 0 {
		sample = first.WithRows(raw.Rows)
	}
	def, err := schema.NewProvisioner(p.deps.Store, p.deps.Hints).
		Provision(ctx, sample, p.cfg.Relation, p.cfg.Policy)
	if err != nil {
		return p.fail(err)
	}
	if !ok {
		return p.complete(def)
	}

	if err := p.moveTo(Writing); err != nil {
		return p.fail(err)
	}
	w := storage.NewWriter(p.deps.Store, def, p.deps.Writer)
	batch := first
	for {
		if err := ctx.Err(); err != nil {
			return p.fail(errs.FromContext(err))
		}
		if err := p.write(ctx, w, batch, stats, chunkStart); err != nil {
			return p.fail(err)
		}

		chunkStart = time.Now()
		raw, ok, err = src.next(ctx)
		if err != nil {
			return p.fail(err)
		}
		if !ok {
			break
		}
		batch, stats = p.deps.Transformer.Transform(raw)
	}
	return p.complete(def)
}

func (p *Pipeline) write(ctx context.Context, w *storage.Writer, b record.Batch, st transformer.Stats, chunkStart time.Time) error {
	res, err := w.WriteBatch(ctx, b, p.cfg.Relation)
	if err != nil {
		return err
	}
	elapsed := time.Since(chunkStart)
	p.metrics.chunk(b.Index, int64(st.In), int64(st.DroppedTotal()), res.RowsWritten, elapsed, time.Since(p.start))
	p.deps.Observer.OnChunkProgress(Progress{
		RunID:          p.cfg.RunID,
		Job:            p.cfg.Job,
		Chunk:          b.Index,
		Rows:           res.RowsWritten,
		Read:           int64(st.In),
		Dropped:        int64(st.DroppedTotal()),
		DroppedBy:      st.Dropped,
		Elapsed:        elapsed,
		CumulativeRows: p.metrics.TotalRows,
		TotalElapsed:   p.metrics.TotalElapsed,
		Fingerprint:    Fingerprint(b),
	})
	return nil
}

func (p *Pipeline) complete(def ddl.TableDef) (Result, error) {
	p.metrics.TotalElapsed = time.Since(p.start)
	if err := p.moveTo(Completed); err != nil {
		return p.fail(err)
	}
	p.deps.Observer.OnComplete(Summary{
		RunID:        p.cfg.RunID,
		Job:          p.cfg.Job,
		Relation:     p.cfg.Relation,
		TotalRows:    p.metrics.TotalRows,
		RowsRead:     p.metrics.RowsRead,
		RowsDropped:  p.metrics.RowsDropped,
		Chunks:       len(p.metrics.ChunkElapsed),
		TotalElapsed: p.metrics.TotalElapsed,
	})
	return Result{
		RunID:    p.cfg.RunID,
		Relation: p.cfg.Relation,
		Table:    def,
		Metrics:  p.metrics.Snapshot(),
	}, nil
}

func (p *Pipeline) fail(err error) (Result, error) {
	at := p.state
	p.metrics.TotalElapsed = time.Since(p.start)
	_ = p.moveTo(Failed)
	re := newRunError(p.cfg.RunID, at, &p.metrics, err)
	p.deps.Observer.OnError(re)
	return Result{RunID: p.cfg.RunID, Relation: p.cfg.Relation, Metrics: re.Metrics}, re
}

func (p *Pipeline) moveTo(to State) error {
	if err := transition(p.state, to); err != nil {
		return err
	}
	from := p.state
	p.state = to
	if so, ok := p.deps.Observer.(StateObserver); ok {
		so.OnStateChange(from, to)
	}
	return nil
}
