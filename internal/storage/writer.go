package storage

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ingest/internal/config"
	"ingest/internal/ddl"
	"ingest/internal/errs"
	"ingest/internal/record"
)

// Appender is the part of a Store the writer needs.
type Appender interface {
	AppendRows(ctx context.Context, name string, columns []string, rows [][]any) (int64, error)
}

// WriterOptions controls retries and per-attempt deadlines.
type WriterOptions struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// InitialBackoff is the first wait between attempts; it doubles up to
	// MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds one attempt. Zero means no deadline.
	Timeout time.Duration
	// OnRetry, if set, is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

// WriterOptionsFrom maps the pipeline storage section onto WriterOptions.
func WriterOptionsFrom(s config.Storage) WriterOptions {
	return WriterOptions{
		MaxRetries:     s.MaxRetries,
		InitialBackoff: s.RetryBackoff,
		MaxBackoff:     30 * time.Second,
		Timeout:        s.WriteTimeout,
	}
}

// WriteResult describes one committed batch.
type WriteResult struct {
	RowsWritten int64
	Elapsed     time.Duration
	Attempts    int
}

// Writer appends transformed batches to a provisioned relation.
type Writer struct {
	store Appender
	kinds map[string]ddl.Kind
	opts  WriterOptions
}

// NewWriter returns a Writer that coerces values to the kinds in def before
// appending them to store.
func NewWriter(store Appender, def ddl.TableDef, opts WriterOptions) *Writer {
	kinds := make(map[string]ddl.Kind, len(def.Columns))
	for _, c := range def.Columns {
		kinds[strings.ToLower(c.Name)] = c.Kind
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	return &Writer{store: store, kinds: kinds, opts: opts}
}

// WriteBatch appends every row of batch to relation in one transaction.
//
// Transient failures are retried as a whole batch with exponential backoff.
// Each attempt runs on a context detached from the caller's cancellation, so
// a batch that has started either commits or rolls back whole; cancellation
// is still honoured between attempts.
func (w *Writer) WriteBatch(ctx context.Context, batch record.Batch, relation string) (WriteResult, error) {
	start := time.Now()
	if len(batch.Rows) == 0 {
		return WriteResult{Elapsed: time.Since(start)}, nil
	}

	rows, err := w.coerce(batch)
	if err != nil {
		return WriteResult{}, errs.WrapKind(err, errs.ErrWrite, "batch %d", batch.Index)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.InitialBackoff
	b.MaxInterval = w.opts.MaxBackoff
	b.MaxElapsedTime = 0

	attempts := 0
	op := func() (int64, error) {
		attempts++
		actx := context.WithoutCancel(ctx)
		if w.opts.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(actx, w.opts.Timeout)
			defer cancel()
		}
		n, err := w.store.AppendRows(actx, relation, batch.Columns, rows)
		if err == nil {
			return n, nil
		}
		if cerr := actx.Err(); cerr != nil && !errs.Is(err, cerr) {
			err = errs.Mark(err, cerr)
		}
		err = MarkTransient(err)
		if !errs.IsTransient(err) {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	notify := func(err error, wait time.Duration) {
		if w.opts.OnRetry != nil {
			w.opts.OnRetry(err, wait)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(w.opts.MaxRetries)), ctx)
	n, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		return WriteResult{Attempts: attempts}, errs.WrapKind(
			err, errs.ErrWrite, "write batch %d to %s after %d attempt(s)", batch.Index, relation, attempts)
	}
	return WriteResult{RowsWritten: n, Elapsed: time.Since(start), Attempts: attempts}, nil
}

func (w *Writer) coerce(batch record.Batch) ([][]any, error) {
	kinds := make([]ddl.Kind, len(batch.Columns))
	for i, c := range batch.Columns {
		k, ok := w.kinds[strings.ToLower(c)]
		if !ok {
			k = ddl.KindText
		}
		kinds[i] = k
	}
	out := make([][]any, len(batch.Rows))
	for i, r := range batch.Rows {
		vals, err := ddl.CoerceRow(kinds, r)
		if err != nil {
			return nil, errs.Wrapf(err, "row %d", i+1)
		}
		out[i] = vals
	}
	return out, nil
}
