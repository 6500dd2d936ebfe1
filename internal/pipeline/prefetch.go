package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ingest/internal/errs"
	"ingest/internal/record"
)

// batchSource is how Run pulls batches: straight from the reader, or through
// a one-batch read-ahead stage.
type batchSource interface {
	next(ctx context.Context) (record.Batch, bool, error)
	stop()
}

type direct struct{ r BatchReader }

func (d direct) next(ctx context.Context) (record.Batch, bool, error) { return d.r.Next(ctx) }

func (direct) stop() {}

// prefetcher decodes batch k+1 while batch k is being written. The channel
// is unbuffered, so at most one decoded batch waits for the writer and batch
// order is preserved.
type prefetcher struct {
	ch     chan record.Batch
	g      *errgroup.Group
	cancel context.CancelFunc
}

func startPrefetch(ctx context.Context, r BatchReader) *prefetcher {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	ch := make(chan record.Batch)
	g.Go(func() error {
		defer close(ch)
		for {
			b, ok, err := r.Next(gctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case ch <- b:
			case <-gctx.Done():
				return errs.FromContext(gctx.Err())
			}
		}
	})
	return &prefetcher{ch: ch, g: g, cancel: cancel}
}

func (p *prefetcher) next(ctx context.Context) (record.Batch, bool, error) {
	select {
	case b, ok := <-p.ch:
		if ok {
			return b, true, nil
		}
		// The producer is done; Wait reports why.
		return record.Batch{}, false, p.g.Wait()
	case <-ctx.Done():
		return record.Batch{}, false, errs.FromContext(ctx.Err())
	}
}

// stop ends the producer and waits for it, so the reader can be closed.
func (p *prefetcher) stop() {
	p.cancel()
	_ = p.g.Wait()
}
