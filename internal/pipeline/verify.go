package pipeline

import (
	"context"

	"ingest/internal/errs"
	"ingest/internal/storage"
)

// Reader is the read-back part of a store.
type Reader interface {
	CountRows(ctx context.Context, name string) (int64, error)
	SampleRows(ctx context.Context, name string, limit int) (storage.Sample, error)
}

// Verification is the read-back of a relation after a run.
type Verification struct {
	Relation string
	Rows     int64
	Sample   storage.Sample
}

// Verify counts the rows of relation and fetches up to limit of them. A
// limit of zero skips the sample.
func Verify(ctx context.Context, store Reader, relation string, limit int) (Verification, error) {
	n, err := store.CountRows(ctx, relation)
	if err != nil {
		return Verification{}, errs.Wrapf(err, "verify %s: count", relation)
	}
	v := Verification{Relation: relation, Rows: n}
	if limit <= 0 {
		return v, nil
	}
	sample, err := store.SampleRows(ctx, relation, limit)
	if err != nil {
		return Verification{}, errs.Wrapf(err, "verify %s: sample", relation)
	}
	v.Sample = sample
	return v, nil
}
