package pipeline

import (
	"fmt"

	"ingest/internal/errs"
)

// RunError is returned by Run when ingestion stops early. Rows of chunks up to
// LastChunk are committed and stay in the destination.
type RunError struct {
	RunID string
	// Kind is the error kind name, e.g. "DownloadError" or "WriteError".
	Kind string
	// State is where the run was when it failed.
	State         State
	LastChunk     int
	RowsCommitted int64
	Metrics       Metrics
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s while %s after chunk %d (%d rows committed): %v",
		e.Kind, e.State, e.LastChunk, e.RowsCommitted, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

func newRunError(runID string, state State, m *Metrics, err error) *RunError {
	return &RunError{
		RunID:         runID,
		Kind:          errs.KindOf(err),
		State:         state,
		LastChunk:     m.ChunkIndex,
		RowsCommitted: m.TotalRows,
		Metrics:       m.Snapshot(),
		Err:           err,
	}
}
