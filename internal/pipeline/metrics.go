package pipeline

import (
	"fmt"
	"time"
)

// Metrics is the running account of one ingestion. It is owned by the
// pipeline and updated once per committed chunk.
type Metrics struct {
	// ChunkIndex is the index of the last committed chunk (0 before any).
	ChunkIndex int
	// TotalRows is the number of rows committed to the destination.
	TotalRows   int64
	RowsRead    int64
	RowsDropped int64

	LastChunkElapsed time.Duration
	// ChunkElapsed holds the wall time of every committed chunk, in order.
	ChunkElapsed []time.Duration
	TotalElapsed time.Duration
}

// chunk folds one committed chunk into m.
func (m *Metrics) chunk(index int, read, dropped, written int64, elapsed, total time.Duration) {
	m.ChunkIndex = index
	m.RowsRead += read
	m.RowsDropped += dropped
	m.TotalRows += written
	m.LastChunkElapsed = elapsed
	m.ChunkElapsed = append(m.ChunkElapsed, elapsed)
	m.TotalElapsed = total
}

// Snapshot returns a copy that is safe to keep after the run continues.
func (m *Metrics) Snapshot() Metrics {
	out := *m
	out.ChunkElapsed = append([]time.Duration(nil), m.ChunkElapsed...)
	return out
}

// String is a one-line summary for logs.
func (m Metrics) String() string {
	return fmt.Sprintf("chunk=%d rows=%d read=%d dropped=%d elapsed=%s",
		m.ChunkIndex, m.TotalRows, m.RowsRead, m.RowsDropped, m.TotalElapsed.Round(time.Millisecond))
}
