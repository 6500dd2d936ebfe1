package pipeline

import "time"

// Progress describes one committed chunk.
type Progress struct {
	RunID string
	Job   string
	Chunk int
	// Rows is the number of rows committed for this chunk.
	Rows    int64
	Read    int64
	Dropped int64
	// DroppedBy breaks Dropped down by transform step.
	DroppedBy      map[string]int
	Elapsed        time.Duration
	CumulativeRows int64
	TotalElapsed   time.Duration
	// Fingerprint is an xxh3 hash of the transformed chunk, before its
	// values are converted to the column types.
	Fingerprint uint64
}

// Summary describes a completed run.
type Summary struct {
	RunID        string
	Job          string
	Relation     string
	TotalRows    int64
	RowsRead     int64
	RowsDropped  int64
	Chunks       int
	TotalElapsed time.Duration
}

// Observer receives progress from a run. Calls are made from the goroutine
// running Run, in order.
type Observer interface {
	OnChunkProgress(Progress)
	OnComplete(Summary)
	OnError(*RunError)
}

// StateObserver is optionally implemented by observers that want lifecycle
// transitions.
type StateObserver interface {
	OnStateChange(from, to State)
}

// Observers fans every call out to each member in order.
type Observers []Observer

func (o Observers) OnChunkProgress(p Progress) {
	for _, x := range o {
		x.OnChunkProgress(p)
	}
}

func (o Observers) OnComplete(s Summary) {
	for _, x := range o {
		x.OnComplete(s)
	}
}

func (o Observers) OnError(e *RunError) {
	for _, x := range o {
		x.OnError(e)
	}
}

func (o Observers) OnStateChange(from, to State) {
	for _, x := range o {
		if so, ok := x.(StateObserver); ok {
			so.OnStateChange(from, to)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnChunkProgress(Progress) {}
func (nopObserver) OnComplete(Summary)       {}
func (nopObserver) OnError(*RunError)        {}
