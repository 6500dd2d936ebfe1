package pipeline

import "ingest/internal/errs"

// State is the lifecycle position of a run.
type State int

const (
	Idle State = iota
	Acquiring
	Provisioning
	Writing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Provisioning:
		return "provisioning"
	case Writing:
		return "writing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// next lists the legal successors of each non-terminal state. Failed is
// reachable from every non-terminal state except Idle, which has not started
// any work yet.
var next = map[State][]State{
	Idle:         {Acquiring},
	Acquiring:    {Provisioning, Failed},
	Provisioning: {Writing, Completed, Failed},
	Writing:      {Completed, Failed},
}

// transition validates from -> to.
func transition(from, to State) error {
	for _, s := range next[from] {
		if s == to {
			return nil
		}
	}
	return errs.Newf("pipeline: invalid transition %s -> %s", from, to)
}
