package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// LogObserver writes progress lines through zap. Each chunk line carries the
// process RSS so bounded memory use is visible in the log.
type LogObserver struct {
	log  *zap.SugaredLogger
	proc *process.Process
}

// NewLogObserver returns a LogObserver. RSS reporting is skipped when the
// process handle cannot be obtained.
func NewLogObserver(log *zap.SugaredLogger) *LogObserver {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}
	return &LogObserver{log: log, proc: proc}
}

func (o *LogObserver) OnChunkProgress(p Progress) {
	fields := []any{
		"run_id", p.RunID,
		"chunk", p.Chunk,
		"rows", p.Rows,
		"read", p.Read,
		"dropped", p.Dropped,
		"elapsed", p.Elapsed.Round(time.Millisecond),
		"total_rows", p.CumulativeRows,
		"total_elapsed", p.TotalElapsed.Round(time.Millisecond),
		"fingerprint", fmt.Sprintf("%016x", p.Fingerprint),
	}
	if rss, ok := o.rss(); ok {
		fields = append(fields, "rss", rss)
	}
	if len(p.DroppedBy) > 0 {
		fields = append(fields, "dropped_by", p.DroppedBy)
	}
	o.log.Infow(fmt.Sprintf("pipeline: inserted chunk %d (%d records) in %.3f seconds. Total: %s",
		p.Chunk, p.Rows, p.Elapsed.Seconds(), humanize.Comma(p.CumulativeRows)), fields...)
}

func (o *LogObserver) OnComplete(s Summary) {
	o.log.Infow("pipeline: completed",
		"run_id", s.RunID,
		"relation", s.Relation,
		"rows", humanize.Comma(s.TotalRows),
		"read", s.RowsRead,
		"dropped", s.RowsDropped,
		"chunks", s.Chunks,
		"elapsed", s.TotalElapsed.Round(time.Millisecond),
	)
}

func (o *LogObserver) OnError(e *RunError) {
	o.log.Errorw("pipeline: failed",
		"run_id", e.RunID,
		"kind", e.Kind,
		"state", e.State.String(),
		"last_chunk", e.LastChunk,
		"rows_committed", e.RowsCommitted,
		"err", e.Err,
	)
}

func (o *LogObserver) OnStateChange(from, to State) {
	o.log.Debugw("pipeline: state", "from", from.String(), "to", to.String())
}

func (o *LogObserver) rss() (string, bool) {
	if o.proc == nil {
		return "", false
	}
	mem, err := o.proc.MemoryInfo()
	if err != nil || mem == nil {
		return "", false
	}
	return humanize.IBytes(mem.RSS), true
}
