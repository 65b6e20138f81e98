package pipeline

import (
	"context"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// ProcessingStatus mirrors the source algorithm base's run status enum —
// every stage (and the run as a whole) completes in one of these states.
type ProcessingStatus string

const (
	StatusCompleted ProcessingStatus = "COMPLETED"
	StatusFailed    ProcessingStatus = "FAILED"
	StatusCancelled ProcessingStatus = "CANCELLED"
)

// StageMetrics counts what a stage did to its input batch.
type StageMetrics struct {
	Stage            string
	ProcessedRecords int
	Valid            int
	Dropped          int
	Warned           int
	DurationMS       int64
	Status           ProcessingStatus
}

// StageResult is what every Stage.Process call returns: the transformed
// records, the stage's metrics, and any per-record errors recorded along
// the way. Per spec §9's result-type re-architecture note, this replaces
// the source's exception-to-dict translation.
type StageResult struct {
	Records []model.PipelineRecord
	Metrics StageMetrics
	Errors  []StageError
}

// Stage is the common contract every pipeline stage implements. A stage
// receives the complete output of the prior stage (never a partial view)
// plus the run's reference-data snapshot, and is free to parallelize
// within itself as long as its output order is deterministic.
type Stage interface {
	Name() string
	Process(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) (StageResult, error)
}

// stamp assigns each record its position in the batch passed to a stage, so
// later tie-breaking (TimeCorrect reordering, WorkOrderGen sequencing) is
// relative to that stage's own input order rather than whatever order a
// previous stage happened to produce internally.
func stamp(records []model.PipelineRecord) []model.PipelineRecord {
	out := make([]model.PipelineRecord, len(records))
	for i, r := range records {
		out[i] = r.WithInputIndex(i)
	}
	return out
}

// finish stamps a stage's wall-clock duration and default-completes its
// status. Call once, right before returning from Process.
func finish(m *StageMetrics, start time.Time) {
	m.DurationMS = time.Since(start).Milliseconds()
	if m.Status == "" {
		m.Status = StatusCompleted
	}
}
