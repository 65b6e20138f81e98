package pipeline

import (
	"context"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
	"github.com/pinggolf/aps-scheduler/internal/sequence"
)

// RunMetrics is the per-run summary a Runner produces: one StageMetrics per
// stage that actually ran, plus the run's overall outcome.
type RunMetrics struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     ProcessingStatus
	Stages     []StageMetrics
	InputRows  int
	OutputPairs int
	TotalErrors int
}

// RunResult is everything one pipeline run produces.
type RunResult struct {
	Metrics RunMetrics
	Pairs   []model.WorkOrderPair
	Errors  []StageError
}

// Runner composes the six pipeline stages into one ordered run, per spec
// §5: stages execute strictly sequentially, each consuming the complete
// prior stage's output, with cooperative cancellation checked at stage
// boundaries against a soft deadline.
type Runner struct {
	Preprocessor     *Preprocessor
	Merger           *Merger
	Splitter         *Splitter
	TimeCorrector    *TimeCorrector
	ParallelSplitter *ParallelSplitter
	WorkOrderGen     *WorkOrderGenerator

	SoftDeadline time.Duration
}

func NewRunner(allocator *sequence.Allocator, shiftDuration, gapTolerance, correctionHorizon time.Duration, maintenanceMaxIterations int, softDeadline time.Duration) *Runner {
	return &Runner{
		Preprocessor:     NewPreprocessor(),
		Merger:           NewMerger(gapTolerance),
		Splitter:         NewSplitter(shiftDuration),
		TimeCorrector:    NewTimeCorrector(maintenanceMaxIterations, correctionHorizon),
		ParallelSplitter: NewParallelSplitter(),
		WorkOrderGen:     NewWorkOrderGenerator(allocator),
		SoftDeadline:     softDeadline,
	}
}

// Run executes the full pipeline against one batch of decade-plan rows.
// On cancellation or soft-deadline expiry, it stops at the next stage
// boundary and returns with Status=CANCELLED; stage output already merged
// into the result reflects only stages that fully completed, per spec §5's
// "partial stage outputs are discarded" rule.
func (r *Runner) Run(ctx context.Context, runID string, rows []model.DecadePlanRow, ref model.ReferenceSnapshot) RunResult {
	started := time.Now()
	deadline := time.Time{}
	if r.SoftDeadline > 0 {
		deadline = started.Add(r.SoftDeadline)
	}

	result := RunResult{Metrics: RunMetrics{RunID: runID, StartedAt: started, InputRows: len(rows)}}

	cancelled := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	pre := r.Preprocessor.ProcessRows(ctx, rows)
	result.Metrics.Stages = append(result.Metrics.Stages, pre.Metrics)
	result.Errors = append(result.Errors, pre.Errors...)
	if pre.Metrics.Status == StatusCancelled || cancelled() {
		return r.finishCancelled(result)
	}

	stages := []Stage{r.Merger, r.Splitter, r.TimeCorrector, r.ParallelSplitter}
	records := pre.Records
	for _, stage := range stages {
		if cancelled() {
			return r.finishCancelled(result)
		}
		res, err := stage.Process(ctx, records, ref)
		result.Metrics.Stages = append(result.Metrics.Stages, res.Metrics)
		result.Errors = append(result.Errors, res.Errors...)
		if err != nil {
			result.Metrics.Status = StatusFailed
			result.Metrics.FinishedAt = time.Now()
			return result
		}
		records = res.Records
	}

	if cancelled() {
		return r.finishCancelled(result)
	}

	pairs, genMetrics, genErrs := r.WorkOrderGen.Pairs(ctx, records, ref)
	result.Metrics.Stages = append(result.Metrics.Stages, genMetrics)
	result.Errors = append(result.Errors, genErrs...)
	result.Pairs = pairs

	result.Metrics.Status = StatusCompleted
	result.Metrics.OutputPairs = len(pairs)
	result.Metrics.TotalErrors = len(result.Errors)
	result.Metrics.FinishedAt = time.Now()
	return result
}

func (r *Runner) finishCancelled(result RunResult) RunResult {
	result.Pairs = nil
	result.Metrics.Status = StatusCancelled
	result.Metrics.OutputPairs = 0
	result.Metrics.TotalErrors = len(result.Errors)
	result.Metrics.FinishedAt = time.Now()
	return result
}
