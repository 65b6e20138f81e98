package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// TimeCorrector resolves maintenance-window conflicts and aligns intervals
// to the shift calendar, per spec §4.4. It is the hardest stage in the
// pipeline: maintenance avoidance and shift alignment each preserve
// duration, and a final overlap pass guarantees no two orders on the same
// machine overlap.
type TimeCorrector struct {
	MaxMaintenanceIterations int
	CorrectionHorizon        time.Duration
}

func NewTimeCorrector(maxIterations int, horizon time.Duration) *TimeCorrector {
	if maxIterations <= 0 {
		maxIterations = 8
	}
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &TimeCorrector{MaxMaintenanceIterations: maxIterations, CorrectionHorizon: horizon}
}

func (t *TimeCorrector) Name() string { return "TIME_CORRECT" }

func (t *TimeCorrector) Process(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) (StageResult, error) {
	start := time.Now()
	type outcome struct {
		rec  model.PipelineRecord
		errs []StageError
	}
	outcomes := parallelMap(in, func(r model.PipelineRecord) outcome {
		rec, errs := t.correctOne(r, ref)
		return outcome{rec: rec, errs: errs}
	})

	result := StageResult{Records: make([]model.PipelineRecord, len(in))}
	for i, o := range outcomes {
		result.Records[i] = o.rec
		result.Errors = append(result.Errors, o.errs...)
	}

	sort.SliceStable(result.Records, func(a, b int) bool {
		ra, rb := result.Records[a], result.Records[b]
		if !ra.PlannedStart.Equal(rb.PlannedStart) {
			return ra.PlannedStart.Before(rb.PlannedStart)
		}
		return ra.InputIndex() < rb.InputIndex()
	})

	t.resolveOverlaps(result.Records)

	result.Metrics.ProcessedRecords = len(in)
	result.Metrics.Valid = len(result.Records)
	result.Records = stamp(result.Records)
	finish(&result.Metrics, start)
	return result, nil
}

// correctOne applies maintenance avoidance then shift alignment to a single
// record, preserving duration at every step.
func (t *TimeCorrector) correctOne(r model.PipelineRecord, ref model.ReferenceSnapshot) (model.PipelineRecord, []StageError) {
	if len(r.MakerCodes) == 0 {
		return r, nil
	}

	var errs []StageError
	originalStart, originalEnd := r.PlannedStart, r.PlannedEnd
	duration := r.Duration()
	primaryMachine := r.MakerCodes[0]

	working := r
	maintenanceResolved := false

	windows := ref.MaintenanceWindowsFor(primaryMachine)
	iterations := 0
	for {
		conflict, ok := firstOverlap(working.PlannedStart, working.PlannedEnd, windows)
		if !ok {
			break
		}
		iterations++
		if iterations > t.MaxMaintenanceIterations {
			errs = append(errs, StageError{
				Kind: KindConstraintViolation, Stage: t.Name(), WorkOrderNr: r.WorkOrderNr,
				Message: "maintenance correction exceeded max iterations",
			})
			working.Provenance.CorrectionFailed = true
			working.PlannedStart, working.PlannedEnd = originalStart, originalEnd
			return working, errs
		}
		working.PlannedStart = conflict.MaintEndTime
		working.PlannedEnd = working.PlannedStart.Add(duration)
		maintenanceResolved = true
	}

	shiftAligned := false
	if len(ref.Shifts) > 0 {
		if _, _, _, inSlot := ref.Shifts.ShiftSlotFor(working.PlannedStart); !inSlot {
			newStart := ref.Shifts.NextShiftStart(working.PlannedStart)
			if !newStart.Equal(working.PlannedStart) {
				working.PlannedStart = newStart
				working.PlannedEnd = newStart.Add(duration)
				shiftAligned = true
			}
		}
	}

	if shifted := working.PlannedStart.Sub(originalStart); shifted > t.CorrectionHorizon || shifted < -t.CorrectionHorizon {
		errs = append(errs, StageError{
			Kind: KindConstraintViolation, Stage: t.Name(), WorkOrderNr: r.WorkOrderNr,
			Message: "correction exceeded sanity horizon",
		})
		working.Provenance.CorrectionFailed = true
		working.PlannedStart, working.PlannedEnd = originalStart, originalEnd
		return working, errs
	}

	if maintenanceResolved || shiftAligned {
		working.Provenance.TimeCorrected = true
		working.Provenance.OriginalPlannedStart = originalStart
		working.Provenance.OriginalPlannedEnd = originalEnd
	}
	working.Provenance.MaintenanceConflictResolved = maintenanceResolved
	working.Provenance.ShiftAligned = shiftAligned

	return working, errs
}

// firstOverlap returns the first maintenance window (in time order) that
// overlaps [start, end).
func firstOverlap(start, end time.Time, windows []model.MaintenanceWindow) (model.MaintenanceWindow, bool) {
	for _, w := range windows {
		if start.Before(w.MaintEndTime) && end.After(w.MaintStartTime) {
			return w, true
		}
	}
	return model.MaintenanceWindow{}, false
}

// resolveOverlaps walks the already time-sorted record list and pushes any
// record whose window overlaps the previous record's window for the same
// primary machine forward to start exactly when the previous one ends,
// per spec §4.4's final ordering guarantee.
func (t *TimeCorrector) resolveOverlaps(records []model.PipelineRecord) {
	lastEnd := make(map[string]time.Time)
	for i := range records {
		if len(records[i].MakerCodes) == 0 {
			continue
		}
		machine := records[i].MakerCodes[0]
		duration := records[i].Duration()

		if prevEnd, ok := lastEnd[machine]; ok && records[i].PlannedStart.Before(prevEnd) {
			records[i].PlannedStart = prevEnd
			records[i].PlannedEnd = prevEnd.Add(duration)
			records[i].Provenance.TimeCorrected = true
		}
		lastEnd[machine] = records[i].PlannedEnd
	}
}
