package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

func shiftConfig() model.ShiftConfig {
	return model.ShiftConfig{
		{Name: "DAY", Start: 6 * time.Hour, End: 14 * time.Hour},
		{Name: "SWING", Start: 14 * time.Hour, End: 22 * time.Hour},
	}
}

func TestTimeCorrectorShiftsRecordPastMaintenanceWindow(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	r := mkRecord("WO1", "A100", []string{"M1"}, []string{"F1"}, start, 2*time.Hour, 200, 190)

	ref := model.ReferenceSnapshot{
		Maintenance: map[string][]model.MaintenanceWindow{
			"M1": {{MachineCode: "M1", MaintStartTime: start, MaintEndTime: start.Add(3 * time.Hour)}},
		},
		Shifts: shiftConfig(),
	}

	tc := NewTimeCorrector(8, 7*24*time.Hour)
	result, err := tc.Process(context.Background(), stamp([]model.PipelineRecord{r}), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Records[0]
	if !out.PlannedStart.Equal(start.Add(3 * time.Hour)) {
		t.Fatalf("expected record pushed to maintenance window end %v, got %v", start.Add(3*time.Hour), out.PlannedStart)
	}
	if out.Duration() != 2*time.Hour {
		t.Fatalf("expected duration preserved at 2h, got %v", out.Duration())
	}
	if !out.Provenance.MaintenanceConflictResolved {
		t.Fatalf("expected MaintenanceConflictResolved=true")
	}
	if !out.Provenance.TimeCorrected {
		t.Fatalf("expected TimeCorrected=true")
	}
}

func TestTimeCorrectorResolvesOverlapOnSameMachine(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	r1 := mkRecord("WO1", "A100", []string{"M1"}, []string{"F1"}, start, 3*time.Hour, 300, 290)
	r2 := mkRecord("WO2", "A200", []string{"M1"}, []string{"F1"}, start.Add(time.Hour), 2*time.Hour, 200, 190)

	ref := model.ReferenceSnapshot{Shifts: shiftConfig()}
	tc := NewTimeCorrector(8, 7*24*time.Hour)
	result, err := tc.Process(context.Background(), stamp([]model.PipelineRecord{r1, r2}), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	first, second := result.Records[0], result.Records[1]
	if first.PlannedEnd.After(second.PlannedStart) {
		t.Fatalf("expected no overlap on machine M1: first ends %v, second starts %v", first.PlannedEnd, second.PlannedStart)
	}
	if !second.PlannedStart.Equal(first.PlannedEnd) {
		t.Fatalf("expected overlapping record pushed to start exactly when the first ends, got %v vs %v", second.PlannedStart, first.PlannedEnd)
	}
}

func TestTimeCorrectorRevertsWhenMaintenanceIterationBudgetExceeded(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	r := mkRecord("WO1", "A100", []string{"M1"}, []string{"F1"}, start, time.Hour, 100, 90)

	// Two back-to-back maintenance windows: shifting past the first still
	// lands in the second, exceeding a budget of 1 iteration.
	ref := model.ReferenceSnapshot{
		Maintenance: map[string][]model.MaintenanceWindow{
			"M1": {
				{MachineCode: "M1", MaintStartTime: start, MaintEndTime: start.Add(time.Hour)},
				{MachineCode: "M1", MaintStartTime: start.Add(time.Hour), MaintEndTime: start.Add(2 * time.Hour)},
			},
		},
	}

	tc := NewTimeCorrector(1, 7*24*time.Hour)
	result, err := tc.Process(context.Background(), stamp([]model.PipelineRecord{r}), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := result.Records[0]
	if !out.Provenance.CorrectionFailed {
		t.Fatalf("expected CorrectionFailed=true when the iteration budget is exceeded")
	}
	if !out.PlannedStart.Equal(start) {
		t.Fatalf("expected reverted record to keep its original start %v, got %v", start, out.PlannedStart)
	}
	if len(result.Errors) == 0 || result.Errors[0].Kind != KindConstraintViolation {
		t.Fatalf("expected a KindConstraintViolation error, got %v", result.Errors)
	}
}
