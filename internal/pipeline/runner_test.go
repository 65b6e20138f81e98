package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
	"github.com/pinggolf/aps-scheduler/internal/sequence"
)

func baseRunner() *Runner {
	allocator := sequence.NewAllocator(newCountingRepo(), nil, 3, time.Millisecond)
	return NewRunner(allocator, 8*time.Hour, 0, 7*24*time.Hour, 8, time.Minute)
}

func TestRunnerProducesOnePairPerSurvivingRecord(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	rows := []model.DecadePlanRow{
		mkRow("WO1", "A100", start, 2*time.Hour),
		{WorkOrderNr: "BAD", ArticleNr: "", PlannedStart: start, PlannedEnd: start.Add(time.Hour)},
	}

	ref := model.ReferenceSnapshot{Shifts: shiftConfig()}
	result := baseRunner().Run(context.Background(), "run-1", rows, ref)

	if result.Metrics.Status != StatusCompleted {
		t.Fatalf("expected the run to complete, got %s", result.Metrics.Status)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 surviving pair (the invalid row is dropped at Preprocess), got %d", len(result.Pairs))
	}
	if result.Metrics.InputRows != 2 {
		t.Fatalf("expected InputRows=2, got %d", result.Metrics.InputRows)
	}
	if result.Metrics.OutputPairs != 1 {
		t.Fatalf("expected OutputPairs=1, got %d", result.Metrics.OutputPairs)
	}
	// Preprocess + Merge + Split + TimeCorrect + ParallelSplit + WorkOrderGen
	if len(result.Metrics.Stages) != 6 {
		t.Fatalf("expected metrics for all 6 stages, got %d", len(result.Metrics.Stages))
	}
}

func TestRunnerStopsAtNextStageBoundaryOnCancellation(t *testing.T) {
	start := time.Date(2026, 1, 5, 7, 0, 0, 0, time.UTC)
	rows := []model.DecadePlanRow{mkRow("WO1", "A100", start, 2*time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := baseRunner().Run(ctx, "run-2", rows, model.ReferenceSnapshot{})
	if result.Metrics.Status != StatusCancelled {
		t.Fatalf("expected a cancelled run, got %s", result.Metrics.Status)
	}
	if result.Pairs != nil {
		t.Fatalf("expected no pairs to be emitted from a cancelled run")
	}
}

// TestRunnerParallelFanOutGetsUniquePairedOrders exercises the full
// Merge -> Split -> TimeCorrect -> ParallelSplit -> WorkOrderGen chain on a
// record spanning two maker codes and an oversize duration, to confirm
// every emitted work order keeps a distinct MES plan id.
func TestRunnerParallelFanOutGetsUniquePairedOrders(t *testing.T) {
	start := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	row := mkRow("WO1", "A100", start, 16*time.Hour)
	row.MakerCodes = "M1,M2"
	row.FeederCodes = "F1"

	ref := model.ReferenceSnapshot{
		Shifts: shiftConfig(),
		Relations: map[string]model.FeederPackerRelation{
			"F1": {FeederCode: "F1", PackerCodes: []string{"M1", "M2"}},
		},
	}

	result := baseRunner().Run(context.Background(), "run-3", []model.DecadePlanRow{row}, ref)
	if result.Metrics.Status != StatusCompleted {
		t.Fatalf("expected the run to complete, got %s", result.Metrics.Status)
	}

	seen := make(map[string]bool)
	for _, pair := range result.Pairs {
		for _, id := range []string{pair.Feeding.PlanID, pair.Packing.PlanID} {
			if seen[id] {
				t.Fatalf("expected every plan id to be unique, saw %s twice", id)
			}
			seen[id] = true
		}
	}
	if len(result.Pairs) < 2 {
		t.Fatalf("expected splitting+fan-out to produce multiple work order pairs, got %d", len(result.Pairs))
	}
}
