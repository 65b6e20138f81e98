package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

func mkRecord(workOrderNr, articleNr string, maker, feeder []string, start time.Time, dur time.Duration, qty, final int) model.PipelineRecord {
	return model.PipelineRecord{
		WorkOrderNr:   workOrderNr,
		ArticleNr:     articleNr,
		MakerCodes:    maker,
		FeederCodes:   feeder,
		PlannedStart:  start,
		PlannedEnd:    start.Add(dur),
		QuantityTotal: qty,
		FinalQuantity: final,
	}
}

func TestMergerCombinesContiguousChain(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	maker := []string{"M1"}
	feeder := []string{"F1"}
	in := []model.PipelineRecord{
		mkRecord("WO1", "A100", maker, feeder, start, 4*time.Hour, 400, 380),
		mkRecord("WO2", "A100", maker, feeder, start.Add(4*time.Hour), 4*time.Hour, 400, 380),
		mkRecord("WO3", "A999", maker, feeder, start, time.Hour, 100, 90),
	}

	m := NewMerger(0)
	result, err := m.Process(context.Background(), stamp(in), model.ReferenceSnapshot{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 merged groups, got %d", len(result.Records))
	}

	merged := result.Records[0]
	if merged.WorkOrderNr != "WO1" {
		t.Fatalf("expected merged record to keep first work order nr, got %s", merged.WorkOrderNr)
	}
	if !merged.PlannedEnd.Equal(start.Add(8 * time.Hour)) {
		t.Fatalf("expected merged end at +8h, got %v", merged.PlannedEnd)
	}
	if merged.QuantityTotal != 800 || merged.FinalQuantity != 760 {
		t.Fatalf("expected summed quantities 800/760, got %d/%d", merged.QuantityTotal, merged.FinalQuantity)
	}
	if len(merged.Provenance.MergedFrom) != 2 {
		t.Fatalf("expected MergedFrom to list both source work orders, got %v", merged.Provenance.MergedFrom)
	}

	unmerged := result.Records[1]
	if unmerged.WorkOrderNr != "WO3" {
		t.Fatalf("expected unmerged record WO3 to pass through, got %s", unmerged.WorkOrderNr)
	}
	if len(unmerged.Provenance.MergedFrom) != 0 {
		t.Fatalf("expected no MergedFrom provenance for a singleton record")
	}
}

func TestMergerRespectsGapTolerance(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	maker := []string{"M1"}
	feeder := []string{"F1"}
	in := []model.PipelineRecord{
		mkRecord("WO1", "A100", maker, feeder, start, 4*time.Hour, 400, 380),
		// gap of 2 hours exceeds zero tolerance
		mkRecord("WO2", "A100", maker, feeder, start.Add(6*time.Hour), 4*time.Hour, 400, 380),
	}

	m := NewMerger(0)
	result, _ := m.Process(context.Background(), stamp(in), model.ReferenceSnapshot{})
	if len(result.Records) != 2 {
		t.Fatalf("expected the gap to prevent merging, got %d records", len(result.Records))
	}
}
