package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

func TestParallelSplitterFansOutMultiMachineRecord(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	r := mkRecord("WO1", "A100", []string{"M1", "M2", "M3"}, nil, start, 4*time.Hour, 1000, 901)

	ref := model.ReferenceSnapshot{
		Relations: map[string]model.FeederPackerRelation{
			"F1": {FeederCode: "F1", PackerCodes: []string{"M1", "M2"}},
		},
	}

	ids := []string{"sync-a"}
	idx := 0
	p := &ParallelSplitter{NewID: func() string { id := ids[idx%len(ids)]; idx++; return id }}

	result, err := p.Process(context.Background(), stamp([]model.PipelineRecord{r}), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("expected 3 sub-records, one per maker code, got %d", len(result.Records))
	}

	var totalQty, totalFinal int
	for i, sub := range result.Records {
		if len(sub.MakerCodes) != 1 {
			t.Fatalf("expected each sub-record to carry exactly one maker code, got %v", sub.MakerCodes)
		}
		if sub.Provenance.SyncGroupID != "sync-a" {
			t.Fatalf("expected shared sync_group_id, got %s", sub.Provenance.SyncGroupID)
		}
		if sub.Provenance.ParallelIndex != i+1 {
			t.Fatalf("expected ParallelIndex=%d, got %d", i+1, sub.Provenance.ParallelIndex)
		}
		if !sub.PlannedStart.Equal(start) || !sub.PlannedEnd.Equal(start.Add(4*time.Hour)) {
			t.Fatalf("expected the fanned-out window to match the source record")
		}
		totalQty += sub.QuantityTotal
		totalFinal += sub.FinalQuantity
	}
	if totalQty != r.QuantityTotal || totalFinal != r.FinalQuantity {
		t.Fatalf("expected fanned-out quantities to sum back to the source record, got %d/%d", totalQty, totalFinal)
	}

	if result.Records[0].FeederCodes[0] != "F1" {
		t.Fatalf("expected M1 to resolve feeder F1, got %v", result.Records[0].FeederCodes)
	}
	if !result.Records[2].Provenance.FeederFallback {
		t.Fatalf("expected M3 (no feeder relation) to be flagged FeederFallback")
	}
}

func TestParallelSplitterPassesThroughSingleMachineRecord(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	r := mkRecord("WO1", "A100", []string{"M1"}, []string{"F1"}, start, 4*time.Hour, 400, 380)

	p := NewParallelSplitter()
	result, _ := p.Process(context.Background(), stamp([]model.PipelineRecord{r}), model.ReferenceSnapshot{})
	if len(result.Records) != 1 {
		t.Fatalf("expected single-maker record to pass through untouched, got %d records", len(result.Records))
	}
	if result.Records[0].Provenance.SyncGroupID != "" {
		t.Fatalf("expected no sync_group_id stamped on a pass-through record")
	}
}
