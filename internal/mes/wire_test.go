package mes

import (
	"testing"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

func TestToFeedingWireUsesStringQuantityAndKilogramUnit(t *testing.T) {
	qty := 500
	start := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	f := model.FeedingOrder{
		PlanID:        "HWS000000001",
		Quantity:      &qty,
		PlanStartTime: start,
		PlanEndTime:   start.Add(2 * time.Hour),
		PlanDate:      start,
	}

	wire := ToFeedingWire(f)
	if wire.Quantity != "500" {
		t.Fatalf("expected HWS quantity to be the string \"500\", got %q", wire.Quantity)
	}
	if wire.Unit != unitHWS {
		t.Fatalf("expected HWS unit %q, got %q", unitHWS, wire.Unit)
	}
	if wire.PlanStartTime != "2026-01-05T06:00:00" {
		t.Fatalf("unexpected plan_start_time format: %s", wire.PlanStartTime)
	}
}

func TestToFeedingWireOmitsQuantityWhenNil(t *testing.T) {
	wire := ToFeedingWire(model.FeedingOrder{})
	if wire.Quantity != "" {
		t.Fatalf("expected empty quantity string when Quantity is nil, got %q", wire.Quantity)
	}
}

func TestToPackingWireUsesIntQuantityAndBoxUnit(t *testing.T) {
	p := model.PackingOrder{
		PlanID:   "HJB000000001",
		Quantity: 480,
		InputBatch: model.InputBatch{
			InputPlanID: "HWS000000001",
		},
	}
	wire := ToPackingWire(p)
	if wire.Quantity != 480 {
		t.Fatalf("expected HJB quantity to be the int 480, got %d", wire.Quantity)
	}
	if wire.Unit != unitHJB {
		t.Fatalf("expected HJB unit %q, got %q", unitHJB, wire.Unit)
	}
	if wire.InputBatch.InputPlanID != "HWS000000001" {
		t.Fatalf("expected InputBatch to link back to the feeding order, got %q", wire.InputBatch.InputPlanID)
	}
}

func TestProductionLineJoin(t *testing.T) {
	if got := ProductionLineJoin([]string{"F1", "F2"}); got != "F1,F2" {
		t.Fatalf("expected comma-joined production line, got %q", got)
	}
	if got := ProductionLineJoin(nil); got != "" {
		t.Fatalf("expected empty string for no codes, got %q", got)
	}
}
