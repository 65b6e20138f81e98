package mes

import (
	"context"
	"log"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// Dispatcher sends one completed work-order pair to the MES. The real HTTP
// client is out of scope; LoggingDispatcher below is the dispatcher used by
// the scheduler binary until one is wired in.
type Dispatcher interface {
	Dispatch(ctx context.Context, pair model.WorkOrderPair) error
}

// LoggingDispatcher logs the wire-format payload instead of sending it
// anywhere. It exists so the pipeline runner has a real implementation to
// call end to end.
type LoggingDispatcher struct{}

func NewLoggingDispatcher() *LoggingDispatcher { return &LoggingDispatcher{} }

func (d *LoggingDispatcher) Dispatch(ctx context.Context, pair model.WorkOrderPair) error {
	feeding := ToFeedingWire(pair.Feeding)
	packing := ToPackingWire(pair.Packing)
	log.Printf("mes dispatch: HWS %s -> HJB %s (production_line=%s, sequence=%d)",
		feeding.PlanID, packing.PlanID, packing.ProductionLine, packing.Sequence)
	return nil
}
