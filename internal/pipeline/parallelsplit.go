package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// ParallelSplitter fans a record with multiple maker_codes out into one
// sub-record per machine, all sharing a sync_group_id and time window, per
// spec §4.5. Records with a single maker_code pass through untouched.
type ParallelSplitter struct {
	// NewID produces the sync_group_id for one fan-out. Overridable in
	// tests; defaults to uuid.NewString.
	NewID func() string
}

func NewParallelSplitter() *ParallelSplitter {
	return &ParallelSplitter{NewID: uuid.NewString}
}

func (p *ParallelSplitter) Name() string { return "PARALLEL_SPLIT" }

func (p *ParallelSplitter) Process(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) (StageResult, error) {
	start := time.Now()
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	groups := parallelMap(in, func(r model.PipelineRecord) []model.PipelineRecord {
		if len(r.MakerCodes) <= 1 {
			return []model.PipelineRecord{r}
		}
		return p.fanOut(r, ref, newID())
	})

	result := StageResult{Records: make([]model.PipelineRecord, 0, len(in))}
	for _, g := range groups {
		result.Records = append(result.Records, g...)
	}
	for _, r := range result.Records {
		if r.Provenance.FeederFallback {
			result.Metrics.Warned++
			result.Errors = append(result.Errors, StageError{
				Kind: KindResourceConflict, Stage: p.Name(), WorkOrderNr: r.WorkOrderNr,
				Message: "no feeder relation reaches packer " + r.MakerCodes[0] + "; kept parent feeder codes",
			})
		}
	}

	result.Metrics.ProcessedRecords = len(in)
	result.Metrics.Valid = len(result.Records)
	result.Records = stamp(result.Records)
	finish(&result.Metrics, start)
	return result, nil
}

// fanOut produces one sub-record per maker_code in r, each carrying the
// same planned_start/planned_end and sync_group_id. Quantities divide evenly
// with the remainder assigned to the last sub-record, matching the
// remainder-to-last convention used by Split.
func (p *ParallelSplitter) fanOut(r model.PipelineRecord, ref model.ReferenceSnapshot, syncGroupID string) []model.PipelineRecord {
	n := len(r.MakerCodes)
	out := make([]model.PipelineRecord, 0, n)

	baseQty, baseFinal := r.QuantityTotal/n, r.FinalQuantity/n
	allocatedQty, allocatedFinal := 0, 0

	for i, machine := range r.MakerCodes {
		sub := r
		sub.MakerCodes = []string{machine}

		if i == n-1 {
			sub.QuantityTotal = r.QuantityTotal - allocatedQty
			sub.FinalQuantity = r.FinalQuantity - allocatedFinal
		} else {
			sub.QuantityTotal = baseQty
			sub.FinalQuantity = baseFinal
			allocatedQty += baseQty
			allocatedFinal += baseFinal
		}

		if feeder, ok := ref.FeederFor(machine); ok {
			sub.FeederCodes = []string{feeder}
		} else {
			sub.Provenance.FeederFallback = true
		}

		sub.Provenance.SyncGroupID = syncGroupID
		sub.Provenance.ParallelIndex = i + 1
		out = append(out, sub)
	}
	return out
}
