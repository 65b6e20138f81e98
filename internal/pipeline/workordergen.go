package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
	"github.com/pinggolf/aps-scheduler/internal/sequence"
)

// backupReason is the literal reason string spec §4.6 mandates for a
// sequence-allocator fallback, regardless of the underlying cause.
const backupReason = "sequence-fallback"

// WorkOrderGenerator emits one HWS/HJB pair per input record, per spec
// §4.6: paired plan IDs from the durable sequence allocator, InputBatch
// linkage, split-aware is_last_one/batch_sequence, and a per-(plan_date,
// production_line) execution-order sequence.
type WorkOrderGenerator struct {
	Allocator *sequence.Allocator
}

func NewWorkOrderGenerator(allocator *sequence.Allocator) *WorkOrderGenerator {
	return &WorkOrderGenerator{Allocator: allocator}
}

func (w *WorkOrderGenerator) Name() string { return "WORK_ORDER_GEN" }

// Pairs runs WorkOrderGen and returns the emitted work-order pairs alongside
// the usual stage metrics/errors. WorkOrderGen does not fit the common Stage
// interface since its output type is WorkOrderPair, not PipelineRecord.
func (w *WorkOrderGenerator) Pairs(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) ([]model.WorkOrderPair, StageMetrics, []StageError) {
	start := time.Now()
	metrics := StageMetrics{Stage: w.Name(), ProcessedRecords: len(in)}
	var errs []StageError

	execSeq := w.assignExecutionSequence(in)

	pairs := make([]model.WorkOrderPair, 0, len(in))
	for i, r := range in {
		planDate := truncateToDay(r.PlannedStart)

		hws := w.Allocator.Next(ctx, model.OrderTypeHWS, planDate)
		hjb := w.Allocator.Next(ctx, model.OrderTypeHJB, planDate)
		if hws.IsBackup {
			errs = append(errs, StageError{Kind: KindAllocation, Stage: w.Name(), WorkOrderNr: r.WorkOrderNr, Message: "HWS sequence allocation fell back: " + hws.BackupReason})
		}
		if hjb.IsBackup {
			errs = append(errs, StageError{Kind: KindAllocation, Stage: w.Name(), WorkOrderNr: r.WorkOrderNr, Message: "HJB sequence allocation fell back: " + hjb.BackupReason})
		}

		maker := ""
		if len(r.MakerCodes) > 0 {
			maker = r.MakerCodes[0]
		}
		shift := shiftNameFor(ref, r.PlannedStart)

		isLastOne := true
		batchSequence := 1
		if r.Provenance.SplitTotal > 0 {
			batchSequence = r.Provenance.SplitIndex
			isLastOne = r.Provenance.SplitIndex == r.Provenance.SplitTotal
		}

		qty := r.QuantityTotal
		feeding := model.FeedingOrder{
			PlanID:         hws.PlanID,
			ProductionLine: strings.Join(r.FeederCodes, ","),
			MaterialCode:   r.ArticleNr,
			Quantity:       &qty,
			PlanStartTime:  r.PlannedStart,
			PlanEndTime:    r.PlannedEnd,
			Sequence:       execSeq[i],
			Shift:          shift,
			Flags:          r.Flags,
			PlanDate:       planDate,
			IsBackup:       hws.IsBackup,
			OrderStatus:    "PLANNED",
			SyncGroupID:    r.Provenance.SyncGroupID,
		}
		if hws.IsBackup {
			feeding.BackupReason = backupReason
		}

		packing := model.PackingOrder{
			PlanID:         hjb.PlanID,
			ProductionLine: maker,
			MaterialCode:   r.ArticleNr,
			BatchCode:      r.WorkOrderNr,
			Quantity:       r.FinalQuantity,
			PlanStartTime:  r.PlannedStart,
			PlanEndTime:    r.PlannedEnd,
			Sequence:       execSeq[i],
			Shift:          shift,
			Flags:          r.Flags,
			PlanDate:       planDate,
			IsBackup:       hjb.IsBackup,
			OrderStatus:    "PLANNED",
			SyncGroupID:    r.Provenance.SyncGroupID,
			InputBatch: model.InputBatch{
				InputPlanID:       feeding.PlanID,
				InputQuantity:     r.QuantityTotal,
				BatchSequence:     batchSequence,
				IsWholeBatch:      true,
				IsMainChannel:     true,
				IsLastOne:         isLastOne,
				InputMaterialCode: r.ArticleNr,
			},
		}
		if hjb.IsBackup {
			packing.BackupReason = backupReason
		}

		pairs = append(pairs, model.WorkOrderPair{Feeding: feeding, Packing: packing})
	}

	metrics.Valid = len(pairs)
	finish(&metrics, start)
	return pairs, metrics, errs
}

// assignExecutionSequence groups records by (plan_date, primary maker code,
// i.e. the HJB production_line) and assigns a dense 1-based sequence within
// each group by ascending planned_start, ties broken by stable input order,
// per spec §4.6. Both halves of a pair carry the same sequence.
func (w *WorkOrderGenerator) assignExecutionSequence(records []model.PipelineRecord) []int {
	type keyed struct {
		key   string
		idx   int
		start time.Time
		order int
	}
	entries := make([]keyed, len(records))
	for i, r := range records {
		line := ""
		if len(r.MakerCodes) > 0 {
			line = r.MakerCodes[0]
		}
		key := truncateToDay(r.PlannedStart).Format("2006-01-02") + "|" + line
		entries[i] = keyed{key: key, idx: i, start: r.PlannedStart, order: r.InputIndex()}
	}

	groups := make(map[string][]int)
	for i, e := range entries {
		groups[e.key] = append(groups[e.key], i)
	}

	out := make([]int, len(records))
	for _, idxs := range groups {
		sort.Slice(idxs, func(a, b int) bool {
			ea, eb := entries[idxs[a]], entries[idxs[b]]
			if !ea.start.Equal(eb.start) {
				return ea.start.Before(eb.start)
			}
			return ea.order < eb.order
		})
		for pos, i := range idxs {
			out[i] = pos + 1
		}
	}
	return out
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func shiftNameFor(ref model.ReferenceSnapshot, t time.Time) string {
	if slot, _, _, ok := ref.Shifts.ShiftSlotFor(t); ok {
		return slot.Name
	}
	return ""
}
