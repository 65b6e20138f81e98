package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// Merger combines rows that share (article_nr, maker_codes, feeder_codes)
// and whose time intervals are contiguous, per spec §4.2.
type Merger struct {
	// GapTolerance is the maximum gap between one record's planned_end and
	// the next's planned_start for them to still be considered contiguous.
	// Zero means "exactly back to back".
	GapTolerance time.Duration
}

func NewMerger(gapTolerance time.Duration) *Merger {
	return &Merger{GapTolerance: gapTolerance}
}

func (m *Merger) Name() string { return "MERGE" }

func (m *Merger) Process(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) (StageResult, error) {
	start := time.Now()

	groups := make(map[string][]int) // key -> indices into `in`
	order := make([]string, 0)
	for i, r := range in {
		key := mergeKey(r)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	type produced struct {
		rec      model.PipelineRecord
		minIndex int
	}
	var all []produced

	for _, key := range order {
		idxs := groups[key]
		sort.Slice(idxs, func(a, b int) bool {
			return in[idxs[a]].PlannedStart.Before(in[idxs[b]].PlannedStart)
		})

		chain := []model.PipelineRecord{in[idxs[0]]}
		chainMinIdx := idxs[0]

		flush := func() {
			if len(chain) == 1 {
				all = append(all, produced{rec: chain[0], minIndex: chainMinIdx})
				return
			}
			all = append(all, produced{rec: m.mergeChain(chain), minIndex: chainMinIdx})
		}

		for k := 1; k < len(idxs); k++ {
			cur := in[idxs[k]]
			prev := chain[len(chain)-1]
			gap := cur.PlannedStart.Sub(prev.PlannedEnd)
			if gap >= 0 && gap <= m.GapTolerance {
				chain = append(chain, cur)
				if idxs[k] < chainMinIdx {
					chainMinIdx = idxs[k]
				}
				continue
			}
			flush()
			chain = []model.PipelineRecord{cur}
			chainMinIdx = idxs[k]
		}
		flush()
	}

	sort.SliceStable(all, func(a, b int) bool { return all[a].minIndex < all[b].minIndex })

	result := StageResult{Records: make([]model.PipelineRecord, 0, len(all))}
	for _, p := range all {
		result.Records = append(result.Records, p.rec)
	}
	result.Metrics.ProcessedRecords = len(in)
	result.Metrics.Valid = len(result.Records)
	result.Records = stamp(result.Records)
	finish(&result.Metrics, start)
	return result, nil
}

func (m *Merger) mergeChain(chain []model.PipelineRecord) model.PipelineRecord {
	merged := chain[0]
	mergedFrom := make([]string, 0, len(chain))

	minStart := chain[0].PlannedStart
	maxEnd := chain[0].PlannedEnd
	totalQty := 0
	totalFinal := 0

	for _, r := range chain {
		mergedFrom = append(mergedFrom, r.WorkOrderNr)
		if r.PlannedStart.Before(minStart) {
			minStart = r.PlannedStart
		}
		if r.PlannedEnd.After(maxEnd) {
			maxEnd = r.PlannedEnd
		}
		totalQty += r.QuantityTotal
		totalFinal += r.FinalQuantity
	}

	merged.WorkOrderNr = chain[0].WorkOrderNr
	merged.PlannedStart = minStart
	merged.PlannedEnd = maxEnd
	merged.QuantityTotal = totalQty
	merged.FinalQuantity = totalFinal
	merged.Provenance.MergedFrom = mergedFrom
	return merged
}

func mergeKey(r model.PipelineRecord) string {
	return r.ArticleNr + "||" + strings.Join(r.MakerCodes, ",") + "||" + strings.Join(r.FeederCodes, ",")
}
