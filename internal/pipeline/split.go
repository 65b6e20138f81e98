package pipeline

import (
	"context"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// Splitter breaks oversize records into shift-sized sub-records, per spec
// §4.3.
type Splitter struct {
	// DefaultShiftDuration is used when the reference snapshot carries no
	// shift configuration (e.g. in isolated stage tests).
	DefaultShiftDuration time.Duration
}

func NewSplitter(defaultShiftDuration time.Duration) *Splitter {
	if defaultShiftDuration <= 0 {
		defaultShiftDuration = 8 * time.Hour
	}
	return &Splitter{DefaultShiftDuration: defaultShiftDuration}
}

func (s *Splitter) Name() string { return "SPLIT" }

func (s *Splitter) Process(ctx context.Context, in []model.PipelineRecord, ref model.ReferenceSnapshot) (StageResult, error) {
	start := time.Now()

	shiftDuration := ref.Shifts.LongestSlot()
	if shiftDuration <= 0 {
		shiftDuration = s.DefaultShiftDuration
	}

	groups := parallelMap(in, func(r model.PipelineRecord) []model.PipelineRecord {
		if r.Duration() <= shiftDuration {
			return []model.PipelineRecord{r}
		}
		return s.splitOne(r, shiftDuration)
	})

	result := StageResult{Records: make([]model.PipelineRecord, 0, len(in))}
	for _, g := range groups {
		result.Records = append(result.Records, g...)
	}

	result.Metrics.ProcessedRecords = len(in)
	result.Metrics.Valid = len(result.Records)
	result.Records = stamp(result.Records)
	finish(&result.Metrics, start)
	return result, nil
}

func (s *Splitter) splitOne(r model.PipelineRecord, shiftDuration time.Duration) []model.PipelineRecord {
	total := r.Duration()
	n := int(total / shiftDuration)
	if total%shiftDuration != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}

	subDurations := make([]time.Duration, n)
	for i := 0; i < n-1; i++ {
		subDurations[i] = shiftDuration
	}
	consumed := shiftDuration * time.Duration(n-1)
	subDurations[n-1] = total - consumed

	out := make([]model.PipelineRecord, 0, n)
	cursor := r.PlannedStart
	allocatedQty, allocatedFinal := 0, 0

	for i := 0; i < n; i++ {
		sub := r
		sub.PlannedStart = cursor
		sub.PlannedEnd = cursor.Add(subDurations[i])
		cursor = sub.PlannedEnd

		if i == n-1 {
			sub.QuantityTotal = r.QuantityTotal - allocatedQty
			sub.FinalQuantity = r.FinalQuantity - allocatedFinal
		} else {
			share := int(int64(r.QuantityTotal) * int64(subDurations[i]) / int64(total))
			finalShare := int(int64(r.FinalQuantity) * int64(subDurations[i]) / int64(total))
			sub.QuantityTotal = share
			sub.FinalQuantity = finalShare
			allocatedQty += share
			allocatedFinal += finalShare
		}

		sub.Provenance.SplitFrom = r.WorkOrderNr
		sub.Provenance.SplitIndex = i + 1
		sub.Provenance.SplitTotal = n
		out = append(out, sub)
	}
	return out
}
