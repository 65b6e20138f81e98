// Package model defines the data shapes that flow through the scheduling
// pipeline: the raw decade-plan input, the append-only pipeline record that
// carries stage provenance, the reference-data lookups the stages consult,
// and the paired HWS/HJB work orders the pipeline emits.
package model

import "time"

// DecadePlanRow is one row of a decade (10-day) production plan as it
// arrives from the plan-ingest subsystem. MakerCodes and FeederCodes are
// carried as raw comma- or semicolon-separated text, exactly as the
// upstream Excel/plan-ingest layer stores them — Preprocess is the stage
// responsible for normalizing them into ordered, de-duplicated sequences.
type DecadePlanRow struct {
	WorkOrderNr      string
	ArticleNr        string
	PackageType      string
	Specification    string
	QuantityTotal    int
	FinalQuantity    int
	MakerCodes       string
	FeederCodes      string
	PlannedStart     time.Time
	PlannedEnd       time.Time
	ProductionUnit   string
	ValidationStatus string
	Flags            ProcessFlags
}

// Provenance tracks how a PipelineRecord was produced by prior stages.
// Fields are additive only — stages never delete a provenance fact another
// stage recorded, they only append their own.
type Provenance struct {
	MergedFrom                 []string
	SplitFrom                  string
	SplitIndex                 int // 1-based position among the split's siblings
	SplitTotal                 int // number of siblings produced by the split
	TimeCorrected              bool
	ShiftAligned                bool
	OriginalPlannedStart       time.Time
	OriginalPlannedEnd         time.Time
	MaintenanceConflictResolved bool
	CorrectionFailed            bool
	SyncGroupID                 string
	ParallelIndex                int
	FeederFallback                bool
}

// PipelineRecord is the intermediate representation carried between stages.
// It embeds the full DecadePlanRow plus provenance; downstream stages read
// prior provenance and append their own. The plan fields themselves are
// rewritten only under the rules each stage documents: planned_start and
// planned_end (Merge, Split, TimeCorrect), the quantities (Merge, Split,
// ParallelSplit), and the maker/feeder code lists (ParallelSplit).
type PipelineRecord struct {
	WorkOrderNr      string
	ArticleNr        string
	PackageType      string
	Specification    string
	QuantityTotal    int
	FinalQuantity    int
	MakerCodes       []string
	FeederCodes      []string
	PlannedStart     time.Time
	PlannedEnd       time.Time
	ProductionUnit   string
	ValidationStatus string
	Flags            ProcessFlags

	Provenance Provenance

	// inputIndex preserves the row's position in the stage-entry batch so
	// ties (equal planned_start after correction, equal sequence, etc.)
	// break deterministically instead of depending on map iteration order.
	inputIndex int
}

// InputIndex returns the record's position in the batch it entered the
// current stage with. Stages that reorder output use it as a stable
// tie-breaker.
func (r PipelineRecord) InputIndex() int { return r.inputIndex }

// WithInputIndex returns a copy of the record stamped with the given index.
// Every stage stamps its output records with this (via pipeline's stamp
// helper), so tie-breaking in the next stage is always relative to that
// stage's input order, per spec §4.4's ordering guarantee.
func (r PipelineRecord) WithInputIndex(i int) PipelineRecord {
	r.inputIndex = i
	return r
}

// Duration returns planned_end - planned_start.
func (r PipelineRecord) Duration() time.Duration {
	return r.PlannedEnd.Sub(r.PlannedStart)
}

// MachineSpeed maps a (machine, article) pair to its throughput.
type MachineSpeed struct {
	MachineCode    string
	ArticleNr      string
	Speed          float64 // boxes/hour
	EfficiencyRate float64 // percent, e.g. 92.5
}

// EffectiveThroughput returns speed * efficiency_rate / 100.
func (m MachineSpeed) EffectiveThroughput() float64 {
	return m.Speed * m.EfficiencyRate / 100.0
}

// FeederPackerRelation is one feeder's ranked list of reachable packers.
type FeederPackerRelation struct {
	FeederCode   string
	PackerCodes  []string // priority order, index 0 = highest priority
}

// ShiftSlot is one named daily working window.
type ShiftSlot struct {
	Name  string
	Start time.Duration // offset from local midnight
	End   time.Duration // offset from local midnight; End > Start
}

// ShiftConfig is the ordered sequence of daily shift slots.
type ShiftConfig []ShiftSlot

// MaintenanceWindow is a forbidden interval for one machine.
type MaintenanceWindow struct {
	MachineCode    string
	MaintStartTime time.Time
	MaintEndTime   time.Time
}

// OrderType distinguishes the two work-order streams.
type OrderType string

const (
	OrderTypeHWS OrderType = "HWS" // feeder (tobacco shred)
	OrderTypeHJB OrderType = "HJB" // packer (cigarette packing)
)

// ProcessFlags are the shared process-control booleans copied through from
// the source record onto both halves of a work-order pair.
type ProcessFlags struct {
	IsVaccum bool
	IsSH93   bool
	IsHDT    bool
	IsFlavor bool
}

// FeedingOrder is the HWS (feeder) half of a work-order pair.
type FeedingOrder struct {
	PlanID         string
	ProductionLine string // comma-joined feeder codes
	MaterialCode   string
	BatchCode      string // usually empty for HWS
	Quantity       *int   // optional
	PlanStartTime  time.Time
	PlanEndTime    time.Time
	Sequence       int
	Shift          string
	Flags          ProcessFlags
	PlanDate       time.Time
	IsOutsourcing  bool
	IsBackup       bool
	BackupReason   string
	OrderStatus    string
	SyncGroupID    string
}

// InputBatch couples a PackingOrder to its upstream FeedingOrder.
type InputBatch struct {
	InputPlanID      string
	InputBatchCode   string
	InputQuantity    int
	BatchSequence    int
	IsWholeBatch     bool
	IsMainChannel    bool
	IsDeleted        bool
	IsLastOne        bool
	InputMaterialCode string
	InputBOMRevision  string
	Tiled             bool
}

// PackingOrder is the HJB (packer) half of a work-order pair.
type PackingOrder struct {
	PlanID         string
	ProductionLine string // single packer code
	MaterialCode   string
	BatchCode      string
	Quantity       int // final box count
	PlanStartTime  time.Time
	PlanEndTime    time.Time
	Sequence       int
	Shift          string
	Flags          ProcessFlags
	PlanDate       time.Time
	IsOutsourcing  bool
	IsBackup       bool
	BackupReason   string
	OrderStatus    string
	SyncGroupID    string

	InputBatch InputBatch
}

// WorkOrderPair is one HWS/HJB pair emitted by WorkOrderGen for a single
// (post-ParallelSplit) pipeline record.
type WorkOrderPair struct {
	Feeding FeedingOrder
	Packing PackingOrder
}

// ReferenceSnapshot is the immutable, stage-entry-fetched bundle of sideband
// reference data a pipeline run consults: machine speeds, feeder↔packer
// relations, the shift calendar, and maintenance windows. It is fetched once
// per run by the Reference-Data Provider and cached for the run's duration,
// per spec §5's "Suspension points" rule.
type ReferenceSnapshot struct {
	Speeds        map[string]MachineSpeed // key: machineCode+"|"+articleNr
	Relations     map[string]FeederPackerRelation // key: feederCode
	Shifts        ShiftConfig
	Maintenance   map[string][]MaintenanceWindow // key: machineCode, time-ordered
}

// SpeedFor looks up the effective throughput for a machine/article pair.
func (s ReferenceSnapshot) SpeedFor(machineCode, articleNr string) (MachineSpeed, bool) {
	sp, ok := s.Speeds[machineCode+"|"+articleNr]
	return sp, ok
}

// FeederFor returns a feeder code that lists packerCode as a reachable
// packer, chosen by priority order across all known relations. Returns
// false if no feeder reaches packerCode.
func (s ReferenceSnapshot) FeederFor(packerCode string) (string, bool) {
	var best string
	bestRank := -1
	for _, rel := range s.Relations {
		for rank, p := range rel.PackerCodes {
			if p != packerCode {
				continue
			}
			if bestRank == -1 || rank < bestRank {
				bestRank = rank
				best = rel.FeederCode
			}
		}
	}
	return best, bestRank != -1
}

// MaintenanceWindowsFor returns the time-ordered maintenance windows for a
// machine code.
func (s ReferenceSnapshot) MaintenanceWindowsFor(machineCode string) []MaintenanceWindow {
	return s.Maintenance[machineCode]
}

// ShiftSlotFor returns the shift slot containing the given instant's
// time-of-day, if any, along with the slot's start/end anchored to t's day.
func (c ShiftConfig) ShiftSlotFor(t time.Time) (slot ShiftSlot, start, end time.Time, ok bool) {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	tod := t.Sub(dayStart)
	for _, s := range c {
		if tod >= s.Start && tod < s.End {
			return s, dayStart.Add(s.Start), dayStart.Add(s.End), true
		}
	}
	return ShiftSlot{}, time.Time{}, time.Time{}, false
}

// NextShiftStart returns the start of the first shift slot at or after t,
// rolling over to the next day's first slot when t falls after the day's
// last slot. ShiftConfig must be non-empty and sorted by Start.
func (c ShiftConfig) NextShiftStart(t time.Time) time.Time {
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	tod := t.Sub(dayStart)
	for _, s := range c {
		if tod <= s.Start {
			return dayStart.Add(s.Start)
		}
	}
	// past the last slot today — roll to tomorrow's first slot
	return dayStart.Add(24 * time.Hour).Add(c[0].Start)
}

// TotalDuration returns the sum of each slot's length.
func (c ShiftConfig) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c {
		total += s.End - s.Start
	}
	return total
}

// LongestSlot returns the duration of the longest single shift slot, the
// unit Split breaks oversize records into.
func (c ShiftConfig) LongestSlot() time.Duration {
	var longest time.Duration
	for _, s := range c {
		if d := s.End - s.Start; d > longest {
			longest = d
		}
	}
	return longest
}
