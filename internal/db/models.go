package db

import "time"

// WorkOrderSequenceRow mirrors one row of aps_work_order_sequence: the
// durable per-(order_type, plan_date) counter WorkOrderGen's sequence
// allocator advances.
type WorkOrderSequenceRow struct {
	OrderType       string
	PlanDate        time.Time
	CurrentSequence int
	LastPlanID      string
	UpdatedAt       time.Time
}

// MachineSpeedRow mirrors one row of aps_machine_speed.
type MachineSpeedRow struct {
	MachineCode    string
	ArticleNr      string
	Speed          float64
	EfficiencyRate float64
}

// FeederRelationRow mirrors one row of aps_feeder_packer_relation. Multiple
// rows share a FeederCode, one per reachable packer, ordered by Priority.
type FeederRelationRow struct {
	FeederCode string
	PackerCode string
	Priority   int
}

// ShiftSlotRow mirrors one row of aps_shift_config.
type ShiftSlotRow struct {
	Name      string
	StartSecs int
	EndSecs   int
}

// MaintenanceWindowRow mirrors one row of aps_maintenance_window.
type MaintenanceWindowRow struct {
	MachineCode string
	StartTime   time.Time
	EndTime     time.Time
}

// PipelineRunRow mirrors one row of aps_pipeline_run, the persisted audit
// trail of a completed or failed pipeline execution.
type PipelineRunRow struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	InputRows   int
	OutputPairs int
	ErrorCount  int
}
