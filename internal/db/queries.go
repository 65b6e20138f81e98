package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// Queries provides access to all database operations the scheduler needs:
// the durable work-order sequence counter, the reference-data tables the
// Reference-Data Provider batches at run start, and the pipeline-run audit
// trail.
type Queries struct {
	db *sql.DB
}

// New creates a new Queries instance
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// DB returns the underlying database connection
func (q *Queries) DB() *sql.DB {
	return q.db
}

// NextWorkOrderSequence atomically advances and returns the next sequence
// number for (orderType, planDate), creating the row on first use. Grounded
// on the original's aps_work_order_sequence counter table.
func (q *Queries) NextWorkOrderSequence(ctx context.Context, orderType string, planDate time.Time) (int, error) {
	const query = `
		INSERT INTO aps_work_order_sequence (order_type, plan_date, current_sequence, updated_time)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (order_type, plan_date)
		DO UPDATE SET current_sequence = aps_work_order_sequence.current_sequence + 1,
		              updated_time = NOW()
		RETURNING current_sequence
	`
	var seq int
	row := q.db.QueryRowContext(ctx, query, orderType, planDate.Format("2006-01-02"))
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("advance work order sequence for %s/%s: %w", orderType, planDate.Format("2006-01-02"), err)
	}
	return seq, nil
}

// ListMachineSpeeds returns every known machine/article throughput row.
func (q *Queries) ListMachineSpeeds(ctx context.Context) ([]MachineSpeedRow, error) {
	const query = `SELECT machine_code, article_nr, speed, efficiency_rate FROM aps_machine_speed`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list machine speeds: %w", err)
	}
	defer rows.Close()

	var out []MachineSpeedRow
	for rows.Next() {
		var r MachineSpeedRow
		if err := rows.Scan(&r.MachineCode, &r.ArticleNr, &r.Speed, &r.EfficiencyRate); err != nil {
			return nil, fmt.Errorf("scan machine speed row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFeederRelations returns every feeder-to-packer reachability row,
// ordered so rows for the same feeder arrive in priority order.
func (q *Queries) ListFeederRelations(ctx context.Context) ([]FeederRelationRow, error) {
	const query = `
		SELECT feeder_code, packer_code, priority
		FROM aps_feeder_packer_relation
		ORDER BY feeder_code, priority
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list feeder relations: %w", err)
	}
	defer rows.Close()

	var out []FeederRelationRow
	for rows.Next() {
		var r FeederRelationRow
		if err := rows.Scan(&r.FeederCode, &r.PackerCode, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan feeder relation row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListShiftSlots returns the configured daily shift calendar, ordered by
// start-of-day offset.
func (q *Queries) ListShiftSlots(ctx context.Context) ([]ShiftSlotRow, error) {
	const query = `SELECT name, start_secs, end_secs FROM aps_shift_config ORDER BY start_secs`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list shift slots: %w", err)
	}
	defer rows.Close()

	var out []ShiftSlotRow
	for rows.Next() {
		var r ShiftSlotRow
		if err := rows.Scan(&r.Name, &r.StartSecs, &r.EndSecs); err != nil {
			return nil, fmt.Errorf("scan shift slot row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListMaintenanceWindows returns every maintenance window, across all
// machines, that ends at or after `after`, ordered so windows for the same
// machine arrive time-ordered.
func (q *Queries) ListMaintenanceWindows(ctx context.Context, after time.Time) ([]MaintenanceWindowRow, error) {
	const query = `
		SELECT machine_code, start_time, end_time
		FROM aps_maintenance_window
		WHERE end_time >= $1
		ORDER BY machine_code, start_time
	`
	rows, err := q.db.QueryContext(ctx, query, after)
	if err != nil {
		return nil, fmt.Errorf("list maintenance windows: %w", err)
	}
	defer rows.Close()

	var out []MaintenanceWindowRow
	for rows.Next() {
		var r MaintenanceWindowRow
		if err := rows.Scan(&r.MachineCode, &r.StartTime, &r.EndTime); err != nil {
			return nil, fmt.Errorf("scan maintenance window row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListDecadePlanRows loads every decade-plan row belonging to one import
// batch, the pipeline's entry point per spec §6. MakerCodes/FeederCodes are
// returned as the raw delimited text Preprocess is responsible for parsing.
func (q *Queries) ListDecadePlanRows(ctx context.Context, importBatchID string) ([]model.DecadePlanRow, error) {
	const query = `
		SELECT work_order_nr, article_nr, package_type, specification, quantity_total,
		       final_quantity, maker_codes, feeder_codes, planned_start, planned_end,
		       production_unit, validation_status, is_vaccum, is_sh93, is_hdt, is_flavor
		FROM aps_decade_plan_row
		WHERE import_batch_id = $1
		ORDER BY id
	`
	rows, err := q.db.QueryContext(ctx, query, importBatchID)
	if err != nil {
		return nil, fmt.Errorf("list decade plan rows for batch %s: %w", importBatchID, err)
	}
	defer rows.Close()

	var out []model.DecadePlanRow
	for rows.Next() {
		var r model.DecadePlanRow
		if err := rows.Scan(&r.WorkOrderNr, &r.ArticleNr, &r.PackageType, &r.Specification, &r.QuantityTotal,
			&r.FinalQuantity, &r.MakerCodes, &r.FeederCodes, &r.PlannedStart, &r.PlannedEnd,
			&r.ProductionUnit, &r.ValidationStatus,
			&r.Flags.IsVaccum, &r.Flags.IsSH93, &r.Flags.IsHDT, &r.Flags.IsFlavor); err != nil {
			return nil, fmt.Errorf("scan decade plan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordPipelineRun persists the audit trail of one completed pipeline run.
func (q *Queries) RecordPipelineRun(ctx context.Context, run PipelineRunRow) error {
	const query = `
		INSERT INTO aps_pipeline_run (run_id, started_at, finished_at, status, input_rows, output_pairs, error_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.db.ExecContext(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, run.Status, run.InputRows, run.OutputPairs, run.ErrorCount)
	if err != nil {
		return fmt.Errorf("record pipeline run %s: %w", run.RunID, err)
	}
	return nil
}
