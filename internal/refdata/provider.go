// Package refdata fetches the read-only sideband data a pipeline run
// consults — machine speeds, feeder/packer relations, the shift calendar,
// and maintenance windows — and bundles it into one immutable snapshot
// cached for the run's duration, per spec §5's "reference-data fetches...
// performed once, cached" rule.
package refdata

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/db"
	"github.com/pinggolf/aps-scheduler/internal/model"
)

// ProgressCallback reports which reference-data phase just completed, in
// the same shape the teacher's snapshot refresh uses for its own phases.
type ProgressCallback func(phase string, stepNum, totalSteps int, message string)

// Provider batches the four reference-data fetches WorkOrderGen and the
// earlier stages need before a run starts.
type Provider struct {
	db               *db.Queries
	progressCallback ProgressCallback
}

func NewProvider(database *db.Queries) *Provider {
	return &Provider{db: database}
}

func (p *Provider) SetProgressCallback(cb ProgressCallback) {
	p.progressCallback = cb
}

func (p *Provider) reportProgress(phase string, step, total int, message string) {
	if p.progressCallback != nil {
		p.progressCallback(phase, step, total, message)
	}
}

// Fetch loads all four reference-data tables and assembles a
// model.ReferenceSnapshot. The caller reuses the returned snapshot across
// every stage of one run; it is never refreshed mid-run.
func (p *Provider) Fetch(ctx context.Context) (model.ReferenceSnapshot, error) {
	const totalPhases = 4
	snapshot := model.ReferenceSnapshot{
		Speeds:      make(map[string]model.MachineSpeed),
		Relations:   make(map[string]model.FeederPackerRelation),
		Maintenance: make(map[string][]model.MaintenanceWindow),
	}

	p.reportProgress("speeds", 1, totalPhases, "Loading machine speeds")
	speedRows, err := p.db.ListMachineSpeeds(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("fetch machine speeds: %w", err)
	}
	for _, row := range speedRows {
		speed := model.MachineSpeed{MachineCode: row.MachineCode, ArticleNr: row.ArticleNr, Speed: row.Speed, EfficiencyRate: row.EfficiencyRate}
		snapshot.Speeds[row.MachineCode+"|"+row.ArticleNr] = speed
	}
	log.Printf("refdata: loaded %d machine speed rows", len(speedRows))

	p.reportProgress("relations", 2, totalPhases, "Loading feeder/packer relations")
	relationRows, err := p.db.ListFeederRelations(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("fetch feeder relations: %w", err)
	}
	for _, row := range relationRows {
		rel := snapshot.Relations[row.FeederCode]
		rel.FeederCode = row.FeederCode
		rel.PackerCodes = append(rel.PackerCodes, row.PackerCode)
		snapshot.Relations[row.FeederCode] = rel
	}
	log.Printf("refdata: loaded %d feeder/packer relation rows", len(relationRows))

	p.reportProgress("shifts", 3, totalPhases, "Loading shift configuration")
	shiftRows, err := p.db.ListShiftSlots(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("fetch shift config: %w", err)
	}
	for _, row := range shiftRows {
		snapshot.Shifts = append(snapshot.Shifts, model.ShiftSlot{
			Name:  row.Name,
			Start: time.Duration(row.StartSecs) * time.Second,
			End:   time.Duration(row.EndSecs) * time.Second,
		})
	}
	log.Printf("refdata: loaded %d shift slots", len(shiftRows))

	p.reportProgress("maintenance", 4, totalPhases, "Loading maintenance windows")
	windowRows, err := p.db.ListMaintenanceWindows(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return snapshot, fmt.Errorf("fetch maintenance windows: %w", err)
	}
	for _, row := range windowRows {
		snapshot.Maintenance[row.MachineCode] = append(snapshot.Maintenance[row.MachineCode], model.MaintenanceWindow{
			MachineCode:    row.MachineCode,
			MaintStartTime: row.StartTime,
			MaintEndTime:   row.EndTime,
		})
	}
	log.Printf("refdata: loaded %d maintenance windows", len(windowRows))

	return snapshot, nil
}
