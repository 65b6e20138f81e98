package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

// Preprocessor normalizes raw decade-plan rows into PipelineRecords, per
// spec §4.1: drop invalid rows, canonicalize machine-code lists, coerce
// quantities, and count what happened.
type Preprocessor struct {
	// CheckpointSize is how many rows Preprocess processes between
	// cancellation checks, per spec §5's ~100-record batch boundary rule.
	CheckpointSize int
}

func NewPreprocessor() *Preprocessor { return &Preprocessor{CheckpointSize: 100} }

func (p *Preprocessor) Name() string { return "PREPROCESS" }

// ProcessRows is the stage entry point: it takes raw DecadePlanRows rather
// than PipelineRecords, since Preprocess is the stage that constructs the
// pipeline's record type in the first place.
func (p *Preprocessor) ProcessRows(ctx context.Context, rows []model.DecadePlanRow) StageResult {
	start := time.Now()
	result := StageResult{Records: make([]model.PipelineRecord, 0, len(rows))}
	checkpoint := p.CheckpointSize
	if checkpoint <= 0 {
		checkpoint = 100
	}

	for i, row := range rows {
		if i > 0 && i%checkpoint == 0 && ctx.Err() != nil {
			result.Metrics.Status = StatusCancelled
			break
		}

		rec, stageErr, ok := p.normalize(row)
		result.Metrics.ProcessedRecords++
		if !ok {
			result.Metrics.Dropped++
			result.Errors = append(result.Errors, stageErr)
			continue
		}
		if stageErr.Kind != "" {
			result.Metrics.Warned++
			result.Errors = append(result.Errors, stageErr)
		}
		result.Metrics.Valid++
		result.Records = append(result.Records, rec)
	}

	result.Records = stamp(result.Records)
	finish(&result.Metrics, start)
	return result
}

// normalize validates and converts a single row. ok=false means the row is
// dropped; a non-empty stageErr.Kind with ok=true means the row survived
// but something about it was noteworthy (e.g. negative quantity clamped).
func (p *Preprocessor) normalize(row model.DecadePlanRow) (model.PipelineRecord, StageError, bool) {
	if strings.TrimSpace(row.ArticleNr) == "" {
		return model.PipelineRecord{}, p.dropErr(row.WorkOrderNr, "article_nr is empty"), false
	}
	if !row.PlannedEnd.After(row.PlannedStart) {
		return model.PipelineRecord{}, p.dropErr(row.WorkOrderNr, "planned_end must be after planned_start"), false
	}
	if row.FinalQuantity < 0 {
		return model.PipelineRecord{}, p.dropErr(row.WorkOrderNr, "final_quantity is negative"), false
	}

	makerCodes := splitCodes(row.MakerCodes)
	feederCodes := splitCodes(row.FeederCodes)

	quantityTotal := row.QuantityTotal
	var warn StageError
	if quantityTotal < 0 {
		quantityTotal = 0
		warn = StageError{Kind: KindValidation, Stage: p.Name(), WorkOrderNr: row.WorkOrderNr, Message: "quantity_total is negative, clamped to 0"}
	}

	rec := model.PipelineRecord{
		WorkOrderNr:      row.WorkOrderNr,
		ArticleNr:        row.ArticleNr,
		PackageType:      row.PackageType,
		Specification:    row.Specification,
		QuantityTotal:    quantityTotal,
		FinalQuantity:    row.FinalQuantity,
		MakerCodes:       makerCodes,
		FeederCodes:      feederCodes,
		PlannedStart:     row.PlannedStart,
		PlannedEnd:       row.PlannedEnd,
		ProductionUnit:   row.ProductionUnit,
		ValidationStatus: row.ValidationStatus,
		Flags:            row.Flags,
	}
	return rec, warn, true
}

func (p *Preprocessor) dropErr(workOrderNr, message string) StageError {
	return StageError{Kind: KindValidation, Stage: p.Name(), WorkOrderNr: workOrderNr, Message: message}
}

// splitCodes normalizes a comma- or semicolon-separated machine-code list
// into an ordered, de-duplicated sequence, preserving first-seen order.
func splitCodes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		code := strings.TrimSpace(f)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}
