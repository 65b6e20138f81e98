// Package mes converts pipeline work orders into the wire format the
// Manufacturing Execution System dispatch API expects, per spec §6.
package mes

import (
	"strconv"
	"strings"

	"github.com/pinggolf/aps-scheduler/internal/model"
)

const (
	unitHWS = "公斤" // kilograms — feeder orders are weighed
	unitHJB = "箱"   // boxes — packer orders are counted
)

// InputBatchWire is the HJB-only nested block linking a packing order back
// to its upstream feeding order.
type InputBatchWire struct {
	InputPlanID       string `json:"input_plan_id"`
	InputBatchCode    string `json:"input_batch_code"`
	InputQuantity     int    `json:"input_quantity"`
	BatchSequence     int    `json:"batch_sequence"`
	IsWholeBatch      bool   `json:"is_whole_batch"`
	IsMainChannel     bool   `json:"is_main_channel"`
	IsDeleted         bool   `json:"is_deleted"`
	IsLastOne         bool   `json:"is_last_one"`
	InputMaterialCode string `json:"input_material_code"`
	InputBOMRevision  string `json:"input_bom_revision"`
	Tiled             bool   `json:"tiled"`
}

// FeedingOrderWire is the HWS work order as dispatched to MES. Quantity is
// a string (may be empty) — the typing asymmetry with PackingOrderWire's
// integer quantity is intentional and preserved from the wire contract.
type FeedingOrderWire struct {
	PlanID         string `json:"plan_id"`
	ProductionLine string `json:"production_line"`
	MaterialCode   string `json:"material_code"`
	BatchCode      string `json:"batch_code"`
	Quantity       string `json:"quantity"`
	PlanStartTime  string `json:"plan_start_time"`
	PlanEndTime    string `json:"plan_end_time"`
	Sequence       int    `json:"sequence"`
	Shift          string `json:"shift"`
	IsVaccum       bool   `json:"is_vaccum"`
	IsSH93         bool   `json:"is_sh93"`
	IsHDT          bool   `json:"is_hdt"`
	IsFlavor       bool   `json:"is_flavor"`
	IsOutsourcing  bool   `json:"is_outsourcing"`
	IsBackup       bool   `json:"is_backup"`
	Unit           string `json:"unit"`
	PlanDate       string `json:"plan_date"`
}

// PackingOrderWire is the HJB work order as dispatched to MES.
type PackingOrderWire struct {
	PlanID         string          `json:"plan_id"`
	ProductionLine string          `json:"production_line"`
	MaterialCode   string          `json:"material_code"`
	BatchCode      string          `json:"batch_code"`
	Quantity       int             `json:"quantity"`
	PlanStartTime  string          `json:"plan_start_time"`
	PlanEndTime    string          `json:"plan_end_time"`
	Sequence       int             `json:"sequence"`
	Shift          string          `json:"shift"`
	IsVaccum       bool            `json:"is_vaccum"`
	IsSH93         bool            `json:"is_sh93"`
	IsHDT          bool            `json:"is_hdt"`
	IsFlavor       bool            `json:"is_flavor"`
	IsOutsourcing  bool            `json:"is_outsourcing"`
	IsBackup       bool            `json:"is_backup"`
	Unit           string          `json:"unit"`
	PlanDate       string          `json:"plan_date"`
	InputBatch     InputBatchWire  `json:"InputBatch"`
}

const isoLocal = "2006-01-02T15:04:05"
const isoDate = "2006-01-02"

// ToFeedingWire converts a FeedingOrder into its MES wire representation.
func ToFeedingWire(f model.FeedingOrder) FeedingOrderWire {
	qty := ""
	if f.Quantity != nil {
		qty = strconv.Itoa(*f.Quantity)
	}
	return FeedingOrderWire{
		PlanID:         f.PlanID,
		ProductionLine: f.ProductionLine,
		MaterialCode:   f.MaterialCode,
		BatchCode:      f.BatchCode,
		Quantity:       qty,
		PlanStartTime:  f.PlanStartTime.Format(isoLocal),
		PlanEndTime:    f.PlanEndTime.Format(isoLocal),
		Sequence:       f.Sequence,
		Shift:          f.Shift,
		IsVaccum:       f.Flags.IsVaccum,
		IsSH93:         f.Flags.IsSH93,
		IsHDT:          f.Flags.IsHDT,
		IsFlavor:       f.Flags.IsFlavor,
		IsOutsourcing:  f.IsOutsourcing,
		IsBackup:       f.IsBackup,
		Unit:           unitHWS,
		PlanDate:       f.PlanDate.Format(isoDate),
	}
}

// ToPackingWire converts a PackingOrder into its MES wire representation.
func ToPackingWire(p model.PackingOrder) PackingOrderWire {
	return PackingOrderWire{
		PlanID:         p.PlanID,
		ProductionLine: p.ProductionLine,
		MaterialCode:   p.MaterialCode,
		BatchCode:      p.BatchCode,
		Quantity:       p.Quantity,
		PlanStartTime:  p.PlanStartTime.Format(isoLocal),
		PlanEndTime:    p.PlanEndTime.Format(isoLocal),
		Sequence:       p.Sequence,
		Shift:          p.Shift,
		IsVaccum:       p.Flags.IsVaccum,
		IsSH93:         p.Flags.IsSH93,
		IsHDT:          p.Flags.IsHDT,
		IsFlavor:       p.Flags.IsFlavor,
		IsOutsourcing:  p.IsOutsourcing,
		IsBackup:       p.IsBackup,
		Unit:           unitHJB,
		PlanDate:       p.PlanDate.Format(isoDate),
		InputBatch: InputBatchWire{
			InputPlanID:       p.InputBatch.InputPlanID,
			InputBatchCode:    p.InputBatch.InputBatchCode,
			InputQuantity:     p.InputBatch.InputQuantity,
			BatchSequence:     p.InputBatch.BatchSequence,
			IsWholeBatch:      p.InputBatch.IsWholeBatch,
			IsMainChannel:     p.InputBatch.IsMainChannel,
			IsDeleted:         p.InputBatch.IsDeleted,
			IsLastOne:         p.InputBatch.IsLastOne,
			InputMaterialCode: p.InputBatch.InputMaterialCode,
			InputBOMRevision:  p.InputBatch.InputBOMRevision,
			Tiled:             p.InputBatch.Tiled,
		},
	}
}

// ProductionLineJoin joins feeder codes the way FeedingOrder.ProductionLine
// expects: comma-separated, in sync-group order.
func ProductionLineJoin(codes []string) string {
	return strings.Join(codes, ",")
}
