package service

import (
	"log/slog"
	"time"

	"github.com/yuqie6/intrack/internal/schema"
)

// InspectionView 对外展示的质检记录（明细已解码）
type InspectionView struct {
	ID                int64    `json:"id"`
	ProductionLineID  int64    `json:"production_line_id"`
	InspectorID       string   `json:"inspector_id"`
	Type              string   `json:"type"`
	Defects           []string `json:"defects"`
	DefectCount       int      `json:"defect_count"`
	Modifications     []string `json:"modifications"`
	ModificationCount int      `json:"modification_count"`
	RejectionReasons  []string `json:"rejection_reasons"`
	ReasonCount       int      `json:"reason_count"`
	Notes             string   `json:"notes,omitempty"`
	Timestamp         string   `json:"timestamp"`
	TimestampMs       int64    `json:"timestamp_ms"`
	CreatedAt         string   `json:"created_at"`
	DetailCorrupt     bool     `json:"detail_corrupt,omitempty"`
}

// NewInspectionView 构建展示对象；明细损坏时置空并标记，不影响其余字段
func NewInspectionView(rec *schema.InspectionRecord, loc *time.Location) InspectionView {
	if loc == nil {
		loc = time.UTC
	}
	v := InspectionView{
		ID:                rec.ID,
		ProductionLineID:  rec.ProductionLineID,
		InspectorID:       rec.InspectorID,
		Type:              rec.Outcome,
		Defects:           []string{},
		DefectCount:       rec.DefectCount,
		Modifications:     []string{},
		ModificationCount: rec.ModificationCount,
		RejectionReasons:  []string{},
		ReasonCount:       rec.ReasonCount,
		Notes:             rec.Notes,
		Timestamp:         FormatTimestampMs(rec.Timestamp, loc),
		TimestampMs:       rec.Timestamp,
	}
	if !rec.CreatedAt.IsZero() {
		v.CreatedAt = rec.CreatedAt.In(loc).Format(time.RFC3339)
	}

	outcome, err := OutcomeOf(rec)
	if err != nil {
		slog.Warn("质检记录明细无法解析", "id", rec.ID, "error", err)
		v.DetailCorrupt = true
		return v
	}
	switch o := outcome.(type) {
	case NeedsImprovement:
		v.Defects = nonNil(o.Defects)
	case Modified:
		v.Modifications = nonNil(o.Modifications)
	case Rejected:
		v.RejectionReasons = nonNil(o.Reasons)
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
