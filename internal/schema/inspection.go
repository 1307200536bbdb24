package schema

import (
	"time"

	"gorm.io/datatypes"
)

// 质检结果（持久化取值）
const (
	OutcomeFirstTimeThrough = "first_time_through"
	OutcomeNeedsImprovement = "needs_improvement"
	OutcomeModified         = "modified"
	OutcomeRejected         = "rejected"
)

// Outcomes 按固定顺序返回全部质检结果
func Outcomes() []string {
	return []string{OutcomeFirstTimeThrough, OutcomeNeedsImprovement, OutcomeModified, OutcomeRejected}
}

// InspectionRecord 单件质检记录
// 只追加，创建后不再修改
type InspectionRecord struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductionLineID  int64          `gorm:"not null;index;index:idx_line_ts,priority:1;index:idx_line_outcome,priority:1" json:"production_line_id"`
	InspectorID       string         `gorm:"size:64;not null;index" json:"inspector_id"`
	Outcome           string         `gorm:"size:32;not null;index;index:idx_line_outcome,priority:2" json:"type"`
	Defects           datatypes.JSON `json:"defects"`           // 仅 needs_improvement
	DefectCount       int            `gorm:"default:0" json:"defect_count"`
	Modifications     datatypes.JSON `json:"modifications"`     // 仅 modified
	ModificationCount int            `gorm:"default:0" json:"modification_count"`
	RejectionReasons  datatypes.JSON `json:"rejection_reasons"` // 仅 rejected
	ReasonCount       int            `gorm:"default:0" json:"reason_count"`
	Notes             string         `gorm:"type:text" json:"notes,omitempty"`
	Timestamp         int64          `gorm:"not null;index;index:idx_line_ts,priority:2" json:"timestamp"` // 检验时刻 (毫秒)
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (InspectionRecord) TableName() string {
	return "inspection_records"
}

// DetailPayload 返回与结果对应的明细原始 JSON
func (r *InspectionRecord) DetailPayload() datatypes.JSON {
	switch r.Outcome {
	case OutcomeNeedsImprovement:
		return r.Defects
	case OutcomeModified:
		return r.Modifications
	case OutcomeRejected:
		return r.RejectionReasons
	default:
		return nil
	}
}
