package schema

import "time"

// 标签种类
const (
	LabelKindDefect       = "defect"
	LabelKindModification = "modification"
	LabelKindRejection    = "rejection"
)

// ValidLabelKind 判断标签种类是否合法
func ValidLabelKind(kind string) bool {
	switch kind {
	case LabelKindDefect, LabelKindModification, LabelKindRejection:
		return true
	}
	return false
}

// QualityLabel 可扩展的质检标签（缺陷类别/返修类型/拒收原因）
type QualityLabel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      string    `gorm:"size:20;not null;uniqueIndex:uniq_label_kind_name" json:"kind"`
	Name      string    `gorm:"size:120;not null;uniqueIndex:uniq_label_kind_name" json:"name"`
	Category  string    `gorm:"size:120" json:"category,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QualityLabel) TableName() string {
	return "quality_labels"
}

// ProductionLine 产线
type ProductionLine struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProductionLine) TableName() string {
	return "production_lines"
}
