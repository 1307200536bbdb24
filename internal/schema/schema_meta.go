package schema

import "time"

// SchemaMeta 记录数据库 schema 版本与默认目录的导入版本。
// 表内仅维护单行（ID=1）。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	SeedVersion   int       `gorm:"not null;default:0"` // 已导入的默认产线/标签目录版本
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
