package dto

// 注意：本包用于承载“对外契约”的 DTO（与前端/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

// RecordRequestDTO 录入质检记录
type RecordRequestDTO struct {
	ProductionLineID int64    `json:"production_line_id"`
	InspectorID      string   `json:"inspector_id"`
	Type             string   `json:"type"`
	Timestamp        string   `json:"timestamp,omitempty"` // RFC3339，为空取服务器当前时间
	Defects          []string `json:"defects,omitempty"`
	Modifications    []string `json:"modifications,omitempty"`
	RejectionReasons []string `json:"rejection_reasons,omitempty"`
	Notes            string   `json:"notes,omitempty"`
}

// AddLabelRequestDTO 新增质检标签
type AddLabelRequestDTO struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type LabelDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type LineDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ErrorDTO 统一错误响应
type ErrorDTO struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
