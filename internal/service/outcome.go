package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/datatypes"
)

const (
	maxLabelsPerRecord = 50
	maxLabelRunes      = 120
	maxNotesRunes      = 1000
)

// Outcome 质检结果（带明细的标签联合类型）：
// FirstTimeThrough | NeedsImprovement | Modified | Rejected
type Outcome interface {
	Kind() string
	Labels() []string
	isOutcome()
}

// FirstTimeThrough 一次通过
type FirstTimeThrough struct{}

// NeedsImprovement 需改进，附缺陷列表
type NeedsImprovement struct{ Defects []string }

// Modified 已返修，附返修类型
type Modified struct{ Modifications []string }

// Rejected 拒收，附拒收原因
type Rejected struct{ Reasons []string }

func (FirstTimeThrough) Kind() string { return schema.OutcomeFirstTimeThrough }
func (NeedsImprovement) Kind() string { return schema.OutcomeNeedsImprovement }
func (Modified) Kind() string         { return schema.OutcomeModified }
func (Rejected) Kind() string         { return schema.OutcomeRejected }

func (FirstTimeThrough) Labels() []string   { return nil }
func (o NeedsImprovement) Labels() []string { return o.Defects }
func (o Modified) Labels() []string         { return o.Modifications }
func (o Rejected) Labels() []string         { return o.Reasons }

func (FirstTimeThrough) isOutcome() {}
func (NeedsImprovement) isOutcome() {}
func (Modified) isOutcome()         {}
func (Rejected) isOutcome()         {}

// RecordInput 录入请求（外部形状：三个可选明细列表）
type RecordInput struct {
	ProductionLineID int64
	InspectorID      string
	Type             string
	Timestamp        time.Time
	Defects          []string
	Modifications    []string
	RejectionReasons []string
	Notes            string
}

// ParseOutcome 将类型与明细列表转换为 Outcome；
// 只允许提供与类型匹配的那一组明细
func ParseOutcome(kind string, defects, modifications, reasons []string) (Outcome, error) {
	supplied := []struct {
		field string
		ok    bool
	}{
		{"defects", len(defects) > 0},
		{"modifications", len(modifications) > 0},
		{"rejection_reasons", len(reasons) > 0},
	}
	allow := func(field string) error {
		for _, s := range supplied {
			if s.ok && s.field != field {
				return invalid(s.field, "结果 %s 不接受该明细", kind)
			}
		}
		return nil
	}

	switch strings.TrimSpace(kind) {
	case schema.OutcomeFirstTimeThrough:
		if err := allow(""); err != nil {
			return nil, err
		}
		return FirstTimeThrough{}, nil
	case schema.OutcomeNeedsImprovement:
		if err := allow("defects"); err != nil {
			return nil, err
		}
		labels, err := cleanLabels("defects", defects)
		if err != nil {
			return nil, err
		}
		return NeedsImprovement{Defects: labels}, nil
	case schema.OutcomeModified:
		if err := allow("modifications"); err != nil {
			return nil, err
		}
		labels, err := cleanLabels("modifications", modifications)
		if err != nil {
			return nil, err
		}
		return Modified{Modifications: labels}, nil
	case schema.OutcomeRejected:
		if err := allow("rejection_reasons"); err != nil {
			return nil, err
		}
		labels, err := cleanLabels("rejection_reasons", reasons)
		if err != nil {
			return nil, err
		}
		return Rejected{Reasons: labels}, nil
	case "":
		return nil, invalid("type", "不能为空")
	default:
		return nil, invalid("type", "未知的质检结果 %q", kind)
	}
}

func cleanLabels(field string, labels []string) ([]string, error) {
	if len(labels) > maxLabelsPerRecord {
		return nil, invalid(field, "最多 %d 项", maxLabelsPerRecord)
	}
	out := make([]string, 0, len(labels))
	for i, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, invalid(fmt.Sprintf("%s[%d]", field, i), "不能为空")
		}
		if len([]rune(l)) > maxLabelRunes {
			return nil, invalid(fmt.Sprintf("%s[%d]", field, i), "长度不能超过 %d", maxLabelRunes)
		}
		out = append(out, l)
	}
	return out, nil
}

// Validate 校验录入请求并返回解析后的结果
func (in RecordInput) Validate() (Outcome, error) {
	if in.ProductionLineID <= 0 {
		return nil, invalid("production_line_id", "必须为正整数")
	}
	if strings.TrimSpace(in.InspectorID) == "" {
		return nil, invalid("inspector_id", "不能为空")
	}
	if in.Timestamp.IsZero() {
		return nil, invalid("timestamp", "不能为空")
	}
	if len([]rune(in.Notes)) > maxNotesRunes {
		return nil, invalid("notes", "长度不能超过 %d", maxNotesRunes)
	}
	return ParseOutcome(in.Type, in.Defects, in.Modifications, in.RejectionReasons)
}

// newRecord 由 Outcome 构建持久化记录；计数由明细长度派生
func newRecord(in RecordInput, outcome Outcome) (*schema.InspectionRecord, error) {
	rec := &schema.InspectionRecord{
		ProductionLineID: in.ProductionLineID,
		InspectorID:      strings.TrimSpace(in.InspectorID),
		Outcome:          outcome.Kind(),
		Notes:            strings.TrimSpace(in.Notes),
		Timestamp:        in.Timestamp.UnixMilli(),
	}

	switch o := outcome.(type) {
	case NeedsImprovement:
		raw, err := encodeLabels(o.Defects)
		if err != nil {
			return nil, err
		}
		rec.Defects, rec.DefectCount = raw, len(o.Defects)
	case Modified:
		raw, err := encodeLabels(o.Modifications)
		if err != nil {
			return nil, err
		}
		rec.Modifications, rec.ModificationCount = raw, len(o.Modifications)
	case Rejected:
		raw, err := encodeLabels(o.Reasons)
		if err != nil {
			return nil, err
		}
		rec.RejectionReasons, rec.ReasonCount = raw, len(o.Reasons)
	}
	return rec, nil
}

func encodeLabels(labels []string) (datatypes.JSON, error) {
	if labels == nil {
		labels = []string{}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("序列化明细失败: %w", err)
	}
	return datatypes.JSON(b), nil
}

// OutcomeOf 从持久化记录还原 Outcome；明细损坏时返回错误
func OutcomeOf(rec *schema.InspectionRecord) (Outcome, error) {
	labels, err := decodeLabels(rec.DetailPayload())
	if err != nil {
		return nil, fmt.Errorf("记录 %d 明细损坏: %w", rec.ID, err)
	}
	switch rec.Outcome {
	case schema.OutcomeFirstTimeThrough:
		return FirstTimeThrough{}, nil
	case schema.OutcomeNeedsImprovement:
		return NeedsImprovement{Defects: labels}, nil
	case schema.OutcomeModified:
		return Modified{Modifications: labels}, nil
	case schema.OutcomeRejected:
		return Rejected{Reasons: labels}, nil
	default:
		return nil, fmt.Errorf("记录 %d 结果未知: %q", rec.ID, rec.Outcome)
	}
}
