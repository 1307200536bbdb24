package service

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/datatypes"
)

// OutcomeCounts 各质检结果计数；四项之和恒等于 TotalProduced
type OutcomeCounts struct {
	TotalProduced    int64 `json:"total_produced"`
	FirstTimeThrough int64 `json:"first_time_through"`
	NeedsImprovement int64 `json:"needs_improvement"`
	Modified         int64 `json:"modified"`
	Rejected         int64 `json:"rejected"`
}

// Add 累加某结果的数量，未知结果返回 false 且不计入总数
func (c *OutcomeCounts) Add(outcome string, n int64) bool {
	if n <= 0 {
		return true
	}
	switch outcome {
	case schema.OutcomeFirstTimeThrough:
		c.FirstTimeThrough += n
	case schema.OutcomeNeedsImprovement:
		c.NeedsImprovement += n
	case schema.OutcomeModified:
		c.Modified += n
	case schema.OutcomeRejected:
		c.Rejected += n
	default:
		return false
	}
	c.TotalProduced += n
	return true
}

// Merge 合并另一组原始计数
func (c *OutcomeCounts) Merge(o OutcomeCounts) {
	c.TotalProduced += o.TotalProduced
	c.FirstTimeThrough += o.FirstTimeThrough
	c.NeedsImprovement += o.NeedsImprovement
	c.Modified += o.Modified
	c.Rejected += o.Rejected
}

// Rates 四项比率（百分比，保留两位小数）
type Rates struct {
	EfficiencyRate float64 `json:"efficiency_rate"`
	DefectRate     float64 `json:"defect_rate"`
	RejectionRate  float64 `json:"rejection_rate"`
	ReworkRate     float64 `json:"rework_rate"`
}

// Rates 由原始计数计算比率；总数为 0 时全部为 0
func (c OutcomeCounts) Rates() Rates {
	return Rates{
		EfficiencyRate: percent(c.FirstTimeThrough, c.TotalProduced),
		DefectRate:     percent(c.NeedsImprovement+c.Rejected, c.TotalProduced),
		RejectionRate:  percent(c.Rejected, c.TotalProduced),
		ReworkRate:     percent(c.NeedsImprovement+c.Modified, c.TotalProduced),
	}
}

func percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DailyStats 单产线单日统计
type DailyStats struct {
	LineID int64  `json:"line_id"`
	Date   string `json:"date"`
	OutcomeCounts
	Rates
}

// NewDailyStats 由计数构建日统计
func NewDailyStats(lineID int64, date string, counts OutcomeCounts) DailyStats {
	return DailyStats{
		LineID:        lineID,
		Date:          date,
		OutcomeCounts: counts,
		Rates:         counts.Rates(),
	}
}

// DefectFrequency 标签出现次数
type DefectFrequency struct {
	Defect string `json:"defect"`
	Count  int64  `json:"count"`
}

// labelTally 按发现顺序记录标签计数
type labelTally struct {
	order  []string
	counts map[string]int64
}

func newLabelTally() *labelTally {
	return &labelTally{counts: make(map[string]int64)}
}

func (t *labelTally) add(labels []string) {
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := t.counts[l]; !ok {
			t.order = append(t.order, l)
		}
		t.counts[l]++
	}
}

// result 按次数降序；次数相同保持发现顺序
func (t *labelTally) result() []DefectFrequency {
	out := make([]DefectFrequency, 0, len(t.order))
	for _, l := range t.order {
		out = append(out, DefectFrequency{Defect: l, Count: t.counts[l]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// TallyLabels 统计多组标签的出现次数
func TallyLabels(groups ...[]string) []DefectFrequency {
	t := newLabelTally()
	for _, g := range groups {
		t.add(g)
	}
	return t.result()
}

// decodeLabels 解析明细 JSON；空值/null 视为空列表，非字符串数组视为损坏
func decodeLabels(raw datatypes.JSON) ([]string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(s), &labels); err != nil {
		return nil, err
	}
	return labels, nil
}
