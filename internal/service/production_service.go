package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/yuqie6/intrack/internal/eventbus"
	"github.com/yuqie6/intrack/internal/repository"
	"github.com/yuqie6/intrack/internal/schema"
)

// EventInspectionRecorded 录入成功后发布的事件类型
const EventInspectionRecorded = "inspection.recorded"

// ProductionServiceConfig 生产统计服务配置
type ProductionServiceConfig struct {
	Location         *time.Location // 按天切分所用时区，默认 UTC
	DefaultPageLimit int
	MaxPageLimit     int
	ExportMaxRows    int
}

// ProductionService 生产统计引擎：录入质检记录并按需计算统计。
// 自身不持有可变状态，所有数据来自注入的仓储。
type ProductionService struct {
	records   InspectionRepository
	publisher EventPublisher
	cfg       ProductionServiceConfig
}

// NewProductionService 创建生产统计服务；publisher 可为 nil
func NewProductionService(records InspectionRepository, publisher EventPublisher, cfg *ProductionServiceConfig) *ProductionService {
	c := ProductionServiceConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.MaxPageLimit <= 0 {
		c.MaxPageLimit = 500
	}
	if c.DefaultPageLimit <= 0 || c.DefaultPageLimit > c.MaxPageLimit {
		c.DefaultPageLimit = min(50, c.MaxPageLimit)
	}
	if c.ExportMaxRows <= 0 {
		c.ExportMaxRows = 10000
	}
	return &ProductionService{records: records, publisher: publisher, cfg: c}
}

// Location 返回统计时区
func (s *ProductionService) Location() *time.Location {
	return s.cfg.Location
}

// DefaultPageLimit 返回默认分页大小
func (s *ProductionService) DefaultPageLimit() int {
	return s.cfg.DefaultPageLimit
}

// RecordInspection 校验并追加一条质检记录
func (s *ProductionService) RecordInspection(ctx context.Context, in RecordInput) (*InspectionView, error) {
	outcome, err := in.Validate()
	if err != nil {
		return nil, err
	}
	rec, err := newRecord(in, outcome)
	if err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}

	slog.Info("质检记录已录入", "id", rec.ID, "line", rec.ProductionLineID, "type", rec.Outcome, "inspector", rec.InspectorID)

	if s.publisher != nil {
		s.publisher.Publish(eventbus.Event{
			Type: EventInspectionRecorded,
			Data: map[string]any{
				"id":                 rec.ID,
				"production_line_id": rec.ProductionLineID,
				"type":               rec.Outcome,
				"timestamp":          rec.Timestamp,
			},
		})
	}

	view := NewInspectionView(rec, s.cfg.Location)
	return &view, nil
}

// GetInspection 按 ID 读取单条记录
func (s *ProductionService) GetInspection(ctx context.Context, id int64) (*InspectionView, error) {
	if id <= 0 {
		return nil, invalid("id", "必须为正整数")
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	view := NewInspectionView(rec, s.cfg.Location)
	return &view, nil
}

// ComputeDailyStats 计算某产线某日（统计时区）的计数与比率。
// 无记录或产线不存在时返回全 0，而非错误。
func (s *ProductionService) ComputeDailyStats(ctx context.Context, lineID int64, date string) (*DailyStats, error) {
	if lineID <= 0 {
		return nil, invalid("production_line_id", "必须为正整数")
	}
	startMs, endMs, err := repository.DayRange(date, s.cfg.Location)
	if err != nil {
		return nil, invalid("date", "%v", err)
	}

	rows, err := s.records.CountByOutcome(ctx, lineID, startMs, endMs)
	if err != nil {
		return nil, err
	}

	var counts OutcomeCounts
	for _, row := range rows {
		if !counts.Add(row.Outcome, row.Count) {
			slog.Warn("忽略未知质检结果", "line", lineID, "date", date, "outcome", row.Outcome, "count", row.Count)
		}
	}

	stats := NewDailyStats(lineID, strings.TrimSpace(date), counts)
	return &stats, nil
}

// ComputeDefectAnalysis 统计某产线在区间内 needs_improvement 记录的缺陷频次（降序）。
// 单条记录明细损坏时跳过该记录，不影响整体结果。
func (s *ProductionService) ComputeDefectAnalysis(ctx context.Context, lineID int64, startDate, endDate string) ([]DefectFrequency, error) {
	if lineID <= 0 {
		return nil, invalid("production_line_id", "必须为正整数")
	}
	filter, err := s.windowFilter(&lineID, startDate, endDate, true)
	if err != nil {
		return nil, err
	}
	filter.Outcome = schema.OutcomeNeedsImprovement

	recs, err := s.records.ListDetails(ctx, filter)
	if err != nil {
		return nil, err
	}

	tally := newLabelTally()
	for i := range recs {
		labels, err := decodeLabels(recs[i].Defects)
		if err != nil {
			slog.Warn("跳过明细损坏的质检记录", "id", recs[i].ID, "error", err)
			continue
		}
		tally.add(labels)
	}
	return tally.result(), nil
}

// SummaryFilter 历史查询条件，全部可选，条件之间为 AND
type SummaryFilter struct {
	ProductionLineID *int64
	Type             string
	StartDate        string
	EndDate          string
}

// Pagination 分页信息
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// RecordPage 分页结果
type RecordPage struct {
	Data       []InspectionView `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ComputeProductionSummary 分页查询质检记录（检验时间倒序，ID 倒序兜底）
func (s *ProductionService) ComputeProductionSummary(ctx context.Context, f SummaryFilter, page, limit int) (*RecordPage, error) {
	if page < 1 {
		return nil, invalid("page", "必须 >= 1")
	}
	if limit == 0 {
		limit = s.cfg.DefaultPageLimit
	}
	if limit < 1 || limit > s.cfg.MaxPageLimit {
		return nil, invalid("limit", "必须在 1..%d 之间", s.cfg.MaxPageLimit)
	}
	filter, err := s.summaryFilter(f)
	if err != nil {
		return nil, err
	}

	recs, total, err := s.records.Page(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	data := make([]InspectionView, 0, len(recs))
	for i := range recs {
		data = append(data, NewInspectionView(&recs[i], s.cfg.Location))
	}
	return &RecordPage{
		Data: data,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pageCount(total, limit),
		},
	}, nil
}

func pageCount(total int64, limit int) int64 {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

// ListForExport 按历史查询条件取出全部记录（受导出上限约束）。
// 多取一条用于判断是否截断；truncated 为 true 表示仍有记录未导出。
func (s *ProductionService) ListForExport(ctx context.Context, f SummaryFilter) (views []InspectionView, truncated bool, err error) {
	filter, err := s.summaryFilter(f)
	if err != nil {
		return nil, false, err
	}
	limit := s.cfg.ExportMaxRows
	recs, err := s.records.List(ctx, filter, limit+1)
	if err != nil {
		return nil, false, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
		truncated = true
		slog.Warn("导出记录超过上限，已截断", "max_rows", limit)
	}
	views = make([]InspectionView, 0, len(recs))
	for i := range recs {
		views = append(views, NewInspectionView(&recs[i], s.cfg.Location))
	}
	return views, truncated, nil
}

// LineSummary 单产线区间汇总
type LineSummary struct {
	LineID int64 `json:"line_id"`
	OutcomeCounts
	Rates
}

// SummarizeLines 计算各产线在区间内的计数与比率（按产线 ID 升序）
func (s *ProductionService) SummarizeLines(ctx context.Context, lineID *int64, startDate, endDate string) ([]LineSummary, error) {
	filter, err := s.windowFilter(lineID, startDate, endDate, true)
	if err != nil {
		return nil, err
	}
	rows, err := s.records.CountByLineAndOutcome(ctx, filter)
	if err != nil {
		return nil, err
	}

	byLine := make(map[int64]*OutcomeCounts)
	var order []int64
	for _, row := range rows {
		c, ok := byLine[row.ProductionLineID]
		if !ok {
			c = &OutcomeCounts{}
			byLine[row.ProductionLineID] = c
			order = append(order, row.ProductionLineID)
		}
		if !c.Add(row.Outcome, row.Count) {
			slog.Warn("忽略未知质检结果", "line", row.ProductionLineID, "outcome", row.Outcome)
		}
	}

	out := make([]LineSummary, 0, len(order))
	for _, id := range order {
		c := *byLine[id]
		out = append(out, LineSummary{LineID: id, OutcomeCounts: c, Rates: c.Rates()})
	}
	return out, nil
}

// LineDefects 单产线缺陷频次
type LineDefects struct {
	LineID  int64             `json:"line_id"`
	Defects []DefectFrequency `json:"defects"`
}

// DefectTrends 区间内缺陷趋势：总体频次、按产线频次
type DefectTrends struct {
	OverallDefects     []DefectFrequency `json:"overall_defects"`
	DefectsByLine      []LineDefects     `json:"defects_by_line"`
	TotalDefectRecords int               `json:"total_defect_records"`
	SkippedRecords     int               `json:"skipped_records"`
}

// DefectTrends 计算缺陷趋势；lineID 为 nil 时覆盖全部产线
func (s *ProductionService) DefectTrends(ctx context.Context, lineID *int64, startDate, endDate string) (*DefectTrends, error) {
	filter, err := s.windowFilter(lineID, startDate, endDate, true)
	if err != nil {
		return nil, err
	}
	filter.Outcome = schema.OutcomeNeedsImprovement

	recs, err := s.records.ListDetails(ctx, filter)
	if err != nil {
		return nil, err
	}

	overall := newLabelTally()
	perLine := make(map[int64]*labelTally)
	var lineOrder []int64
	out := &DefectTrends{TotalDefectRecords: len(recs)}
	for i := range recs {
		labels, err := decodeLabels(recs[i].Defects)
		if err != nil {
			out.SkippedRecords++
			slog.Warn("跳过明细损坏的质检记录", "id", recs[i].ID, "error", err)
			continue
		}
		if len(labels) == 0 {
			continue
		}
		overall.add(labels)
		t, ok := perLine[recs[i].ProductionLineID]
		if !ok {
			t = newLabelTally()
			perLine[recs[i].ProductionLineID] = t
			lineOrder = append(lineOrder, recs[i].ProductionLineID)
		}
		t.add(labels)
	}

	slices.Sort(lineOrder)
	out.OverallDefects = overall.result()
	out.DefectsByLine = make([]LineDefects, 0, len(lineOrder))
	for _, id := range lineOrder {
		out.DefectsByLine = append(out.DefectsByLine, LineDefects{LineID: id, Defects: perLine[id].result()})
	}
	return out, nil
}

func (s *ProductionService) summaryFilter(f SummaryFilter) (repository.RecordFilter, error) {
	if f.ProductionLineID != nil && *f.ProductionLineID <= 0 {
		return repository.RecordFilter{}, invalid("production_line_id", "必须为正整数")
	}
	filter, err := s.windowFilter(f.ProductionLineID, f.StartDate, f.EndDate, false)
	if err != nil {
		return repository.RecordFilter{}, err
	}
	if t := strings.TrimSpace(f.Type); t != "" {
		if !slices.Contains(schema.Outcomes(), t) {
			return repository.RecordFilter{}, invalid("type", "未知的质检结果 %q", t)
		}
		filter.Outcome = t
	}
	return filter, nil
}

// windowFilter 解析时间窗口；required 时两端都必须提供
func (s *ProductionService) windowFilter(lineID *int64, startDate, endDate string, required bool) (repository.RecordFilter, error) {
	filter := repository.RecordFilter{LineID: lineID}
	startDate, endDate = strings.TrimSpace(startDate), strings.TrimSpace(endDate)
	if required && (startDate == "" || endDate == "") {
		return filter, invalid("start_date/end_date", "不能为空")
	}
	if startDate != "" {
		v, err := repository.ParseBound(startDate, s.cfg.Location, false)
		if err != nil {
			return filter, invalid("start_date", "%v", err)
		}
		filter.StartMs = &v
	}
	if endDate != "" {
		v, err := repository.ParseBound(endDate, s.cfg.Location, true)
		if err != nil {
			return filter, invalid("end_date", "%v", err)
		}
		filter.EndMs = &v
	}
	if filter.StartMs != nil && filter.EndMs != nil && *filter.EndMs < *filter.StartMs {
		return filter, invalid("end_date", "早于 start_date")
	}
	return filter, nil
}
