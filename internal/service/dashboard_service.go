package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/yuqie6/intrack/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardServiceConfig 看板配置
type DashboardServiceConfig struct {
	MaxDays     int // 单次看板最多覆盖的天数
	Workers     int // 并行计算的产线数
	DefaultDays int // 未指定日期范围时回看的天数（含今天）
}

// DashboardService 多产线、多日看板汇总
type DashboardService struct {
	daily   DailyStatsComputer
	catalog CatalogRepository
	loc     *time.Location
	cfg     DashboardServiceConfig
	now     func() time.Time
}

// NewDashboardService 创建看板服务
func NewDashboardService(daily DailyStatsComputer, catalog CatalogRepository, loc *time.Location, cfg *DashboardServiceConfig) *DashboardService {
	c := DashboardServiceConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.MaxDays <= 0 {
		c.MaxDays = 92
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.DefaultDays <= 0 {
		c.DefaultDays = 7
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{daily: daily, catalog: catalog, loc: loc, cfg: c, now: time.Now}
}

// DashboardQuery 看板查询；LineIDs 为空表示全部启用产线
type DashboardQuery struct {
	LineIDs   []int64
	StartDate string
	EndDate   string
	Days      int // StartDate/EndDate 均为空时生效
}

// LineRef 产线引用
type LineRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LineReworkRate 产线在整个窗口内的返工率（由窗口内原始计数汇总后一次性计算）
type LineReworkRate struct {
	LineID           int64   `json:"line_id"`
	Name             string  `json:"name"`
	TotalProduced    int64   `json:"total_produced"`
	NeedsImprovement int64   `json:"needs_improvement"`
	Modified         int64   `json:"modified"`
	ReworkRate       float64 `json:"rework_rate"`
}

// Dashboard 看板结果
type Dashboard struct {
	StartDate        string           `json:"start_date"`
	EndDate          string           `json:"end_date"`
	Dates            []string         `json:"dates"`
	Lines            []LineRef        `json:"lines"`
	PerDayPerLine    []DailyStats     `json:"per_day_per_line"` // 按日期、产线 ID 排序
	ReworkRateByLine []LineReworkRate `json:"rework_rate_by_line"`
}

// BuildRolledUpDashboard 对窗口内每天、每条产线计算日统计，并按产线汇总窗口返工率。
// 返工率先累加原始计数再相除，不对每日百分比取平均。
func (s *DashboardService) BuildRolledUpDashboard(ctx context.Context, q DashboardQuery) (*Dashboard, error) {
	startDate, endDate, err := s.resolveWindow(q)
	if err != nil {
		return nil, err
	}
	dates, err := repository.DatesBetween(startDate, endDate, s.loc)
	if err != nil {
		return nil, invalid("start_date/end_date", "%v", err)
	}
	if len(dates) > s.cfg.MaxDays {
		return nil, invalid("start_date/end_date", "范围不能超过 %d 天", s.cfg.MaxDays)
	}

	lines, err := s.resolveLines(ctx, q.LineIDs)
	if err != nil {
		return nil, err
	}

	// grid[i][j]: 第 i 条产线第 j 天
	grid := make([][]DailyStats, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, line := range lines {
		g.Go(func() error {
			row := make([]DailyStats, len(dates))
			for j, date := range dates {
				st, err := s.daily.ComputeDailyStats(gctx, line.ID, date)
				if err != nil {
					return fmt.Errorf("计算产线 %d 在 %s 的统计失败: %w", line.ID, date, err)
				}
				row[j] = *st
			}
			grid[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Dashboard{
		StartDate:        startDate,
		EndDate:          endDate,
		Dates:            dates,
		Lines:            lines,
		PerDayPerLine:    make([]DailyStats, 0, len(dates)*len(lines)),
		ReworkRateByLine: make([]LineReworkRate, 0, len(lines)),
	}
	for j := range dates {
		for i := range lines {
			out.PerDayPerLine = append(out.PerDayPerLine, grid[i][j])
		}
	}
	for i, line := range lines {
		out.ReworkRateByLine = append(out.ReworkRateByLine, windowRework(line, grid[i]))
	}

	slog.Debug("看板已生成", "start", startDate, "end", endDate, "lines", len(lines))
	return out, nil
}

// windowRework 汇总窗口原始计数后计算返工率
func windowRework(line LineRef, days []DailyStats) LineReworkRate {
	var total OutcomeCounts
	for _, d := range days {
		total.Merge(d.OutcomeCounts)
	}
	return LineReworkRate{
		LineID:           line.ID,
		Name:             line.Name,
		TotalProduced:    total.TotalProduced,
		NeedsImprovement: total.NeedsImprovement,
		Modified:         total.Modified,
		ReworkRate:       total.Rates().ReworkRate,
	}
}

func (s *DashboardService) resolveWindow(q DashboardQuery) (string, string, error) {
	start, end := strings.TrimSpace(q.StartDate), strings.TrimSpace(q.EndDate)
	if start == "" && end == "" {
		days := q.Days
		if days <= 0 {
			days = s.cfg.DefaultDays
		}
		if days > s.cfg.MaxDays {
			return "", "", invalid("days", "不能超过 %d", s.cfg.MaxDays)
		}
		today := s.now().In(s.loc)
		return today.AddDate(0, 0, -(days - 1)).Format("2006-01-02"), today.Format("2006-01-02"), nil
	}
	if start == "" || end == "" {
		return "", "", invalid("start_date/end_date", "需同时提供")
	}
	return start, end, nil
}

// resolveLines 未登记的产线 ID 仍参与计算（结果为 0），名称使用默认格式
func (s *DashboardService) resolveLines(ctx context.Context, ids []int64) ([]LineRef, error) {
	registered, err := s.catalog.ListLines(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(registered))
	for _, l := range registered {
		names[l.ID] = l.Name
	}

	if len(ids) == 0 {
		out := make([]LineRef, 0, len(registered))
		for _, l := range registered {
			out = append(out, LineRef{ID: l.ID, Name: l.Name})
		}
		sortLines(out)
		return out, nil
	}

	out := make([]LineRef, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, invalid("lines", "产线 ID 必须为正整数")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		name, ok := names[id]
		if !ok {
			name = fmt.Sprintf("Production Line %d", id)
		}
		out = append(out, LineRef{ID: id, Name: name})
	}
	sortLines(out)
	return out, nil
}

func sortLines(lines []LineRef) {
	slices.SortFunc(lines, func(a, b LineRef) int { return cmp.Compare(a.ID, b.ID) })
}
