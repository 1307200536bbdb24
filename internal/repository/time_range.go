package repository

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// DayRange 将 YYYY-MM-DD 解析为 loc 时区下的毫秒时间戳 [start, end]（闭区间）。
// 使用日历日加一而非固定 24h，夏令时切换日同样正确。
func DayRange(date string, loc *time.Location) (startMs int64, endMs int64, err error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	start := t.UnixMilli()
	end := t.AddDate(0, 0, 1).UnixMilli() - 1
	return start, end, nil
}

// ParseBound 解析区间端点：YYYY-MM-DD 按 loc 取当天起点（isEnd 时取当天终点），
// 其余按 RFC3339 解析。
func ParseBound(value string, loc *time.Location, isEnd bool) (int64, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("时间参数为空")
	}
	if len(v) == len(dateLayout) {
		start, end, err := DayRange(v, loc)
		if err != nil {
			return 0, err
		}
		if isEnd {
			return end, nil
		}
		return start, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return 0, fmt.Errorf("解析时间失败: %w", err)
	}
	return t.UnixMilli(), nil
}

// DatesBetween 返回 [start, end] 内的全部日期（YYYY-MM-DD，含两端）
func DatesBetween(start, end string, loc *time.Location) ([]string, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := time.ParseInLocation(dateLayout, strings.TrimSpace(start), loc)
	if err != nil {
		return nil, fmt.Errorf("解析开始日期失败: %w", err)
	}
	e, err := time.ParseInLocation(dateLayout, strings.TrimSpace(end), loc)
	if err != nil {
		return nil, fmt.Errorf("解析结束日期失败: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("结束日期早于开始日期")
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(dateLayout))
	}
	return out, nil
}
