package service

import "time"

// FormatTimestampMs 将毫秒时间戳格式化为 loc 时区的 RFC3339
func FormatTimestampMs(ms int64, loc *time.Location) string {
	if ms <= 0 {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format(time.RFC3339)
}
