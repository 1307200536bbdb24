package service

import (
	"context"

	"github.com/yuqie6/intrack/internal/eventbus"
	"github.com/yuqie6/intrack/internal/repository"
	"github.com/yuqie6/intrack/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type InspectionRepository interface {
	Create(ctx context.Context, rec *schema.InspectionRecord) error
	GetByID(ctx context.Context, id int64) (*schema.InspectionRecord, error)
	CountByOutcome(ctx context.Context, lineID int64, startMs, endMs int64) ([]repository.OutcomeCount, error)
	CountByLineAndOutcome(ctx context.Context, filter repository.RecordFilter) ([]repository.LineOutcomeCount, error)
	ListDetails(ctx context.Context, filter repository.RecordFilter) ([]schema.InspectionRecord, error)
	Page(ctx context.Context, filter repository.RecordFilter, page, limit int) ([]schema.InspectionRecord, int64, error)
	List(ctx context.Context, filter repository.RecordFilter, limit int) ([]schema.InspectionRecord, error)
}

type CatalogRepository interface {
	ListLabels(ctx context.Context, kind string) ([]schema.QualityLabel, error)
	CreateLabel(ctx context.Context, label *schema.QualityLabel) error
	ListLines(ctx context.Context) ([]schema.ProductionLine, error)
}

// EventPublisher 尽力而为的事件发布（不得阻塞或失败）
type EventPublisher interface {
	Publish(evt eventbus.Event)
}

// DailyStatsComputer 看板按日调用的统计入口
type DailyStatsComputer interface {
	ComputeDailyStats(ctx context.Context, lineID int64, date string) (*DailyStats, error)
}
