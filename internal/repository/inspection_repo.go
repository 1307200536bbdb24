package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/gorm"
)

// RecordFilter 质检记录查询条件（各条件之间为 AND）
type RecordFilter struct {
	LineID  *int64
	Outcome string
	StartMs *int64 // 闭区间
	EndMs   *int64
}

func (f RecordFilter) apply(q *gorm.DB) *gorm.DB {
	if f.LineID != nil {
		q = q.Where("production_line_id = ?", *f.LineID)
	}
	if f.Outcome != "" {
		q = q.Where("outcome = ?", f.Outcome)
	}
	if f.StartMs != nil {
		q = q.Where("timestamp >= ?", *f.StartMs)
	}
	if f.EndMs != nil {
		q = q.Where("timestamp <= ?", *f.EndMs)
	}
	return q
}

// OutcomeCount 按结果分组的计数
type OutcomeCount struct {
	Outcome string
	Count   int64
}

// LineOutcomeCount 按产线+结果分组的计数
type LineOutcomeCount struct {
	ProductionLineID int64
	Outcome          string
	Count            int64
}

// InspectionRepository 质检记录仓储
type InspectionRepository struct {
	db *gorm.DB
}

// NewInspectionRepository 创建质检记录仓储
func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create 写入一条质检记录
func (r *InspectionRepository) Create(ctx context.Context, rec *schema.InspectionRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("创建质检记录失败: %w", err)
	}
	slog.Debug("质检记录已保存", "id", rec.ID, "line", rec.ProductionLineID, "outcome", rec.Outcome)
	return nil
}

// GetByID 根据 ID 查询
func (r *InspectionRepository) GetByID(ctx context.Context, id int64) (*schema.InspectionRecord, error) {
	var rec schema.InspectionRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询质检记录失败: %w", err)
	}
	return &rec, nil
}

// CountByOutcome 统计某产线在时间区间内各结果的数量
func (r *InspectionRepository) CountByOutcome(ctx context.Context, lineID int64, startMs, endMs int64) ([]OutcomeCount, error) {
	var counts []OutcomeCount
	if err := r.db.WithContext(ctx).
		Model(&schema.InspectionRecord{}).
		Select("outcome, COUNT(*) as count").
		Where("production_line_id = ? AND timestamp >= ? AND timestamp <= ?", lineID, startMs, endMs).
		Group("outcome").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("统计质检结果失败: %w", err)
	}
	return counts, nil
}

// CountByLineAndOutcome 按产线与结果分组统计
func (r *InspectionRepository) CountByLineAndOutcome(ctx context.Context, filter RecordFilter) ([]LineOutcomeCount, error) {
	var counts []LineOutcomeCount
	q := filter.apply(r.db.WithContext(ctx).Model(&schema.InspectionRecord{}))
	if err := q.
		Select("production_line_id, outcome, COUNT(*) as count").
		Group("production_line_id, outcome").
		Order("production_line_id ASC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("统计产线质检结果失败: %w", err)
	}
	return counts, nil
}

// ListDetails 查询明细列用于标签统计（按检验时间、ID 升序，保证发现顺序稳定）
func (r *InspectionRepository) ListDetails(ctx context.Context, filter RecordFilter) ([]schema.InspectionRecord, error) {
	var recs []schema.InspectionRecord
	q := filter.apply(r.db.WithContext(ctx).Model(&schema.InspectionRecord{}))
	if err := q.
		Select("id, production_line_id, outcome, defects, modifications, rejection_reasons, timestamp").
		Order("timestamp ASC, id ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("查询质检明细失败: %w", err)
	}
	return recs, nil
}

// Page 分页查询（按检验时间倒序，ID 倒序兜底）。
// 计数与取页在同一只读事务内执行，total 与本页数据来自同一快照。
func (r *InspectionRepository) Page(ctx context.Context, filter RecordFilter, page, limit int) ([]schema.InspectionRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return nil, 0, fmt.Errorf("limit 必须大于 0")
	}

	var (
		recs  []schema.InspectionRecord
		total int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := filter.apply(tx.Model(&schema.InspectionRecord{})).Count(&total).Error; err != nil {
			return fmt.Errorf("统计质检记录失败: %w", err)
		}
		if total == 0 {
			return nil
		}
		// 页号过大时 (page-1)*limit 会溢出，按 int64 计算后超出总数直接返回空页
		offset := int64(page-1) * int64(limit)
		if offset/int64(limit) != int64(page-1) || offset >= total {
			return nil
		}
		if err := filter.apply(tx.Model(&schema.InspectionRecord{})).
			Order("timestamp DESC, id DESC").
			Limit(limit).
			Offset(int(offset)).
			Find(&recs).Error; err != nil {
			return fmt.Errorf("查询质检记录失败: %w", err)
		}
		return nil
	}, r.snapshotTxOptions())
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// List 不分页查询（导出用），limit<=0 表示不限制
func (r *InspectionRepository) List(ctx context.Context, filter RecordFilter, limit int) ([]schema.InspectionRecord, error) {
	var recs []schema.InspectionRecord
	q := filter.apply(r.db.WithContext(ctx).Model(&schema.InspectionRecord{})).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("查询质检记录失败: %w", err)
	}
	return recs, nil
}

// snapshotTxOptions Postgres 使用可重复读只读事务；SQLite 的延迟事务在首次读取时即固定快照（WAL）
func (r *InspectionRepository) snapshotTxOptions() *sql.TxOptions {
	if r.db.Dialector.Name() == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}
