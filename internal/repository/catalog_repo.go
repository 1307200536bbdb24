package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yuqie6/intrack/internal/catalog"
	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateLabel 同种类下标签名已存在
var ErrDuplicateLabel = errors.New("标签已存在")

// CatalogRepository 产线与标签目录仓储
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListLabels 按种类列出启用的标签（按名称排序）
func (r *CatalogRepository) ListLabels(ctx context.Context, kind string) ([]schema.QualityLabel, error) {
	var labels []schema.QualityLabel
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND is_active = ?", kind, true).
		Order("name ASC").
		Find(&labels).Error; err != nil {
		return nil, fmt.Errorf("查询标签失败: %w", err)
	}
	return labels, nil
}

// FindLabel 按种类与名称查找（不区分大小写），不存在返回 nil
func (r *CatalogRepository) FindLabel(ctx context.Context, kind, name string) (*schema.QualityLabel, error) {
	var label schema.QualityLabel
	err := r.db.WithContext(ctx).
		Where("kind = ? AND LOWER(name) = ?", kind, strings.ToLower(name)).
		First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询标签失败: %w", err)
	}
	return &label, nil
}

// CreateLabel 新增标签；重名返回 ErrDuplicateLabel
func (r *CatalogRepository) CreateLabel(ctx context.Context, label *schema.QualityLabel) error {
	existing, err := r.FindLabel(ctx, label.Kind, label.Name)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateLabel
	}
	label.IsActive = true
	if err := r.db.WithContext(ctx).Create(label).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateLabel
		}
		return fmt.Errorf("创建标签失败: %w", err)
	}
	return nil
}

// ListLines 列出启用的产线
func (r *CatalogRepository) ListLines(ctx context.Context) ([]schema.ProductionLine, error) {
	var lines []schema.ProductionLine
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("查询产线失败: %w", err)
	}
	return lines, nil
}

// SeedCatalog 写入目录中的产线与标签，已存在的条目保持不变
func SeedCatalog(db *gorm.DB, c *catalog.Catalog) error {
	if c == nil {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if len(c.Lines) > 0 {
			lines := make([]schema.ProductionLine, 0, len(c.Lines))
			for _, l := range c.Lines {
				lines = append(lines, schema.ProductionLine{ID: l.ID, Name: l.Name, IsActive: true})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lines).Error; err != nil {
				return fmt.Errorf("导入产线失败: %w", err)
			}
		}

		var labels []schema.QualityLabel
		add := func(kind string, names []string) {
			for _, n := range names {
				labels = append(labels, schema.QualityLabel{Kind: kind, Name: n, IsActive: true})
			}
		}
		add(schema.LabelKindDefect, c.Defects)
		add(schema.LabelKindModification, c.Modifications)
		add(schema.LabelKindRejection, c.Rejections)
		if len(labels) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "name"}},
			DoNothing: true,
		}).Create(&labels).Error; err != nil {
			return fmt.Errorf("导入标签失败: %w", err)
		}
		return nil
	})
}
