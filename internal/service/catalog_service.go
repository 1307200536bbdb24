package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yuqie6/intrack/internal/repository"
	"github.com/yuqie6/intrack/internal/schema"
)

// CatalogService 产线与质检标签目录。标签由用户在运行时扩展，没有固定枚举。
type CatalogService struct {
	repo CatalogRepository
}

// NewCatalogService 创建目录服务
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// ListLabels 列出某种类的启用标签
func (s *CatalogService) ListLabels(ctx context.Context, kind string) ([]schema.QualityLabel, error) {
	if !schema.ValidLabelKind(kind) {
		return nil, invalid("kind", "未知的标签种类 %q", kind)
	}
	return s.repo.ListLabels(ctx, kind)
}

// AddLabel 新增标签；同种类下重名（忽略大小写）返回 ErrLabelExists
func (s *CatalogService) AddLabel(ctx context.Context, kind, name, category string) (*schema.QualityLabel, error) {
	if !schema.ValidLabelKind(kind) {
		return nil, invalid("kind", "未知的标签种类 %q", kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "不能为空")
	}
	if len([]rune(name)) > maxLabelRunes {
		return nil, invalid("name", "长度不能超过 %d", maxLabelRunes)
	}

	label := &schema.QualityLabel{Kind: kind, Name: name, Category: strings.TrimSpace(category)}
	if err := s.repo.CreateLabel(ctx, label); err != nil {
		if errors.Is(err, repository.ErrDuplicateLabel) {
			return nil, ErrLabelExists
		}
		return nil, err
	}
	slog.Info("新增质检标签", "kind", kind, "name", name)
	return label, nil
}

// ListLines 列出启用的产线
func (s *CatalogService) ListLines(ctx context.Context) ([]schema.ProductionLine, error) {
	return s.repo.ListLines(ctx)
}
