package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yuqie6/intrack/internal/catalog"
	"github.com/yuqie6/intrack/internal/schema"
	"github.com/yuqie6/intrack/internal/testutil"
	"gorm.io/gorm"
)

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	if err := SeedCatalog(db, c); err != nil {
		t.Fatalf("SeedCatalog error: %v", err)
	}
	if err := SeedCatalog(db, c); err != nil {
		t.Fatalf("second SeedCatalog error: %v", err)
	}

	repo := NewCatalogRepository(db)
	ctx := context.Background()
	lines, err := repo.ListLines(ctx)
	if err != nil || len(lines) != 5 {
		t.Fatalf("ListLines err=%v len=%d", err, len(lines))
	}
	defects, err := repo.ListLabels(ctx, schema.LabelKindDefect)
	if err != nil || len(defects) != 20 {
		t.Fatalf("ListLabels err=%v len=%d", err, len(defects))
	}
	if defects[0].Name != "Broken stitch" {
		t.Fatalf("labels should be sorted by name, first=%q", defects[0].Name)
	}
}

func TestCatalogRepositoryCreateLabel(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	label := &schema.QualityLabel{Kind: schema.LabelKindDefect, Name: "Shade variation", Category: "fabric"}
	if err := repo.CreateLabel(ctx, label); err != nil {
		t.Fatalf("CreateLabel error: %v", err)
	}
	if label.ID == 0 || !label.IsActive {
		t.Fatalf("label=%+v", label)
	}

	dup := &schema.QualityLabel{Kind: schema.LabelKindDefect, Name: "shade VARIATION"}
	if err := repo.CreateLabel(ctx, dup); !errors.Is(err, ErrDuplicateLabel) {
		t.Fatalf("err=%v, want ErrDuplicateLabel", err)
	}

	// 不同种类允许同名
	other := &schema.QualityLabel{Kind: schema.LabelKindRejection, Name: "Shade variation"}
	if err := repo.CreateLabel(ctx, other); err != nil {
		t.Fatalf("CreateLabel other kind error: %v", err)
	}
}

func TestCatalogRepositoryCreateLabelConcurrentInsert(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewCatalogRepository(db)
	ctx := context.Background()

	// 查重之后、写入之前另一请求抢先写入同名标签
	var once sync.Once
	err := db.Callback().Query().After("gorm:query").Register("test:concurrent_insert", func(tx *gorm.DB) {
		once.Do(func() {
			other := &schema.QualityLabel{Kind: schema.LabelKindDefect, Name: "Puckering", IsActive: true}
			if err := db.Session(&gorm.Session{NewDB: true}).Create(other).Error; err != nil {
				t.Errorf("concurrent insert error: %v", err)
			}
		})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	label := &schema.QualityLabel{Kind: schema.LabelKindDefect, Name: "Puckering"}
	if err := repo.CreateLabel(ctx, label); !errors.Is(err, ErrDuplicateLabel) {
		t.Fatalf("err=%v, want ErrDuplicateLabel", err)
	}
}
