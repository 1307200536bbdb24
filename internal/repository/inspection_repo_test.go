package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/yuqie6/intrack/internal/schema"
	"github.com/yuqie6/intrack/internal/testutil"
	"gorm.io/datatypes"
)

func ms(y int, m time.Month, d, h int) int64 {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC).UnixMilli()
}

func insert(t *testing.T, repo *InspectionRepository, line int64, outcome string, ts int64, detail string) *schema.InspectionRecord {
	t.Helper()
	rec := &schema.InspectionRecord{
		ProductionLineID: line,
		InspectorID:      "qc-1",
		Outcome:          outcome,
		Timestamp:        ts,
	}
	switch outcome {
	case schema.OutcomeNeedsImprovement:
		rec.Defects = datatypes.JSON(detail)
	case schema.OutcomeModified:
		rec.Modifications = datatypes.JSON(detail)
	case schema.OutcomeRejected:
		rec.RejectionReasons = datatypes.JSON(detail)
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return rec
}

func TestInspectionRepositoryCountByOutcome(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)
	ctx := context.Background()

	insert(t, repo, 1, schema.OutcomeFirstTimeThrough, ms(2024, 1, 1, 8), "")
	insert(t, repo, 1, schema.OutcomeFirstTimeThrough, ms(2024, 1, 1, 9), "")
	insert(t, repo, 1, schema.OutcomeRejected, ms(2024, 1, 1, 10), `["Wrong size"]`)
	insert(t, repo, 2, schema.OutcomeRejected, ms(2024, 1, 1, 10), `["Wrong size"]`)
	insert(t, repo, 1, schema.OutcomeModified, ms(2024, 1, 2, 10), `["Pressing"]`)

	start, end, _ := DayRange("2024-01-01", time.UTC)
	counts, err := repo.CountByOutcome(ctx, 1, start, end)
	if err != nil {
		t.Fatalf("CountByOutcome error: %v", err)
	}
	got := map[string]int64{}
	for _, c := range counts {
		got[c.Outcome] = c.Count
	}
	if got[schema.OutcomeFirstTimeThrough] != 2 || got[schema.OutcomeRejected] != 1 || got[schema.OutcomeModified] != 0 {
		t.Fatalf("counts=%v", got)
	}
}

func TestInspectionRepositoryCountByLineAndOutcome(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)

	insert(t, repo, 1, schema.OutcomeFirstTimeThrough, ms(2024, 1, 1, 8), "")
	insert(t, repo, 2, schema.OutcomeRejected, ms(2024, 1, 1, 10), `["Wrong size"]`)
	insert(t, repo, 2, schema.OutcomeRejected, ms(2024, 1, 1, 11), `["Color mismatch"]`)

	counts, err := repo.CountByLineAndOutcome(context.Background(), RecordFilter{})
	if err != nil {
		t.Fatalf("CountByLineAndOutcome error: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts=%+v, want 2 groups", counts)
	}
	if counts[0].ProductionLineID != 1 || counts[1].ProductionLineID != 2 || counts[1].Count != 2 {
		t.Fatalf("counts=%+v", counts)
	}
}

func TestInspectionRepositoryListDetailsOrder(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)

	b := insert(t, repo, 1, schema.OutcomeNeedsImprovement, ms(2024, 1, 1, 12), `["B"]`)
	a := insert(t, repo, 1, schema.OutcomeNeedsImprovement, ms(2024, 1, 1, 8), `["A"]`)
	insert(t, repo, 1, schema.OutcomeFirstTimeThrough, ms(2024, 1, 1, 9), "")

	line := int64(1)
	recs, err := repo.ListDetails(context.Background(), RecordFilter{LineID: &line, Outcome: schema.OutcomeNeedsImprovement})
	if err != nil {
		t.Fatalf("ListDetails error: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != a.ID || recs[1].ID != b.ID {
		t.Fatalf("recs=%+v", recs)
	}
	if string(recs[0].Defects) != `["A"]` {
		t.Fatalf("defects=%s", recs[0].Defects)
	}
}

func TestInspectionRepositoryPage(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)
	ctx := context.Background()

	base := ms(2024, 1, 1, 0)
	for i := 0; i < 95; i++ {
		// 每 5 条共享同一时间戳，验证 ID 兜底排序
		insert(t, repo, 1, schema.OutcomeFirstTimeThrough, base+int64(i/5)*1000, "")
	}
	insert(t, repo, 2, schema.OutcomeFirstTimeThrough, base, "")

	line := int64(1)
	filter := RecordFilter{LineID: &line}
	p1, total, err := repo.Page(ctx, filter, 1, 50)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	p2, total2, err := repo.Page(ctx, filter, 2, 50)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if total != 95 || total2 != 95 {
		t.Fatalf("total=%d/%d, want 95", total, total2)
	}
	if len(p1) != 50 || len(p2) != 45 {
		t.Fatalf("page sizes=%d/%d, want 50/45", len(p1), len(p2))
	}

	all := append(p1, p2...)
	seen := map[int64]bool{}
	for i, r := range all {
		if seen[r.ID] {
			t.Fatalf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
		if i == 0 {
			continue
		}
		prev := all[i-1]
		if prev.Timestamp < r.Timestamp || (prev.Timestamp == r.Timestamp && prev.ID < r.ID) {
			t.Fatalf("order broken at %d: prev=(%d,%d) cur=(%d,%d)", i, prev.Timestamp, prev.ID, r.Timestamp, r.ID)
		}
	}

	p3, _, err := repo.Page(ctx, filter, 3, 50)
	if err != nil || len(p3) != 0 {
		t.Fatalf("page 3 err=%v len=%d", err, len(p3))
	}

	// (page-1)*limit 溢出时不能退化为第一页
	huge, total3, err := repo.Page(ctx, filter, math.MaxInt, 50)
	if err != nil || len(huge) != 0 || total3 != 95 {
		t.Fatalf("huge page err=%v len=%d total=%d", err, len(huge), total3)
	}
}

func TestInspectionRepositoryFilters(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)
	ctx := context.Background()

	insert(t, repo, 1, schema.OutcomeRejected, ms(2024, 1, 1, 8), `["Wrong size"]`)
	insert(t, repo, 1, schema.OutcomeRejected, ms(2024, 1, 3, 8), `["Wrong size"]`)
	insert(t, repo, 1, schema.OutcomeModified, ms(2024, 1, 1, 9), `["Pressing"]`)

	start, end := ms(2024, 1, 1, 0), ms(2024, 1, 2, 0)
	recs, total, err := repo.Page(ctx, RecordFilter{Outcome: schema.OutcomeRejected, StartMs: &start, EndMs: &end}, 1, 10)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if total != 1 || len(recs) != 1 || recs[0].Outcome != schema.OutcomeRejected {
		t.Fatalf("total=%d recs=%+v", total, recs)
	}

	list, err := repo.List(ctx, RecordFilter{}, 2)
	if err != nil || len(list) != 2 {
		t.Fatalf("List err=%v len=%d", err, len(list))
	}
}

func TestInspectionRepositoryGetByID(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewInspectionRepository(db)
	rec := insert(t, repo, 3, schema.OutcomeFirstTimeThrough, ms(2024, 1, 1, 8), "")

	got, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil || got == nil || got.ProductionLineID != 3 {
		t.Fatalf("GetByID err=%v got=%+v", err, got)
	}
	missing, err := repo.GetByID(context.Background(), 9999)
	if err != nil || missing != nil {
		t.Fatalf("missing record should return nil,nil; err=%v got=%+v", err, missing)
	}
}
