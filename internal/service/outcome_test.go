package service

import (
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/intrack/internal/schema"
	"gorm.io/datatypes"
)

func TestParseOutcome(t *testing.T) {
	cases := []struct {
		name          string
		kind          string
		defects       []string
		modifications []string
		reasons       []string
		wantKind      string
		wantErr       bool
	}{
		{name: "ftt", kind: schema.OutcomeFirstTimeThrough, wantKind: schema.OutcomeFirstTimeThrough},
		{name: "ftt with detail", kind: schema.OutcomeFirstTimeThrough, defects: []string{"A"}, wantErr: true},
		{name: "ni", kind: schema.OutcomeNeedsImprovement, defects: []string{"Oil spot"}, wantKind: schema.OutcomeNeedsImprovement},
		{name: "ni empty", kind: schema.OutcomeNeedsImprovement, wantKind: schema.OutcomeNeedsImprovement},
		{name: "modified", kind: schema.OutcomeModified, modifications: []string{"Pressing"}, wantKind: schema.OutcomeModified},
		{name: "rejected", kind: schema.OutcomeRejected, reasons: []string{"Wrong size"}, wantKind: schema.OutcomeRejected},
		{name: "rejected with modifications", kind: schema.OutcomeRejected, modifications: []string{"Pressing"}, wantErr: true},
		{name: "multiple details", kind: schema.OutcomeRejected, reasons: []string{"Wrong size"}, defects: []string{"A"}, wantErr: true},
		{name: "blank label", kind: schema.OutcomeRejected, reasons: []string{" "}, wantErr: true},
		{name: "unknown", kind: "firsttimethrough", wantErr: true},
		{name: "empty", kind: "", wantErr: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseOutcome(c.kind, c.defects, c.modifications, c.reasons)
			if c.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err=%v, want ErrValidation", err)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) || ve.Field == "" {
					t.Fatalf("err=%v should be *ValidationError with field", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Kind() != c.wantKind {
				t.Fatalf("kind=%q, want %q", got.Kind(), c.wantKind)
			}
		})
	}
}

func TestParseOutcomeTrimsLabels(t *testing.T) {
	got, err := ParseOutcome(schema.OutcomeNeedsImprovement, []string{" Oil spot "}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ni, ok := got.(NeedsImprovement)
	if !ok || len(ni.Defects) != 1 || ni.Defects[0] != "Oil spot" {
		t.Fatalf("got=%#v", got)
	}
}

func TestRecordInputValidate(t *testing.T) {
	base := RecordInput{
		ProductionLineID: 1,
		InspectorID:      "qc-1",
		Type:             schema.OutcomeFirstTimeThrough,
		Timestamp:        time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	if _, err := base.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	noLine := base
	noLine.ProductionLineID = 0
	noInspector := base
	noInspector.InspectorID = "  "
	noTime := base
	noTime.Timestamp = time.Time{}

	for _, in := range []RecordInput{noLine, noInspector, noTime} {
		if _, err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("input %+v: err=%v, want ErrValidation", in, err)
		}
	}
}

func TestNewRecordDerivesCounts(t *testing.T) {
	in := RecordInput{ProductionLineID: 2, InspectorID: "qc", Type: schema.OutcomeRejected, Timestamp: time.UnixMilli(1000)}
	rec, err := newRecord(in, Rejected{Reasons: []string{"Wrong size", "Color mismatch"}})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ReasonCount != 2 || rec.DefectCount != 0 || rec.ModificationCount != 0 {
		t.Fatalf("counts=%d/%d/%d", rec.DefectCount, rec.ModificationCount, rec.ReasonCount)
	}
	if len(rec.Defects) != 0 || len(rec.Modifications) != 0 {
		t.Fatalf("non-matching detail columns must stay empty")
	}
	if rec.Timestamp != 1000 {
		t.Fatalf("timestamp=%d", rec.Timestamp)
	}
}

func TestOutcomeOf(t *testing.T) {
	rec := &schema.InspectionRecord{ID: 1, Outcome: schema.OutcomeModified, Modifications: datatypes.JSON(`["Pressing"]`)}
	o, err := OutcomeOf(rec)
	if err != nil {
		t.Fatal(err)
	}
	if m, ok := o.(Modified); !ok || len(m.Labels()) != 1 {
		t.Fatalf("o=%#v", o)
	}

	bad := &schema.InspectionRecord{ID: 2, Outcome: schema.OutcomeModified, Modifications: datatypes.JSON(`{broken`)}
	if _, err := OutcomeOf(bad); err == nil {
		t.Fatalf("expected error for corrupt payload")
	}
	unknown := &schema.InspectionRecord{ID: 3, Outcome: "scrap"}
	if _, err := OutcomeOf(unknown); err == nil {
		t.Fatalf("expected error for unknown outcome")
	}
}
