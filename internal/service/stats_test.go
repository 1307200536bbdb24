package service

import (
	"testing"

	"github.com/yuqie6/intrack/internal/schema"
)

func TestRatesScenario(t *testing.T) {
	var c OutcomeCounts
	c.Add(schema.OutcomeFirstTimeThrough, 6)
	c.Add(schema.OutcomeNeedsImprovement, 2)
	c.Add(schema.OutcomeModified, 1)
	c.Add(schema.OutcomeRejected, 1)

	if c.TotalProduced != 10 {
		t.Fatalf("total=%d, want 10", c.TotalProduced)
	}
	r := c.Rates()
	if r.EfficiencyRate != 60 || r.DefectRate != 30 || r.RejectionRate != 10 || r.ReworkRate != 30 {
		t.Fatalf("rates=%+v, want 60/30/10/30", r)
	}
}

func TestRatesZeroTotal(t *testing.T) {
	r := OutcomeCounts{}.Rates()
	if r != (Rates{}) {
		t.Fatalf("rates=%+v, want all zero", r)
	}
}

func TestRatesRounding(t *testing.T) {
	c := OutcomeCounts{TotalProduced: 3, FirstTimeThrough: 1, Modified: 2}
	r := c.Rates()
	if r.EfficiencyRate != 33.33 || r.ReworkRate != 66.67 {
		t.Fatalf("rates=%+v, want 33.33/66.67", r)
	}
}

func TestOutcomeCountsInvariant(t *testing.T) {
	var c OutcomeCounts
	inputs := []struct {
		outcome string
		n       int64
	}{
		{schema.OutcomeFirstTimeThrough, 7},
		{schema.OutcomeRejected, 3},
		{"bogus", 5},
		{schema.OutcomeModified, 0},
		{schema.OutcomeNeedsImprovement, 4},
	}
	for _, in := range inputs {
		c.Add(in.outcome, in.n)
	}
	if c.FirstTimeThrough+c.NeedsImprovement+c.Modified+c.Rejected != c.TotalProduced {
		t.Fatalf("counts do not sum to total: %+v", c)
	}
	if c.TotalProduced != 14 {
		t.Fatalf("total=%d, want 14 (unknown outcome excluded)", c.TotalProduced)
	}
	r := c.Rates()
	if r.EfficiencyRate > 100 || r.DefectRate > 100 {
		t.Fatalf("rates out of range: %+v", r)
	}
	if c.Rates() != r {
		t.Fatalf("rates not reproducible")
	}
}

func TestTallyLabelsScenario(t *testing.T) {
	got := TallyLabels([]string{"A", "B"}, []string{"A"}, []string{"B", "C"})
	want := []DefectFrequency{{"A", 2}, {"B", 2}, {"C", 1}}
	if len(got) != len(want) {
		t.Fatalf("got=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v, want %v", got, want)
		}
	}
	// 重复调用结果一致
	again := TallyLabels([]string{"A", "B"}, []string{"A"}, []string{"B", "C"})
	for i := range got {
		if again[i] != got[i] {
			t.Fatalf("tally not deterministic: %v vs %v", again, got)
		}
	}
}

func TestTallyLabelsSkipsBlank(t *testing.T) {
	got := TallyLabels([]string{" ", "Oil spot", " Oil spot "})
	if len(got) != 1 || got[0].Count != 2 {
		t.Fatalf("got=%v", got)
	}
}

func TestDecodeLabels(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"null", 0, false},
		{`[]`, 0, false},
		{`["A","B"]`, 2, false},
		{`not json`, 0, true},
		{`[1,2]`, 0, true},
		{`{"a":1}`, 0, true},
	}
	for _, c := range cases {
		got, err := decodeLabels([]byte(c.raw))
		if (err != nil) != c.wantErr {
			t.Fatalf("decodeLabels(%q) err=%v, wantErr=%v", c.raw, err, c.wantErr)
		}
		if len(got) != c.want {
			t.Fatalf("decodeLabels(%q) len=%d, want %d", c.raw, len(got), c.want)
		}
	}
}
