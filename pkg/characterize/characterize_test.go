package characterize

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/go-cmp/cmp"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/testing/generators"
)

// fixture returns a reference log of four cases and a result holding c1, c2.
func fixture() (result, reference plugin.NamedSet) {
	ds := dataset.New(generators.Events(
		generators.NewCase("c1", generators.At("A", 0, "amount", "10", "row_index", "0"), generators.At("B", time.Hour)),
		generators.NewCase("c2", generators.At("A", 0, "amount", "30", "row_index", "2")),
		generators.NewCase("c3", generators.At("B", 0, "amount", "50", "row_index", "3", "note", "late")),
		generators.NewCase("c4", generators.At("C", 0, "amount", "70", "row_index", "4", "note", "5")),
	), nil)
	return plugin.NamedSet{Name: "res", Data: ds.SelectCases(roaring.BitmapOf(ds.CaseOf(0), ds.CaseOf(2)))},
		plugin.NamedSet{Name: "ref", Data: ds}
}

func TestSetCardinality(t *testing.T) {
	result, reference := fixture()
	props, err := SetCardinality{}.Characterize(context.Background(), result, reference)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(plugin.Properties{"res": 2, "ref": 4}, props); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	_, reference := fixture()
	stats := Summarize(reference.Data)

	// row_index is index-like, note mixes text and numbers.
	if len(stats) != 1 || stats[0].Column != "amount" {
		t.Fatalf("Summarize() = %+v, want amount only", stats)
	}
	s := stats[0]
	if s.Count != 4 || s.Mean != 40 || s.Min != 10 || s.Max != 70 {
		t.Errorf("stats = %+v", s)
	}
	if math.Abs(s.Std-25.81988897) > 1e-6 {
		t.Errorf("Std = %v, want sample standard deviation", s.Std)
	}
}

func TestSummarize_SingleValueHasNoStd(t *testing.T) {
	ds := dataset.New(generators.Events(generators.NewCase("c1", generators.At("A", 0, "amount", "5"))), nil)
	stats := Summarize(ds)
	if len(stats) != 1 || !math.IsNaN(stats[0].Std) {
		t.Errorf("Summarize() = %+v, want NaN std", stats)
	}
}

func TestRandomExampleRetriever(t *testing.T) {
	result, reference := fixture()
	props, err := NewRandomExampleRetriever(1, 42).Characterize(context.Background(), result, reference)
	if err != nil {
		t.Fatal(err)
	}

	onlyResult := props["Sample from res"].(*dataset.Dataset)
	if onlyResult != nil {
		t.Errorf("result is a subset of the reference, got sample %v", onlyResult.CaseKeys())
	}
	onlyRef := props["Sample from ref"].(*dataset.Dataset)
	if onlyRef == nil || onlyRef.CaseCount() != 1 {
		t.Fatalf("reference-only sample = %v", onlyRef)
	}
	if key := onlyRef.CaseKeys()[0]; key != "c3" && key != "c4" {
		t.Errorf("reference-only sample drew %s", key)
	}
	both := props["Sample in res and ref"].(*dataset.Dataset)
	if both == nil || both.CaseCount() != 1 {
		t.Fatalf("common sample = %v", both)
	}
}

func TestRandomExampleRetriever_Reproducible(t *testing.T) {
	result, reference := fixture()
	draw := func() []string {
		props, _ := NewRandomExampleRetriever(1, 7).Characterize(context.Background(), result, reference)
		return props["Sample from ref"].(*dataset.Dataset).CaseKeys()
	}
	if diff := cmp.Diff(draw(), draw()); diff != "" {
		t.Errorf("same seed drew different cases:\n%s", diff)
	}
}

func TestPropertiesEvaluator(t *testing.T) {
	result, reference := fixture()
	c := NewPropertiesEvaluator(
		predicate.Eq(model.ColumnActivity, "B"),
		predicate.Gt("amount", 20),
	)
	props, err := c.Characterize(context.Background(), result, reference)
	if err != nil {
		t.Fatal(err)
	}

	want := plugin.Properties{
		"res": []PropertyShare{
			{Predicate: "(concept:name in { 'B' })", Cases: 1, Share: 0.5},
			{Predicate: "(amount > 20)", Cases: 1, Share: 0.5},
		},
		"ref": []PropertyShare{
			{Predicate: "(concept:name in { 'B' })", Cases: 2, Share: 0.5},
			{Predicate: "(amount > 20)", Cases: 3, Share: 0.75},
		},
	}
	if diff := cmp.Diff(want, props); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}

	bad := NewPropertiesEvaluator(predicate.Eq("missing", "x"))
	if _, err := bad.Characterize(context.Background(), result, reference); err == nil {
		t.Error("missing column did not fail")
	}
}

func TestProfile(t *testing.T) {
	result, reference := fixture()
	props, err := Profile{}.Characterize(context.Background(), result, reference)
	if err != nil {
		t.Fatal(err)
	}

	find := func(profiles []ColumnProfile, col string) ColumnProfile {
		for _, p := range profiles {
			if p.Column == col {
				return p
			}
		}
		t.Fatalf("no profile for %s", col)
		return ColumnProfile{}
	}

	res := props["res"].([]ColumnProfile)
	act := find(res, model.ColumnActivity)
	if act.Rows != 3 || act.Distinct != 2 || act.Nulls != 0 {
		t.Errorf("result activity profile = %+v", act)
	}
	if math.Abs(act.Entropy-0.918296) > 1e-6 {
		t.Errorf("result activity entropy = %v, want 0.918296", act.Entropy)
	}

	ref := props["ref"].([]ColumnProfile)
	note := find(ref, "note")
	if note.Nulls != 3 || note.NullPct != 60 || note.Distinct != 2 || note.Entropy != 1 {
		t.Errorf("reference note profile = %+v", note)
	}
}

func TestProfileColumns_Canceled(t *testing.T) {
	_, reference := fixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ProfileColumns(ctx, reference.Data); err == nil {
		t.Error("ProfileColumns() on a canceled context succeeded")
	}
}
