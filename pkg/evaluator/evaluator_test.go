package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/testing/generators"
)

func TestEvaluate_Partitions(t *testing.T) {
	source := dataset.New(generators.NewLogGenerator(7).Generate(50), nil)

	queries := []*predicate.Query{
		predicate.NewQuery("cheap", predicate.Lt("amount", 300)),
		predicate.NewQuery("starts", predicate.StartsWith("Submit Order")),
		predicate.NewQuery("none", predicate.Eq(model.ColumnActivity, "Nope")),
		predicate.NewQuery("all"),
	}

	ev := New()
	for _, q := range queries {
		t.Run(q.Name(), func(t *testing.T) {
			matched, complement, err := ev.Evaluate(context.Background(), source, q)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if matched.Len()+complement.Len() != source.Len() {
				t.Errorf("rows: %d + %d != %d", matched.Len(), complement.Len(), source.Len())
			}
			if matched.Cases().Intersects(complement.Cases()) {
				t.Error("result and complement share a case")
			}
			if matched.CaseCount()+complement.CaseCount() != source.CaseCount() {
				t.Errorf("cases: %d + %d != %d", matched.CaseCount(), complement.CaseCount(), source.CaseCount())
			}
			if matched.Handle() == source.Handle() || complement.Handle() == source.Handle() {
				t.Error("partition reused the source handle")
			}
		})
	}
}

func TestEvaluate_MissingColumn(t *testing.T) {
	events := []model.Event{{CaseID: "c1", Activity: "A", Timestamp: time.Now().UnixNano()}}
	noTimestamp := dataset.New(events, []string{model.ColumnCaseID, model.ColumnActivity})

	_, _, err := New().Evaluate(context.Background(), noTimestamp, predicate.NewQuery("q"))
	if !lverrors.IsCode(err, lverrors.CodeMissingColumn) {
		t.Fatalf("error = %v, want %s", err, lverrors.CodeMissingColumn)
	}

	custom := NewWithColumns(model.ColumnCaseID)
	if _, _, err := custom.Evaluate(context.Background(), noTimestamp, predicate.NewQuery("q")); err != nil {
		t.Errorf("custom required columns: error = %v", err)
	}
}

func TestEvaluate_PredicateErrorKeepsCode(t *testing.T) {
	source := dataset.New(generators.NewLogGenerator(1).Generate(3), nil)
	q := predicate.NewQuery("q", predicate.Eq("region", "north"))

	_, _, err := New().Evaluate(context.Background(), source, q)
	if !lverrors.IsCode(err, lverrors.CodeMissingColumn) {
		t.Errorf("error = %v, want %s", err, lverrors.CodeMissingColumn)
	}
}

func TestEvaluate_Canceled(t *testing.T) {
	source := dataset.New(generators.NewLogGenerator(1).Generate(3), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New().Evaluate(ctx, source, predicate.NewQuery("q"))
	if !lverrors.IsCode(err, lverrors.CodeContextCanceled) {
		t.Errorf("error = %v, want %s", err, lverrors.CodeContextCanceled)
	}
}
