package lineage

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/evaluator"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
	"github.com/logflow/logview/pkg/testing/generators"
)

// forest registers:
//
//	root (10 cases, amount 0..90)
//	└── under60 (6 cases)
//	    ├── under40 (4 cases)
//	    └── over20 (4 cases)
//	└── over70 (2 cases)
type forest struct {
	reg     *registry.Memory
	root    *dataset.Dataset
	results map[string]*dataset.Dataset
	comps   map[string]*dataset.Dataset
}

func newForest(t *testing.T) *forest {
	t.Helper()
	var cases []generators.Case
	for i := 0; i < 10; i++ {
		cases = append(cases, generators.NewCase(fmt.Sprintf("c%d", i),
			generators.At("A", 0, "amount", strconv.Itoa(i*10))))
	}
	f := &forest{
		reg:     registry.NewMemory(),
		root:    dataset.New(generators.Events(cases...), nil),
		results: map[string]*dataset.Dataset{},
		comps:   map[string]*dataset.Dataset{},
	}
	if err := f.reg.SetInitialSourceLog(f.root); err != nil {
		t.Fatal(err)
	}
	f.eval(t, "under60", f.root, predicate.Lt("amount", 60))
	f.eval(t, "under40", f.results["under60"], predicate.Lt("amount", 40))
	f.eval(t, "over20", f.results["under60"], predicate.Ge("amount", 20))
	f.eval(t, "over70", f.root, predicate.Gt("amount", 70))
	return f
}

func (f *forest) eval(t *testing.T, name string, source *dataset.Dataset, p predicate.Predicate) {
	t.Helper()
	q := predicate.NewQuery(name, p)
	result, complement, err := evaluator.New().Evaluate(context.Background(), source, q)
	if err != nil {
		t.Fatalf("Evaluate(%s) error = %v", name, err)
	}
	ev := registry.Evaluation{Query: q, Source: source, Result: result, Complement: complement, ResultName: name}
	if err := f.reg.RegisterEvaluation(result.Handle(), ev); err != nil {
		t.Fatal(err)
	}
	f.results[name] = result
	f.comps[name] = complement
}

func (f *forest) h(name string) dataset.Handle {
	if name == registry.InitialSourceName {
		return f.root.Handle()
	}
	return f.results[name].Handle()
}

func TestForest_CaseCounts(t *testing.T) {
	f := newForest(t)
	want := map[string]int{"under60": 6, "under40": 4, "over20": 4, "over70": 2}
	for name, n := range want {
		if got := f.results[name].CaseCount(); got != n {
			t.Errorf("%s has %d cases, want %d", name, got, n)
		}
	}
}

func TestLineage(t *testing.T) {
	f := newForest(t)

	chain, err := Lineage(f.reg, f.h("under40"))
	if err != nil {
		t.Fatalf("Lineage() error = %v", err)
	}
	var names []string
	for _, ev := range chain {
		names = append(names, ev.ResultName)
	}
	if diff := cmp.Diff([]string{"under60", "under40"}, names); diff != "" {
		t.Errorf("Lineage() mismatch (-want +got):\n%s", diff)
	}
	if chain[0].Source != f.root {
		t.Error("lineage does not start at the initial source log")
	}

	rootChain, err := Lineage(f.reg, f.root.Handle())
	if err != nil || len(rootChain) != 0 {
		t.Errorf("Lineage(root) = %v, %v; want empty", rootChain, err)
	}

	if _, err := Lineage(f.reg, f.comps["under60"].Handle()); !lverrors.IsCode(err, lverrors.CodeUnknownResultSet) {
		t.Errorf("Lineage(complement) error = %v, want %s", err, lverrors.CodeUnknownResultSet)
	}
	if _, err := Lineage(registry.NewMemory(), f.h("under40")); !lverrors.IsCode(err, lverrors.CodeCorruptLineage) {
		t.Errorf("Lineage() without root error = %v, want %s", err, lverrors.CodeCorruptLineage)
	}
}

func TestDepthAndUp(t *testing.T) {
	f := newForest(t)
	if d, _ := Depth(f.reg, f.h("under40")); d != 2 {
		t.Errorf("Depth(under40) = %d, want 2", d)
	}
	if d, _ := Depth(f.reg, f.root.Handle()); d != 0 {
		t.Errorf("Depth(root) = %d, want 0", d)
	}
	up, err := Up(f.reg, f.h("under40"), 5)
	if err != nil || up != f.root.Handle() {
		t.Errorf("Up() = %s, %v; want root", up, err)
	}
}

func TestCommonAncestor(t *testing.T) {
	f := newForest(t)

	tests := []struct {
		q, r string
		want string
	}{
		{"under40", "over20", "under60"},
		{"over20", "under40", "under60"},
		{"under60", "under40", "under60"},
		{"under40", "under60", "under60"},
		{"under40", "under40", "under40"},
		{"under40", "over70", registry.InitialSourceName},
		{"under60", "over70", registry.InitialSourceName},
		{registry.InitialSourceName, "under40", registry.InitialSourceName},
	}
	for _, tt := range tests {
		t.Run(tt.q+"/"+tt.r, func(t *testing.T) {
			got, err := CommonAncestor(f.reg, f.h(tt.q), f.h(tt.r))
			if err != nil {
				t.Fatalf("CommonAncestor() error = %v", err)
			}
			if got.Handle() != f.h(tt.want) {
				name, _ := f.reg.Name(got.Handle())
				t.Errorf("CommonAncestor() = %s, want %s", name, tt.want)
			}
		})
	}
}

func TestQueriesBetween(t *testing.T) {
	f := newForest(t)

	names := func(qs []*predicate.Query) []string {
		out := make([]string, len(qs))
		for i, q := range qs {
			out[i] = q.Name()
		}
		return out
	}

	qs, err := QueriesBetween(f.reg, f.root.Handle(), f.h("under40"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"under60", "under40"}, names(qs)); diff != "" {
		t.Errorf("QueriesBetween(root) mismatch (-want +got):\n%s", diff)
	}

	qs, err = QueriesBetween(f.reg, f.h("under60"), f.h("under40"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"under40"}, names(qs)); diff != "" {
		t.Errorf("QueriesBetween(under60) mismatch (-want +got):\n%s", diff)
	}

	qs, err = QueriesBetween(f.reg, f.h("under40"), f.h("under40"))
	if err != nil || len(qs) != 0 {
		t.Errorf("QueriesBetween(self) = %v, %v; want empty", names(qs), err)
	}

	if _, err := QueriesBetween(f.reg, f.h("over20"), f.h("under40")); !lverrors.IsCode(err, lverrors.CodeCorruptLineage) {
		t.Errorf("QueriesBetween(non-ancestor) error = %v, want %s", err, lverrors.CodeCorruptLineage)
	}

	preds, err := PredicatesBetween(f.reg, f.root.Handle(), f.h("under40"))
	if err != nil || len(preds) != 2 {
		t.Fatalf("PredicatesBetween() = %d predicates, %v", len(preds), err)
	}
	out, err := predicate.NewQuery("replay", preds...).Evaluate(f.root)
	if err != nil {
		t.Fatal(err)
	}
	if out.CaseCount() != f.results["under40"].CaseCount() {
		t.Errorf("replayed lineage selects %d cases, want %d", out.CaseCount(), f.results["under40"].CaseCount())
	}
}
