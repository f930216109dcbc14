package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/logflow/logview/pkg/compare"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/evaluator"
	"github.com/logflow/logview/pkg/logview"
	"github.com/logflow/logview/pkg/registry"
	"github.com/logflow/logview/pkg/testing/generators"
)

const analysis = `
name: amounts
properties:
  - {op: eq, field: concept:name, values: [Pay]}
queries:
  - name: cheap
    predicates:
      - {op: lt, field: amount, values: ["60"]}
    labels: [buckets]
  - name: very_cheap
    source: cheap
    predicates:
      - {op: lt, field: amount, values: ["40"]}
  - name: mid
    predicates:
      - {op: or, any: [{op: ge, field: amount, values: ["20"]}, {op: ends, values: [Pay]}]}
      - {op: le, field: amount, values: ["70"]}
    labels: [buckets]
characterize:
  - result: very_cheap
    reference: cheap
    with: [cardinality, properties]
compare:
  - q: very_cheap
    r: mid
compare_multi:
  - label: buckets
  - results: [cheap, very_cheap, mid]
    with: [upset]
export: [cheap, complement_cheap]
`

// session builds a LogView over ten cases: c0..c9 with amount 0..90.
// Even cases end with Pay.
func session(t *testing.T) (*logview.LogView, *bytes.Buffer) {
	t.Helper()
	var cases []generators.Case
	for i := 0; i < 10; i++ {
		last := "Close"
		if i%2 == 0 {
			last = "Pay"
		}
		cases = append(cases, generators.NewCase(fmt.Sprintf("c%d", i),
			generators.At("Create", 0, "amount", strconv.Itoa(i*10)),
			generators.At(last, time.Hour)))
	}
	var buf bytes.Buffer
	lv, err := logview.New(evaluator.New(), registry.NewMemory(), dataset.New(generators.Events(cases...), nil),
		logview.WithLogger(log.New(&buf, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	return lv, &buf
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(analysis))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s.Name != "amounts" || len(s.Queries) != 3 || s.Steps() != 7 {
		t.Errorf("script = %s with %d queries, %d steps", s.Name, len(s.Queries), s.Steps())
	}
	if got := s.Queries[2].Predicates[0].Any[1].Operator; got != "ends" {
		t.Errorf("nested rule operator = %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code lverrors.Code
	}{
		{"unknown key", "name: x\nqueries: []\ncolour: red\n", lverrors.CodeInvalidFormat},
		{"unnamed query", "queries:\n  - predicates: []\n", lverrors.CodeInvalidFormat},
		{"source used before declared", "queries:\n  - {name: a, source: b}\n  - {name: b}\n", lverrors.CodeInvalidFormat},
		{"bad predicate", "queries:\n  - name: a\n    predicates: [{op: lt, field: x, values: [abc]}]\n", lverrors.CodeInvalidPredicate},
		{"bad property", "properties: [{op: nope}]\nqueries: []\n", lverrors.CodeInvalidPredicate},
		{"unknown characterized", "queries: []\ncharacterize: [{result: a}]\n", lverrors.CodeInvalidFormat},
		{"unknown reference", "queries: [{name: a}]\ncharacterize: [{result: a, reference: b}]\n", lverrors.CodeInvalidFormat},
		{"unknown compared", "queries: [{name: a}]\ncompare: [{q: a, r: b}]\n", lverrors.CodeInvalidFormat},
		{"results and label", "queries: [{name: a}]\ncompare_multi: [{results: [a], label: l}]\n", lverrors.CodeInvalidFormat},
		{"unknown multi result", "queries: [{name: a}]\ncompare_multi: [{results: [a, b]}]\n", lverrors.CodeInvalidFormat},
		{"unknown export", "queries: [{name: a}]\nexport: [b]\n", lverrors.CodeInvalidFormat},
		{"complement as source", "queries:\n  - {name: a}\n  - {name: b, source: complement_a}\n", lverrors.CodeInvalidFormat},
		{"complement compared", "queries: [{name: a}]\ncompare: [{q: a, r: complement_a}]\n", lverrors.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if !lverrors.IsCode(err, tt.code) {
				t.Errorf("Parse() error = %v, want %s", err, tt.code)
			}
		})
	}

	ok := "queries:\n  - {name: a}\n  - {name: b, source: a}\ncharacterize: [{result: complement_a}]\ncompare: [{q: a, r: initial_source_log}]\nexport: [complement_b]\n"
	if _, err := Parse([]byte(ok)); err != nil {
		t.Errorf("complement and root references rejected: %v", err)
	}
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	yaml := "queries:\n" +
		"  - {name: a, source: nope}\n" +
		"  - name: b\n" +
		"    predicates: [{op: lt, field: x, values: [abc]}]\n" +
		"export: [c]\n"
	_, err := Parse([]byte(yaml))

	var multi *lverrors.MultiError
	if !errors.As(err, &multi) {
		t.Fatalf("Parse() error = %v, want every problem collected", err)
	}
	if len(multi.Errors) != 3 {
		t.Errorf("%d problems reported, want 3:\n%v", len(multi.Errors), err)
	}
	if !lverrors.IsCode(err, lverrors.CodeInvalidPredicate) || !lverrors.IsCode(err, lverrors.CodeInvalidFormat) {
		t.Errorf("codes of collected problems lost: %v", err)
	}
}

func TestLoad(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !lverrors.IsCode(err, lverrors.CodeFileNotFound) {
		t.Errorf("Load(missing) error = %v, want %s", err, lverrors.CodeFileNotFound)
	}
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	if err := os.WriteFile(path, []byte(analysis), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}

func TestRun(t *testing.T) {
	s, err := Parse([]byte(analysis))
	if err != nil {
		t.Fatal(err)
	}
	lv, logs := session(t)
	if err := AttachDefaults(lv, s, Defaults{Samples: 1, Seed: 1, Logger: log.New(logs, "", 0)}); err != nil {
		t.Fatal(err)
	}

	var steps []string
	out, err := Run(context.Background(), lv, s, func(desc string) { steps = append(steps, desc) })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(steps) != s.Steps() {
		t.Errorf("progress reported %d steps, want %d", len(steps), s.Steps())
	}

	counts := map[string]int{}
	for _, ev := range out.Evaluations {
		counts[ev.Name] = ev.Result.CaseCount()
	}
	// cheap = c0..c5, very_cheap = c0..c3,
	// mid = (amount >= 20 or ends with Pay) and amount <= 70 = c0, c2..c7.
	if diff := cmp.Diff(map[string]int{"cheap": 6, "very_cheap": 4, "mid": 7}, counts); diff != "" {
		t.Errorf("result sizes mismatch (-want +got):\n%s", diff)
	}
	if out.Evaluations[1].Source != "cheap" {
		t.Errorf("very_cheap source = %q", out.Evaluations[1].Source)
	}

	char := out.Characterizations[0]
	if diff := cmp.Diff([]string{"very_cheap", "cheap"}, char.Targets); diff != "" {
		t.Errorf("characterize targets mismatch (-want +got):\n%s", diff)
	}
	if got := char.Properties[Cardinality]["very_cheap"]; got != 4 {
		t.Errorf("cardinality = %v", got)
	}
	if _, ok := char.Properties[Properties]; !ok {
		t.Error("properties characterizer did not run")
	}

	rep := out.Comparisons[0].Properties[Intersection]["report"].(*compare.Report)
	if rep.Context.CommonAncestor.Name != registry.InitialSourceName {
		t.Errorf("common ancestor = %s", rep.Context.CommonAncestor.Name)
	}
	// very_cheap = c0..c3 and mid = c0, c2..c7 within the root.
	want := compare.Matrix{QAndR: 3, QAndNotR: 1, NotQAndR: 4, NotQAndNotR: 2}
	if diff := cmp.Diff(want, rep.Matrix); diff != "" {
		t.Errorf("matrix mismatch (-want +got):\n%s", diff)
	}

	if len(out.MultiComparisons) != 2 {
		t.Fatalf("%d multi comparisons", len(out.MultiComparisons))
	}
	byLabel := out.MultiComparisons[0].Properties[UpSet]["queries"].([]compare.QueryDescription)
	if len(byLabel) != 2 {
		t.Errorf("label comparison covered %d queries, want 2", len(byLabel))
	}

	summary := lv.Summary()
	if len(summary.Evaluations) != 3 || summary.Evaluations[1].Source != "cheap" {
		t.Errorf("summary = %+v", summary.Evaluations)
	}

	targets, err := ExportTargets(lv, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 || targets[1].Name != "complement_cheap" || targets[1].Data.CaseCount() != 4 {
		t.Errorf("export targets = %+v", targets)
	}

	s.Export = []string{"*"}
	targets, _ = ExportTargets(lv, s)
	var names []string
	for _, tg := range targets {
		names = append(names, tg.Name)
	}
	if diff := cmp.Diff([]string{"cheap", "very_cheap", "mid"}, names); diff != "" {
		t.Errorf("wildcard export mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_StopsAtFirstError(t *testing.T) {
	s, err := Parse([]byte("queries:\n  - name: a\n    predicates: [{op: eq, field: region, values: [north]}]\n  - name: b\n"))
	if err != nil {
		t.Fatal(err)
	}
	lv, _ := session(t)
	var steps int
	_, err = Run(context.Background(), lv, s, func(string) { steps++ })
	if !lverrors.IsCode(err, lverrors.CodeMissingColumn) {
		t.Errorf("Run() error = %v, want %s", err, lverrors.CodeMissingColumn)
	}
	if steps != 0 {
		t.Errorf("%d steps ran after the failure", steps)
	}
}

func TestRun_UnknownPlugin(t *testing.T) {
	s, err := Parse([]byte("queries: [{name: a}]\ncharacterize: [{result: a, with: [nope]}]\n"))
	if err != nil {
		t.Fatal(err)
	}
	lv, _ := session(t)
	if err := AttachDefaults(lv, s, Defaults{}); err != nil {
		t.Fatal(err)
	}
	_, err = Run(context.Background(), lv, s, nil)
	if !lverrors.IsCode(err, lverrors.CodeUnknownPlugin) || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Run() error = %v, want %s", err, lverrors.CodeUnknownPlugin)
	}
}
