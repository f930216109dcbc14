package script

import (
	"context"
	"log"

	"github.com/logflow/logview/pkg/characterize"
	"github.com/logflow/logview/pkg/compare"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/logview"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
)

// Names under which AttachDefaults registers the built-in plugins.
const (
	Cardinality  = "cardinality"
	Statistics   = "statistics"
	Examples     = "examples"
	Profile      = "profile"
	Properties   = "properties"
	Intersection = "intersection"
	UpSet        = "upset"
)

// Defaults configures the built-in plugins.
type Defaults struct {
	Samples int
	Seed    int64
	Logger  *log.Logger
}

// AttachDefaults registers the built-in characterizers and comparators on
// lv. The properties characterizer is attached only when s declares
// properties.
func AttachDefaults(lv *logview.LogView, s *Script, d Defaults) error {
	lv.AttachCharacterizer(Cardinality, characterize.SetCardinality{})
	lv.AttachCharacterizer(Statistics, characterize.SummaryStatistics{})
	lv.AttachCharacterizer(Examples, characterize.NewRandomExampleRetriever(d.Samples, d.Seed))
	lv.AttachCharacterizer(Profile, characterize.Profile{})
	if s != nil && len(s.Properties) > 0 {
		preds := make([]predicate.Predicate, 0, len(s.Properties))
		for _, r := range s.Properties {
			p, err := predicate.FromRule(r)
			if err != nil {
				return err
			}
			preds = append(preds, p)
		}
		lv.AttachCharacterizer(Properties, characterize.NewPropertiesEvaluator(preds...))
	}
	lv.AttachTwoSetComparator(Intersection, compare.NewIntersectionMatrix())
	lv.AttachMultiSetComparator(UpSet, compare.NewUpSet(d.Logger))
	return nil
}

// EvaluationOutcome is one executed query.
type EvaluationOutcome struct {
	Name       string
	Source     string
	Query      string
	Result     *dataset.Dataset
	Complement *dataset.Dataset
}

// PluginOutcome is the output of one characterization or comparison step.
type PluginOutcome struct {
	Targets    []string
	Properties map[string]plugin.Properties
}

// Outcome collects everything a script run produced.
type Outcome struct {
	Evaluations       []EvaluationOutcome
	Characterizations []PluginOutcome
	Comparisons       []PluginOutcome
	MultiComparisons  []PluginOutcome
}

// Progress is called after each step with a short description.
type Progress func(desc string)

// Run executes s against lv in declaration order: queries and their labels,
// then characterizations, two-set comparisons and multi-set comparisons.
// The first failing step aborts the run.
func Run(ctx context.Context, lv *logview.LogView, s *Script, progress Progress) (*Outcome, error) {
	if progress == nil {
		progress = func(string) {}
	}
	out := &Outcome{}

	for _, qs := range s.Queries {
		source := qs.Source
		if source == "" {
			source = registry.InitialSourceName
		}
		b := predicate.NewBuilder(qs.Name)
		for _, r := range qs.Predicates {
			b.Rule(r)
		}
		q, err := b.Build()
		if err != nil {
			return nil, err
		}
		result, complement, err := lv.EvaluateQueryOn(ctx, qs.Name, logview.ByName(source), q)
		if err != nil {
			return nil, err
		}
		for _, label := range qs.Labels {
			if err := lv.LabelResultSet(logview.ByDataset(result), label); err != nil {
				return nil, err
			}
		}
		out.Evaluations = append(out.Evaluations, EvaluationOutcome{
			Name:       lv.NameOf(result),
			Source:     source,
			Query:      q.String(),
			Result:     result,
			Complement: complement,
		})
		progress("query " + qs.Name)
	}

	for _, cs := range s.Characterize {
		reference := cs.Reference
		if reference == "" {
			reference = registry.InitialSourceName
		}
		props, err := lv.CharacterizeResultSet(ctx, logview.ByName(cs.Result), logview.ByName(reference), cs.With...)
		if err != nil {
			return nil, err
		}
		out.Characterizations = append(out.Characterizations, PluginOutcome{
			Targets:    []string{cs.Result, reference},
			Properties: props,
		})
		progress("characterize " + cs.Result)
	}

	for _, cs := range s.Compare {
		props, err := lv.CompareTwoResultSets(ctx, logview.ByName(cs.Q), logview.ByName(cs.R), cs.With...)
		if err != nil {
			return nil, err
		}
		out.Comparisons = append(out.Comparisons, PluginOutcome{
			Targets:    []string{cs.Q, cs.R},
			Properties: props,
		})
		progress("compare " + cs.Q + " / " + cs.R)
	}

	for _, ms := range s.CompareMulti {
		var (
			props   map[string]plugin.Properties
			err     error
			targets []string
		)
		if ms.Label != "" {
			props, err = lv.CompareResultSetsWithLabel(ctx, ms.Label, ms.With...)
			targets = []string{"label:" + ms.Label}
		} else {
			refs := make([]logview.Ref, len(ms.Results))
			for i, name := range ms.Results {
				refs[i] = logview.ByName(name)
			}
			props, err = lv.CompareResultSets(ctx, refs, ms.With...)
			targets = ms.Results
		}
		if err != nil {
			return nil, err
		}
		out.MultiComparisons = append(out.MultiComparisons, PluginOutcome{Targets: targets, Properties: props})
		progress("compare multiple result sets")
	}

	return out, nil
}

// ExportTargets resolves the script's export list to named datasets.
func ExportTargets(lv *logview.LogView, s *Script) ([]plugin.NamedSet, error) {
	var names []string
	for _, n := range s.Export {
		if n == plugin.All {
			names = names[:0]
			for _, h := range lv.Registry().RegisteredResultSetIDs() {
				name, _ := lv.Name(h)
				names = append(names, name)
			}
			break
		}
		names = append(names, n)
	}

	out := make([]plugin.NamedSet, 0, len(names))
	for _, n := range names {
		ds, err := lv.ResultSet(n)
		if err != nil {
			return nil, err
		}
		out = append(out, plugin.NamedSet{Name: n, Data: ds})
	}
	return out, nil
}
