// Package logview is the entry point of an analysis session.
//
// A LogView owns the initial source log, a query registry and two caches:
// display name -> dataset, and (source handle, canonical query) -> result
// handle. Evaluating the same canonical query against the same source twice
// returns the registered result without evaluating again.
//
// Basic usage:
//
//	lv, err := logview.New(evaluator.New(), registry.NewMemory(), log)
//	q := predicate.NewQuery("cheap", predicate.Lt("amount", 100))
//	cheap, rest, err := lv.EvaluateQuery(ctx, "cheap", log, q)
package logview

import (
	"context"
	"log"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/evaluator"
	"github.com/logflow/logview/pkg/lineage"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
	"github.com/logflow/logview/pkg/telemetry"
)

// ComplementPrefix is prepended to a result name to name its complement.
const ComplementPrefix = "complement_"

type cacheKey struct {
	source dataset.Handle
	query  string
}

// LogView orchestrates query evaluation, provenance and analysis plugins.
type LogView struct {
	mu sync.RWMutex

	evaluator evaluator.QueryEvaluator
	registry  registry.QueryRegistry
	initial   *dataset.Dataset

	queryCache map[cacheKey]dataset.Handle
	names      map[string]*dataset.Dataset

	characterizers *plugin.Set[plugin.Characterizer]
	twoSet         *plugin.Set[plugin.TwoSetComparator]
	multiSet       *plugin.Set[plugin.MultiSetComparator]

	logger *log.Logger
	tracer trace.Tracer
}

// Option configures a LogView.
type Option func(*LogView)

// WithLogger sets the logger used for warnings.
func WithLogger(l *log.Logger) Option {
	return func(lv *LogView) {
		if l != nil {
			lv.logger = l
		}
	}
}

// WithTracer sets the tracer used for evaluation and comparison spans.
func WithTracer(t trace.Tracer) Option {
	return func(lv *LogView) {
		if t != nil {
			lv.tracer = t
		}
	}
}

// New creates a session rooted at initial. The registry must not have an
// initial source log yet.
func New(ev evaluator.QueryEvaluator, reg registry.QueryRegistry, initial *dataset.Dataset, opts ...Option) (*LogView, error) {
	if ev == nil {
		return nil, lverrors.New(lverrors.CodeIncompleteEvaluation, "no query evaluator was defined")
	}
	if reg == nil {
		return nil, lverrors.New(lverrors.CodeIncompleteEvaluation, "no query registry was defined")
	}
	if err := reg.SetInitialSourceLog(initial); err != nil {
		return nil, err
	}

	lv := &LogView{
		evaluator:      ev,
		registry:       reg,
		initial:        initial,
		queryCache:     make(map[cacheKey]dataset.Handle),
		names:          map[string]*dataset.Dataset{registry.InitialSourceName: initial},
		characterizers: plugin.NewSet[plugin.Characterizer](plugin.KindCharacterizer),
		twoSet:         plugin.NewSet[plugin.TwoSetComparator](plugin.KindTwoSetComparator),
		multiSet:       plugin.NewSet[plugin.MultiSetComparator](plugin.KindMultiSetComparator),
		logger:         log.New(os.Stderr, "[logview] ", log.LstdFlags),
		tracer:         telemetry.NoopTracer(),
	}
	for _, opt := range opts {
		opt(lv)
	}
	return lv, nil
}

// InitialSourceLog returns the root log of the session.
func (lv *LogView) InitialSourceLog() *dataset.Dataset {
	return lv.initial
}

// Registry returns the provenance registry.
func (lv *LogView) Registry() registry.QueryRegistry {
	return lv.registry
}

// EvaluateQuery applies query to source and returns the result set and its
// complement, named name and complement_<name>.
//
// If the same canonical query was already evaluated against the same source,
// the registered pair is returned and nothing is evaluated. A different name
// on such a hit is ignored with a warning; the first name wins.
func (lv *LogView) EvaluateQuery(ctx context.Context, name string, source *dataset.Dataset, query *predicate.Query) (*dataset.Dataset, *dataset.Dataset, error) {
	canonical := query.String()
	ctx, span := lv.tracer.Start(ctx, "logview.evaluate_query", trace.WithAttributes(
		telemetry.Attr("logview.result_set", name),
		telemetry.Attr("logview.query", query.Name()),
		telemetry.Attr("logview.predicates", canonical),
	))
	defer span.End()

	lv.mu.Lock()
	defer lv.mu.Unlock()

	if err := lv.checkSource(source); err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	key := cacheKey{source: source.Handle(), query: canonical}
	if h, ok := lv.queryCache[key]; ok {
		span.SetAttributes(telemetry.Attr("logview.cache_hit", true))
		ev, err := lv.registry.Evaluation(h)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, nil, err
		}
		if ev.ResultName != name {
			lv.logger.Printf("WARN: ignoring the new name '%s' since you are getting back an already computed result set with name '%s'",
				name, ev.ResultName)
		}
		return ev.Result, ev.Complement, nil
	}
	span.SetAttributes(telemetry.Attr("logview.cache_hit", false))

	result, complement, err := lv.evaluator.Evaluate(ctx, source, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	ev := registry.Evaluation{
		Query:          query.Clone(),
		Source:         source,
		Result:         result,
		Complement:     complement,
		ResultName:     name,
		ComplementName: ComplementPrefix + name,
	}
	if err := lv.registry.RegisterEvaluation(result.Handle(), ev); err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	lv.queryCache[key] = result.Handle()
	lv.names[ev.ResultName] = result
	lv.names[ev.ComplementName] = complement

	span.SetAttributes(
		telemetry.Attr("logview.result_cases", result.CaseCount()),
		telemetry.Attr("logview.complement_cases", complement.CaseCount()),
	)
	return result, complement, nil
}

// checkSource rejects sources outside the provenance forest: datasets built
// from another log and complements, which are named but never registered.
func (lv *LogView) checkSource(source *dataset.Dataset) error {
	if source == nil {
		return lverrors.New(lverrors.CodeIncompleteEvaluation, "field is not present in the evaluation").
			WithContext("field", "source_log")
	}
	if !source.SameUniverse(lv.initial) {
		return lverrors.New(lverrors.CodeUnknownResultSet, "the source log does not derive from the initial source log").
			WithContext("source", source.Handle())
	}
	if source == lv.initial {
		return nil
	}
	if _, err := lv.registry.Evaluation(source.Handle()); err != nil {
		return lverrors.New(lverrors.CodeUnknownResultSet, "the source log is not a registered result set").
			WithContext("source", lv.NameOf(source))
	}
	return nil
}

// EvaluateQueryOn is EvaluateQuery with the source given by reference.
func (lv *LogView) EvaluateQueryOn(ctx context.Context, name string, source Ref, query *predicate.Query) (*dataset.Dataset, *dataset.Dataset, error) {
	ds, err := lv.resolve(source)
	if err != nil {
		return nil, nil, err
	}
	return lv.EvaluateQuery(ctx, name, ds, query)
}

// ResultSet returns the dataset registered under a display name.
func (lv *LogView) ResultSet(name string) (*dataset.Dataset, error) {
	return lv.resolve(ByName(name))
}

// Name returns the display name registered for a handle.
func (lv *LogView) Name(h dataset.Handle) (string, bool) {
	return lv.registry.Name(h)
}

// NameOf returns the display name of a dataset, or its handle when unnamed.
func (lv *LogView) NameOf(ds *dataset.Dataset) string {
	if name, ok := lv.registry.Name(ds.Handle()); ok {
		return name
	}
	return ds.Handle().String()
}

// LabelResultSet attaches a label to a registered result set.
func (lv *LogView) LabelResultSet(ref Ref, label string) error {
	ds, err := lv.resolve(ref)
	if err != nil {
		return err
	}
	return lv.registry.AnnotateWithLabel(ds.Handle(), label)
}

// Lineage returns the evaluations leading from the initial source log to
// a result set.
func (lv *LogView) Lineage(ref Ref) ([]registry.Evaluation, error) {
	ds, err := lv.resolve(ref)
	if err != nil {
		return nil, err
	}
	return lineage.Lineage(lv.registry, ds.Handle())
}

// CommonAncestor returns the most specific dataset two result sets share.
func (lv *LogView) CommonAncestor(q, r Ref) (*dataset.Dataset, error) {
	qs, err := lv.resolve(q)
	if err != nil {
		return nil, err
	}
	rs, err := lv.resolve(r)
	if err != nil {
		return nil, err
	}
	return lineage.CommonAncestor(lv.registry, qs.Handle(), rs.Handle())
}

// Summary returns the registry summary.
func (lv *LogView) Summary() registry.Summary {
	return lv.registry.Summary()
}
