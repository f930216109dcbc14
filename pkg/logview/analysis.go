package logview

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/telemetry"
)

// AttachCharacterizer registers a characterizer under name.
func (lv *LogView) AttachCharacterizer(name string, c plugin.Characterizer) {
	lv.characterizers.Attach(name, c)
}

// AttachTwoSetComparator registers a two-set comparator under name.
func (lv *LogView) AttachTwoSetComparator(name string, c plugin.TwoSetComparator) {
	lv.twoSet.Attach(name, c)
}

// AttachMultiSetComparator registers a multi-set comparator under name.
func (lv *LogView) AttachMultiSetComparator(name string, c plugin.MultiSetComparator) {
	lv.multiSet.Attach(name, c)
}

// CharacterizeResultSet runs the selected characterizers on result against
// reference. No names, or plugin.All, runs every attached characterizer.
// When result is a registered result set its properties are replaced by the
// outcome.
func (lv *LogView) CharacterizeResultSet(ctx context.Context, result, reference Ref, names ...string) (map[string]plugin.Properties, error) {
	selected, err := lv.characterizers.Resolve(names...)
	if err != nil {
		return nil, err
	}
	rs, err := lv.resolve(result)
	if err != nil {
		return nil, err
	}
	ref, err := lv.resolve(reference)
	if err != nil {
		return nil, err
	}

	ctx, span := lv.tracer.Start(ctx, "logview.characterize", trace.WithAttributes(
		telemetry.Attr("logview.result_set", lv.NameOf(rs)),
		telemetry.Attr("logview.reference", lv.NameOf(ref)),
	))
	defer span.End()

	resultSet := lv.named(rs)
	referenceSet := lv.named(ref)
	out := make(map[string]plugin.Properties, len(selected))
	for _, c := range selected {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return nil, lverrors.ContextCanceled("characterize")
		}
		props, err := c.Impl.Characterize(ctx, resultSet, referenceSet)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, lverrors.Wrapf(err, lverrors.GetCode(err), "characterizer %s failed", c.Name)
		}
		out[c.Name] = props
	}

	if _, err := lv.registry.Evaluation(rs.Handle()); err == nil {
		if err := lv.registry.AnnotateWithProperties(rs.Handle(), flatten(out)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CompareTwoResultSets runs the selected two-set comparators on q and r.
func (lv *LogView) CompareTwoResultSets(ctx context.Context, q, r Ref, names ...string) (map[string]plugin.Properties, error) {
	selected, err := lv.twoSet.Resolve(names...)
	if err != nil {
		return nil, err
	}
	qs, err := lv.resolve(q)
	if err != nil {
		return nil, err
	}
	rs, err := lv.resolve(r)
	if err != nil {
		return nil, err
	}

	ctx, span := lv.tracer.Start(ctx, "logview.compare_two", trace.WithAttributes(
		telemetry.Attr("logview.q", lv.NameOf(qs)),
		telemetry.Attr("logview.r", lv.NameOf(rs)),
	))
	defer span.End()

	out := make(map[string]plugin.Properties, len(selected))
	for _, c := range selected {
		props, err := c.Impl.Compare(ctx, lv.named(qs), lv.named(rs), lv.registry)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, lverrors.Wrapf(err, lverrors.GetCode(err), "comparator %s failed", c.Name)
		}
		out[c.Name] = props
	}
	return out, nil
}

// CompareResultSets runs the selected multi-set comparators on registered
// result sets. No refs selects every registered result set.
func (lv *LogView) CompareResultSets(ctx context.Context, refs []Ref, names ...string) (map[string]plugin.Properties, error) {
	var sets []*dataset.Dataset
	if len(refs) == 0 {
		for _, h := range lv.registry.RegisteredResultSetIDs() {
			ev, err := lv.registry.Evaluation(h)
			if err != nil {
				return nil, err
			}
			sets = append(sets, ev.Result)
		}
	} else {
		resolved, err := lv.resolveAll(refs)
		if err != nil {
			return nil, err
		}
		sets = resolved
	}
	return lv.compareMulti(ctx, sets, names)
}

// CompareResultSetsWithLabel runs the selected multi-set comparators on
// every registered result set carrying label.
func (lv *LogView) CompareResultSetsWithLabel(ctx context.Context, label string, names ...string) (map[string]plugin.Properties, error) {
	var sets []*dataset.Dataset
	for _, h := range lv.registry.RegisteredResultSetIDs() {
		labels, err := lv.registry.Labels(h)
		if err != nil {
			return nil, err
		}
		if !containsLabel(labels, label) {
			continue
		}
		ev, err := lv.registry.Evaluation(h)
		if err != nil {
			return nil, err
		}
		sets = append(sets, ev.Result)
	}
	return lv.compareMulti(ctx, sets, names)
}

func (lv *LogView) compareMulti(ctx context.Context, sets []*dataset.Dataset, names []string) (map[string]plugin.Properties, error) {
	selected, err := lv.multiSet.Resolve(names...)
	if err != nil {
		return nil, err
	}

	results := make([]plugin.QueryResult, 0, len(sets))
	for _, ds := range sets {
		ev, err := lv.registry.Evaluation(ds.Handle())
		if err != nil {
			return nil, err
		}
		results = append(results, plugin.QueryResult{Query: ev.Query, Result: lv.named(ds)})
	}

	ctx, span := lv.tracer.Start(ctx, "logview.compare_multi", trace.WithAttributes(
		telemetry.Attr("logview.result_sets", len(results)),
	))
	defer span.End()

	out := make(map[string]plugin.Properties, len(selected))
	for _, c := range selected {
		props, err := c.Impl.CompareAll(ctx, results)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, lverrors.Wrapf(err, lverrors.GetCode(err), "comparator %s failed", c.Name)
		}
		out[c.Name] = props
	}
	return out, nil
}

func (lv *LogView) named(ds *dataset.Dataset) plugin.NamedSet {
	return plugin.NamedSet{Name: lv.NameOf(ds), Data: ds}
}

// flatten merges per-characterizer properties into one map keyed by
// "<characterizer>.<property>".
func flatten(in map[string]plugin.Properties) map[string]any {
	out := make(map[string]any)
	for name, props := range in {
		for k, v := range props {
			out[name+"."+k] = v
		}
	}
	return out
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
