// Package lineage walks the provenance forest of a query registry.
//
// Every registered result set points to exactly one source, so the walk from
// any result set back to the initial source log is a simple path. Walks are
// bounded by the registry size and report a corrupt registry instead of
// looping.
package lineage

import (
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
)

// Lineage returns the evaluations leading from the initial source log to
// result, root first. The initial source log has an empty lineage.
func Lineage(reg registry.QueryRegistry, result dataset.Handle) ([]registry.Evaluation, error) {
	var chain []registry.Evaluation
	err := walk(reg, result, func(ev registry.Evaluation) bool {
		chain = append(chain, ev)
		return true
	})
	if err != nil {
		return nil, err
	}
	reverse(chain)
	return chain, nil
}

// Depth returns the number of evaluations between the initial source log
// and h.
func Depth(reg registry.QueryRegistry, h dataset.Handle) (int, error) {
	depth := 0
	err := walk(reg, h, func(registry.Evaluation) bool {
		depth++
		return true
	})
	return depth, err
}

// Parent returns the source handle of a registered result set.
func Parent(reg registry.QueryRegistry, h dataset.Handle) (dataset.Handle, error) {
	ev, err := reg.Evaluation(h)
	if err != nil {
		return "", err
	}
	return ev.Source.Handle(), nil
}

// Up walks steps parents up from h, stopping early at the root.
func Up(reg registry.QueryRegistry, h dataset.Handle, steps int) (dataset.Handle, error) {
	for steps > 0 && !reg.IsRoot(h) {
		parent, err := Parent(reg, h)
		if err != nil {
			return "", err
		}
		h = parent
		steps--
	}
	return h, nil
}

// QueriesBetween returns the queries applied from ancestor down to result,
// ancestor side first. Each query is a copy of the registered one.
func QueriesBetween(reg registry.QueryRegistry, ancestor, result dataset.Handle) ([]*predicate.Query, error) {
	var queries []*predicate.Query
	found := ancestor == result
	err := walk(reg, result, func(ev registry.Evaluation) bool {
		if found {
			return false
		}
		queries = append(queries, ev.Query.Clone())
		if ev.Source.Handle() == ancestor {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found && !reg.IsRoot(ancestor) {
		return nil, lverrors.New(lverrors.CodeCorruptLineage, "dataset is not an ancestor of the result set").
			WithContext("ancestor", ancestor).
			WithContext("result_set", result)
	}
	reverse(queries)
	return queries, nil
}

// PredicatesBetween flattens QueriesBetween into one predicate list, each
// query contributing itself as a composite predicate.
func PredicatesBetween(reg registry.QueryRegistry, ancestor, result dataset.Handle) ([]predicate.Predicate, error) {
	queries, err := QueriesBetween(reg, ancestor, result)
	if err != nil {
		return nil, err
	}
	preds := make([]predicate.Predicate, len(queries))
	for i, q := range queries {
		preds[i] = q
	}
	return preds, nil
}

// walk visits the evaluations from h up to the root, stopping early when
// visit returns false.
func walk(reg registry.QueryRegistry, h dataset.Handle, visit func(registry.Evaluation) bool) error {
	if reg.InitialSourceLog() == nil {
		return lverrors.New(lverrors.CodeCorruptLineage, "no initial source log is defined")
	}
	limit := len(reg.RegisteredResultSetIDs())
	seen := make(map[dataset.Handle]struct{})
	for !reg.IsRoot(h) {
		if _, ok := seen[h]; ok || len(seen) > limit {
			return lverrors.New(lverrors.CodeCorruptLineage, "lineage revisits a result set").
				WithContext("result_set", h)
		}
		seen[h] = struct{}{}

		ev, err := reg.Evaluation(h)
		if err != nil {
			return err
		}
		if !visit(ev) {
			return nil
		}
		h = ev.Source.Handle()
	}
	return nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
