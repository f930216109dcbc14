// Package plugin holds the pluggable analysis capabilities of a LogView
// session: result set characterizers, two-set comparators and multi-set
// comparators. Each kind lives in a typed name -> implementation map so
// callers select instances by name or run all of them with All.
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
)

// All selects every attached instance of a capability.
const All = "*"

// Properties is the optional output of a capability.
type Properties = map[string]any

// NamedSet is a dataset together with its display name.
type NamedSet struct {
	Name string
	Data *dataset.Dataset
}

// QueryResult pairs a registered query with the result set it produced.
type QueryResult struct {
	Query  *predicate.Query
	Result NamedSet
}

// Characterizer describes a result set relative to a reference log.
type Characterizer interface {
	Characterize(ctx context.Context, result, reference NamedSet) (Properties, error)
}

// TwoSetComparator relates two result sets, consulting the registry for
// their provenance.
type TwoSetComparator interface {
	Compare(ctx context.Context, q, r NamedSet, reg registry.QueryRegistry) (Properties, error)
}

// MultiSetComparator relates any number of result sets.
type MultiSetComparator interface {
	CompareAll(ctx context.Context, sets []QueryResult) (Properties, error)
}

// Kind names used in errors.
const (
	KindCharacterizer      = "characterizer"
	KindTwoSetComparator   = "two_set_comparator"
	KindMultiSetComparator = "multi_set_comparator"
)

// Named is a resolved capability instance.
type Named[T any] struct {
	Name string
	Impl T
}

// Set is a typed name -> implementation map.
type Set[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
	order []string
}

// NewSet creates an empty set for a capability kind.
func NewSet[T any](kind string) *Set[T] {
	return &Set[T]{kind: kind, items: make(map[string]T)}
}

// Attach adds or replaces an instance under name.
func (s *Set[T]) Attach(name string, impl T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[name]; !ok {
		s.order = append(s.order, name)
	}
	s.items[name] = impl
}

// Resolve maps requested names to instances. No names, or All among them,
// selects every attached instance in attach order. Any other unknown name
// is an error and nothing is returned.
func (s *Set[T]) Resolve(names ...string) ([]Named[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requested := s.order
	if len(names) > 0 && !contains(names, All) {
		requested = dedupe(names)
	}

	out := make([]Named[T], 0, len(requested))
	for _, name := range requested {
		impl, ok := s.items[name]
		if !ok {
			return nil, lverrors.UnknownPlugin(s.kind, name)
		}
		out = append(out, Named[T]{Name: name, Impl: impl})
	}
	return out, nil
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// dedupe drops repeated names and sorts the rest, mirroring set semantics.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
