package predicate

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/pkg/dataset"
)

// Union keeps a case if it passes any member predicate.
type Union struct {
	Predicates []Predicate
}

// Or creates a Union of the given predicates.
func Or(preds ...Predicate) *Union {
	return &Union{Predicates: preds}
}

// Evaluate implements Predicate. Every member is evaluated against the
// same input.
func (u *Union) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	cases := roaring.New()
	for _, p := range u.Predicates {
		out, err := p.Evaluate(ds)
		if err != nil {
			return nil, err
		}
		cases.Or(out.Cases())
	}
	return ds.SelectCases(cases), nil
}

// String implements Predicate.
func (u *Union) String() string {
	return joinSorted(u.Predicates, " or ")
}

// Query is a named AND-combination of predicates.
//
// Evaluation follows list order and stops as soon as the intermediate
// result is empty; the canonical string ignores list order.
type Query struct {
	name       string
	predicates []Predicate
}

// NewQuery creates a query.
func NewQuery(name string, preds ...Predicate) *Query {
	q := &Query{name: name}
	q.predicates = append(q.predicates, preds...)
	return q
}

// Name returns the query name.
func (q *Query) Name() string {
	return q.name
}

// Predicates returns a copy of the member predicates in evaluation order.
func (q *Query) Predicates() []Predicate {
	out := make([]Predicate, len(q.predicates))
	copy(out, q.predicates)
	return out
}

// Len returns the number of member predicates.
func (q *Query) Len() int {
	return len(q.predicates)
}

// Append adds predicates to the query in place.
func (q *Query) Append(preds ...Predicate) *Query {
	q.predicates = append(q.predicates, preds...)
	return q
}

// Clone returns a copy whose predicate list is independent of q's.
func (q *Query) Clone() *Query {
	return NewQuery(q.name, q.predicates...)
}

// Evaluate implements Predicate.
func (q *Query) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	current := ds
	for _, p := range q.predicates {
		if current.IsEmpty() {
			break
		}
		next, err := p.Evaluate(current)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// String implements Predicate.
func (q *Query) String() string {
	return joinSorted(q.predicates, " and ")
}
