// Package predicate defines the filters an analyst composes into queries.
//
// Every predicate reduces a dataset to the events of the cases that satisfy
// it and renders a canonical string. The canonical string of a composite
// never depends on the order its members were supplied in, which makes it
// usable as a cache key.
//
// Predicate families differ in granularity and the difference is deliberate:
//
//   - EqToConstant and NotEqToConstant are case-level: the whole case is
//     tagged by any event carrying the value.
//   - LessThanConstant, LessEqualToConstant, GreaterThanConstant and
//     GreaterEqualToConstant are event-level: each event is tested and a case
//     is kept when at least one of its events passes.
//   - StartWith, EndWith and DurationWithin look at the ordered trace.
package predicate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// Predicate filters a dataset down to a case-level subset.
type Predicate interface {
	// Evaluate returns the events of the cases satisfying the predicate,
	// in source order.
	Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error)

	// String returns the canonical textual form.
	String() string
}

// caseFilter is implemented by predicates that decide per case.
// The returned bitmap holds the ids of the matching cases.
type caseFilter interface {
	matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error)
}

// apply runs a caseFilter and selects the matching cases.
func apply(f caseFilter, ds *dataset.Dataset) (*dataset.Dataset, error) {
	cases, err := f.matchCases(ds)
	if err != nil {
		return nil, err
	}
	return ds.SelectCases(cases), nil
}

func requireColumn(ds *dataset.Dataset, column string) error {
	if ds.HasColumn(column) {
		return nil
	}
	return lverrors.MissingColumn(column, ds.Columns())
}

// formatValue renders a constant the way canonical strings show it:
// strings are single-quoted, numbers are bare.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + x + "'"
	default:
		return plainValue(v)
	}
}

// plainValue renders a constant the way it appears in event data.
func plainValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// valueSet renders "{ 'a', 'b' }" with the members sorted.
func valueSet(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	sort.Strings(parts)
	return "{ " + strings.Join(parts, ", ") + " }"
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// joinSorted renders member predicates sorted by canonical string.
func joinSorted(preds []Predicate, sep string) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, sep)
}
