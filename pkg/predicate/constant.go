package predicate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/index"
)

// EqToConstant keeps the cases in which at least one event carries the
// attribute with one of the given values. The whole case is kept.
//
// String constants match the cell text exactly. Numeric constants match
// numerically, so 1.5 matches "1.50"; on time:timestamp they are Unix
// seconds.
type EqToConstant struct {
	Attribute string
	Values    []any
}

// Eq creates an EqToConstant predicate.
func Eq(attribute string, values ...any) *EqToConstant {
	return &EqToConstant{Attribute: attribute, Values: values}
}

// Evaluate implements Predicate.
func (p *EqToConstant) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *EqToConstant) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	if err := requireColumn(ds, p.Attribute); err != nil {
		return nil, err
	}
	idx := index.NewCaseIndex(ds)
	return idx.LookupAny(p.Attribute, matchingValues(idx, p.Attribute, p.Values)...), nil
}

// String implements Predicate.
func (p *EqToConstant) String() string {
	return fmt.Sprintf("(%s in %s)", p.Attribute, valueSet(p.Values))
}

// NotEqToConstant keeps the cases in which no event carries the attribute
// with any of the given values. Values match as in EqToConstant.
type NotEqToConstant struct {
	Attribute string
	Values    []any
}

// NotEq creates a NotEqToConstant predicate.
func NotEq(attribute string, values ...any) *NotEqToConstant {
	return &NotEqToConstant{Attribute: attribute, Values: values}
}

// Evaluate implements Predicate.
func (p *NotEqToConstant) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *NotEqToConstant) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	if err := requireColumn(ds, p.Attribute); err != nil {
		return nil, err
	}
	idx := index.NewCaseIndex(ds)
	tagged := idx.LookupAny(p.Attribute, matchingValues(idx, p.Attribute, p.Values)...)
	return roaring.AndNot(ds.Cases(), tagged), nil
}

// String implements Predicate.
func (p *NotEqToConstant) String() string {
	return fmt.Sprintf("(%s not in %s)", p.Attribute, valueSet(p.Values))
}

// matchingValues returns the cell texts of attribute equal to one of values.
func matchingValues(idx *index.CaseIndex, attribute string, values []any) []string {
	var texts []string
	var numbers []float64
	for _, v := range values {
		if f, ok := numericValue(v); ok {
			numbers = append(numbers, f)
		} else {
			texts = append(texts, plainValue(v))
		}
	}
	if len(numbers) == 0 {
		return texts
	}
	for _, cell := range idx.DistinctValues(attribute) {
		f, ok := cellNumber(attribute, cell)
		if !ok {
			continue
		}
		for _, n := range numbers {
			if f == n {
				texts = append(texts, cell)
				break
			}
		}
	}
	return texts
}

func numericValue(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}

// cellNumber parses a cell the way Event.Number reads it.
func cellNumber(attribute, cell string) (float64, bool) {
	if attribute == model.ColumnTimestamp {
		t, err := time.Parse(time.RFC3339Nano, cell)
		if err != nil {
			return 0, false
		}
		return float64(t.UnixNano()) / float64(time.Second), true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Comparison is the operator of an event-level numeric predicate.
type Comparison string

const (
	OpLess         Comparison = "<"
	OpLessEqual    Comparison = "<="
	OpGreater      Comparison = ">"
	OpGreaterEqual Comparison = ">="
)

func (op Comparison) holds(a, b float64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	default:
		return false
	}
}

// compareConstant is the shared event-level comparison. A case is kept if
// at least one of its events satisfies the comparison. Events where the
// attribute is missing or not numeric never satisfy it.
type compareConstant struct {
	Attribute string
	Value     float64
	op        Comparison
}

// Evaluate implements Predicate.
func (p *compareConstant) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *compareConstant) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	if err := requireColumn(ds, p.Attribute); err != nil {
		return nil, err
	}
	cases := roaring.New()
	for row := 0; row < ds.Len(); row++ {
		v, ok := ds.Event(row).Number(p.Attribute)
		if ok && p.op.holds(v, p.Value) {
			cases.Add(ds.CaseOf(row))
		}
	}
	return cases, nil
}

// String implements Predicate.
func (p *compareConstant) String() string {
	return fmt.Sprintf("(%s %s %s)", p.Attribute, p.op, formatNumber(p.Value))
}

// LessThanConstant keeps cases with at least one event where attribute < value.
type LessThanConstant struct{ compareConstant }

// LessEqualToConstant keeps cases with at least one event where attribute <= value.
type LessEqualToConstant struct{ compareConstant }

// GreaterThanConstant keeps cases with at least one event where attribute > value.
type GreaterThanConstant struct{ compareConstant }

// GreaterEqualToConstant keeps cases with at least one event where attribute >= value.
type GreaterEqualToConstant struct{ compareConstant }

// Lt creates a LessThanConstant predicate.
func Lt(attribute string, value float64) *LessThanConstant {
	return &LessThanConstant{compareConstant{Attribute: attribute, Value: value, op: OpLess}}
}

// Le creates a LessEqualToConstant predicate.
func Le(attribute string, value float64) *LessEqualToConstant {
	return &LessEqualToConstant{compareConstant{Attribute: attribute, Value: value, op: OpLessEqual}}
}

// Gt creates a GreaterThanConstant predicate.
func Gt(attribute string, value float64) *GreaterThanConstant {
	return &GreaterThanConstant{compareConstant{Attribute: attribute, Value: value, op: OpGreater}}
}

// Ge creates a GreaterEqualToConstant predicate.
func Ge(attribute string, value float64) *GreaterEqualToConstant {
	return &GreaterEqualToConstant{compareConstant{Attribute: attribute, Value: value, op: OpGreaterEqual}}
}
