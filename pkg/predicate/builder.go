package predicate

import (
	"fmt"
	"strconv"

	lverrors "github.com/logflow/logview/pkg/errors"
)

// Rule is the declarative form of a predicate, as found in analysis scripts.
type Rule struct {
	Field    string   `yaml:"field,omitempty"`  // attribute key, e.g. "concept:name" or "amount"
	Operator string   `yaml:"op"`               // "eq", "ne", "lt", "le", "gt", "ge", "starts", "ends", "duration", "or"
	Values   []string `yaml:"values,flow"`      // constants; numeric operators use Values[0], duration uses [min, max]
	Any      []Rule   `yaml:"any,omitempty"`    // members when Operator is "or"
}

// FromRule builds the predicate a rule describes.
func FromRule(r Rule) (Predicate, error) {
	switch r.Operator {
	case "eq", "in":
		if len(r.Values) == 0 {
			return nil, invalidRule(r, "at least one value is required")
		}
		return Eq(r.Field, typedValues(r.Values)...), nil
	case "ne", "not_in":
		if len(r.Values) == 0 {
			return nil, invalidRule(r, "at least one value is required")
		}
		return NotEq(r.Field, typedValues(r.Values)...), nil
	case "lt", "le", "gt", "ge":
		if len(r.Values) != 1 {
			return nil, invalidRule(r, "exactly one value is required")
		}
		v, err := strconv.ParseFloat(r.Values[0], 64)
		if err != nil {
			return nil, invalidRule(r, "value is not numeric")
		}
		switch r.Operator {
		case "lt":
			return Lt(r.Field, v), nil
		case "le":
			return Le(r.Field, v), nil
		case "gt":
			return Gt(r.Field, v), nil
		default:
			return Ge(r.Field, v), nil
		}
	case "starts", "start_with":
		return StartsWith(r.Values...), nil
	case "ends", "end_with":
		return EndsWith(r.Values...), nil
	case "duration":
		if len(r.Values) != 2 {
			return nil, invalidRule(r, "min and max seconds are required")
		}
		lo, err1 := strconv.ParseFloat(r.Values[0], 64)
		hi, err2 := strconv.ParseFloat(r.Values[1], 64)
		if err1 != nil || err2 != nil {
			return nil, invalidRule(r, "bounds are not numeric")
		}
		return Duration(lo, hi), nil
	case "or":
		if len(r.Any) == 0 {
			return nil, invalidRule(r, "at least one member rule is required")
		}
		members := make([]Predicate, 0, len(r.Any))
		for _, sub := range r.Any {
			p, err := FromRule(sub)
			if err != nil {
				return nil, err
			}
			members = append(members, p)
		}
		return Or(members...), nil
	default:
		return nil, invalidRule(r, "unknown operator")
	}
}

func invalidRule(r Rule, reason string) error {
	return lverrors.New(lverrors.CodeInvalidPredicate, reason).
		WithContext("field", r.Field).
		WithContext("operator", r.Operator)
}

// typedValues turns numeric text into numbers so canonical strings render
// them unquoted, matching predicates built in code.
func typedValues(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[i] = n
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[i] = f
		} else {
			out[i] = v
		}
	}
	return out
}

// --- Builder for constructing queries ---

// Builder provides a fluent interface for building queries.
type Builder struct {
	name  string
	preds []Predicate
	err   error
}

// NewBuilder creates a builder for a query with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Eq adds a case-level equality predicate.
func (b *Builder) Eq(attribute string, values ...any) *Builder {
	return b.With(Eq(attribute, values...))
}

// NotEq adds a case-level inequality predicate.
func (b *Builder) NotEq(attribute string, values ...any) *Builder {
	return b.With(NotEq(attribute, values...))
}

// Lt adds an event-level attribute < value predicate.
func (b *Builder) Lt(attribute string, value float64) *Builder {
	return b.With(Lt(attribute, value))
}

// Le adds an event-level attribute <= value predicate.
func (b *Builder) Le(attribute string, value float64) *Builder {
	return b.With(Le(attribute, value))
}

// Gt adds an event-level attribute > value predicate.
func (b *Builder) Gt(attribute string, value float64) *Builder {
	return b.With(Gt(attribute, value))
}

// Ge adds an event-level attribute >= value predicate.
func (b *Builder) Ge(attribute string, value float64) *Builder {
	return b.With(Ge(attribute, value))
}

// StartsWith adds a first-activity predicate.
func (b *Builder) StartsWith(activities ...string) *Builder {
	return b.With(StartsWith(activities...))
}

// EndsWith adds a last-activity predicate.
func (b *Builder) EndsWith(activities ...string) *Builder {
	return b.With(EndsWith(activities...))
}

// DurationWithin adds a case duration predicate.
func (b *Builder) DurationWithin(minSeconds, maxSeconds float64) *Builder {
	return b.With(Duration(minSeconds, maxSeconds))
}

// Or adds a union of predicates.
func (b *Builder) Or(preds ...Predicate) *Builder {
	return b.With(Or(preds...))
}

// Rule adds the predicate a declarative rule describes. The first invalid
// rule is reported by Build.
func (b *Builder) Rule(r Rule) *Builder {
	if b.err != nil {
		return b
	}
	p, err := FromRule(r)
	if err != nil {
		b.err = err
		return b
	}
	return b.With(p)
}

// With adds an arbitrary predicate.
func (b *Builder) With(p Predicate) *Builder {
	b.preds = append(b.preds, p)
	return b
}

// Build creates the Query.
func (b *Builder) Build() (*Query, error) {
	if b.err != nil {
		return nil, fmt.Errorf("query %q: %w", b.name, b.err)
	}
	return NewQuery(b.name, b.preds...), nil
}

// MustBuild is like Build but panics on an invalid rule.
func (b *Builder) MustBuild() *Query {
	q, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q
}
