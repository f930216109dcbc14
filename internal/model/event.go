// Package model defines the core event structures for LogView.
package model

import (
	"strconv"
	"time"
)

// Standard XES column names. Logs read with pm4py-compatible tooling use
// these keys, and the evaluator requires the first three.
const (
	ColumnCaseID    = "case:concept:name"
	ColumnActivity  = "concept:name"
	ColumnTimestamp = "time:timestamp"
	ColumnResource  = "org:resource"
)

// RequiredColumns lists the columns every evaluated dataset must carry.
var RequiredColumns = []string{ColumnCaseID, ColumnActivity, ColumnTimestamp}

// Event represents a single process mining event.
// Timestamps are stored as int64 nanoseconds since Unix epoch.
type Event struct {
	// CaseID identifies the process instance (trace).
	CaseID string

	// Activity is the event name/activity label.
	Activity string

	// Timestamp in nanoseconds since Unix epoch.
	Timestamp int64

	// Resource is the actor/resource performing the activity.
	Resource string

	// Attributes holds additional key-value pairs.
	Attributes []Attribute
}

// Attribute represents a key-value pair for event metadata.
type Attribute struct {
	Key   string
	Value string
	Type  AttrType
}

// AttrType indicates the semantic type of an attribute value.
type AttrType uint8

const (
	AttrTypeString AttrType = iota
	AttrTypeInt
	AttrTypeFloat
	AttrTypeBool
	AttrTypeTimestamp
)

func (t AttrType) String() string {
	switch t {
	case AttrTypeInt:
		return "int"
	case AttrTypeFloat:
		return "float"
	case AttrTypeBool:
		return "bool"
	case AttrTypeTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// Time returns the event timestamp as a time.Time in UTC.
func (e *Event) Time() time.Time {
	return time.Unix(0, e.Timestamp).UTC()
}

// Value returns the string form of the named column for this event.
// The standard columns resolve to the dedicated fields; anything else is
// looked up among the attributes.
func (e *Event) Value(key string) (string, bool) {
	switch key {
	case ColumnCaseID:
		return e.CaseID, true
	case ColumnActivity:
		return e.Activity, true
	case ColumnTimestamp:
		return e.Time().Format(time.RFC3339Nano), true
	case ColumnResource:
		return e.Resource, e.Resource != ""
	}
	for i := range e.Attributes {
		if e.Attributes[i].Key == key {
			return e.Attributes[i].Value, true
		}
	}
	return "", false
}

// Number returns the numeric form of the named column.
// Timestamps compare as Unix seconds.
func (e *Event) Number(key string) (float64, bool) {
	if key == ColumnTimestamp {
		return float64(e.Timestamp) / float64(time.Second), true
	}
	v, ok := e.Value(key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// InferAttrType guesses the semantic type of a raw attribute value.
func InferAttrType(v string) AttrType {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return AttrTypeInt
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return AttrTypeFloat
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return AttrTypeBool
	}
	return AttrTypeString
}
