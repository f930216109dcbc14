// Package dataset provides immutable event-log snapshots with opaque identity.
//
// A Dataset is never compared by content. Every snapshot receives a Handle
// when it is created, and two snapshots are the same entity only when their
// handles are equal. All datasets derived from one initial log share a case
// Dictionary, so their case sets can be combined with bitmap algebra.
package dataset

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"

	"github.com/logflow/logview/internal/model"
)

// Handle is the opaque identity of a dataset snapshot.
type Handle string

// NewHandle mints a fresh, never reused handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

// String returns the handle text.
func (h Handle) String() string {
	return string(h)
}

// IsZero reports whether the handle is unset.
func (h Handle) IsZero() bool {
	return h == ""
}

// Dataset is an immutable-by-convention collection of events.
type Dataset struct {
	handle  Handle
	events  []model.Event
	caseIDs []uint32
	columns []string
	colSet  map[string]struct{}
	dict    *Dictionary
	cases   *roaring.Bitmap
}

// New creates a root dataset with its own case dictionary.
// If columns is empty the column set is derived from the events.
func New(events []model.Event, columns []string) *Dataset {
	if len(columns) == 0 {
		columns = ColumnsOf(events)
	}
	dict := NewDictionary()
	caseIDs := make([]uint32, len(events))
	for i := range events {
		caseIDs[i] = dict.ID(events[i].CaseID)
	}
	return build(events, caseIDs, columns, dict)
}

func build(events []model.Event, caseIDs []uint32, columns []string, dict *Dictionary) *Dataset {
	colSet := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		colSet[c] = struct{}{}
	}
	cases := roaring.New()
	for _, id := range caseIDs {
		cases.Add(id)
	}
	return &Dataset{
		handle:  NewHandle(),
		events:  events,
		caseIDs: caseIDs,
		columns: columns,
		colSet:  colSet,
		dict:    dict,
		cases:   cases,
	}
}

// Handle returns the identity of the snapshot.
func (d *Dataset) Handle() Handle {
	return d.handle
}

// Len returns the number of events.
func (d *Dataset) Len() int {
	return len(d.events)
}

// IsEmpty reports whether the dataset has no events.
func (d *Dataset) IsEmpty() bool {
	return len(d.events) == 0
}

// Event returns a pointer to the i-th event. Callers must not mutate it.
func (d *Dataset) Event(i int) *model.Event {
	return &d.events[i]
}

// Events returns the underlying rows. Callers must not mutate them.
func (d *Dataset) Events() []model.Event {
	return d.events
}

// CaseOf returns the dictionary id of the case the i-th event belongs to.
func (d *Dataset) CaseOf(i int) uint32 {
	return d.caseIDs[i]
}

// Columns returns the column names carried by the dataset.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether the dataset carries the named column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.colSet[name]
	return ok
}

// SameUniverse reports whether both datasets derive from the same initial log.
func (d *Dataset) SameUniverse(other *Dataset) bool {
	return other != nil && d.dict == other.dict
}

// Cases returns a copy of the set of case ids present.
func (d *Dataset) Cases() *roaring.Bitmap {
	return d.cases.Clone()
}

// CaseCount returns the number of distinct cases.
func (d *Dataset) CaseCount() int {
	return int(d.cases.GetCardinality())
}

// CaseKeys returns the case keys in first-appearance order.
func (d *Dataset) CaseKeys() []string {
	traces := d.Traces()
	keys := make([]string, len(traces))
	for i, t := range traces {
		keys[i] = t.Key
	}
	return keys
}

// SelectCases returns a new snapshot holding the rows whose case is in
// cases, in source order.
func (d *Dataset) SelectCases(cases *roaring.Bitmap) *Dataset {
	return d.filterRows(func(id uint32) bool { return cases.Contains(id) })
}

// ExcludeCases returns a new snapshot holding the rows whose case is not in
// cases, in source order.
func (d *Dataset) ExcludeCases(cases *roaring.Bitmap) *Dataset {
	return d.filterRows(func(id uint32) bool { return !cases.Contains(id) })
}

func (d *Dataset) filterRows(keep func(uint32) bool) *Dataset {
	events := make([]model.Event, 0, len(d.events))
	caseIDs := make([]uint32, 0, len(d.events))
	for i, id := range d.caseIDs {
		if keep(id) {
			events = append(events, d.events[i])
			caseIDs = append(caseIDs, id)
		}
	}
	return build(events, caseIDs, d.columns, d.dict)
}

// ColumnsOf derives the column set of a slice of events: the standard
// columns followed by attribute keys in first-appearance order.
func ColumnsOf(events []model.Event) []string {
	if len(events) == 0 {
		return nil
	}
	columns := []string{model.ColumnCaseID, model.ColumnActivity, model.ColumnTimestamp}
	seen := map[string]struct{}{
		model.ColumnCaseID:    {},
		model.ColumnActivity:  {},
		model.ColumnTimestamp: {},
	}
	for i := range events {
		if events[i].Resource != "" {
			if _, ok := seen[model.ColumnResource]; !ok {
				seen[model.ColumnResource] = struct{}{}
				columns = append(columns, model.ColumnResource)
			}
		}
		for _, attr := range events[i].Attributes {
			if _, ok := seen[attr.Key]; !ok {
				seen[attr.Key] = struct{}{}
				columns = append(columns, attr.Key)
			}
		}
	}
	return columns
}
