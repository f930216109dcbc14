package dataset

import (
	"sort"
	"sync"
)

// Dictionary assigns dense uint32 ids to case keys. It is shared by every
// dataset derived from one initial log and only ever grows.
type Dictionary struct {
	mu  sync.RWMutex
	ids map[string]uint32
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{ids: make(map[string]uint32)}
}

// ID returns the id of key, assigning the next free id on first sight.
func (d *Dictionary) ID(key string) uint32 {
	d.mu.RLock()
	id, ok := d.ids[key]
	d.mu.RUnlock()
	if ok {
		return id
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.ids[key]; ok {
		return id
	}
	id = uint32(len(d.ids))
	d.ids[key] = id
	return id
}

// Trace groups the rows of one case.
type Trace struct {
	ID   uint32
	Key  string
	Rows []int
}

// Traces groups rows by case in first-appearance order. Rows of a trace
// keep source order.
func (d *Dataset) Traces() []Trace {
	pos := make(map[uint32]int)
	var traces []Trace
	for i, id := range d.caseIDs {
		p, ok := pos[id]
		if !ok {
			p = len(traces)
			pos[id] = p
			traces = append(traces, Trace{ID: id, Key: d.events[i].CaseID})
		}
		traces[p].Rows = append(traces[p].Rows, i)
	}
	return traces
}

// Span returns the first and last timestamps of a trace.
func (d *Dataset) Span(t Trace) (first, last int64) {
	for n, r := range t.Rows {
		ts := d.events[r].Timestamp
		if n == 0 || ts < first {
			first = ts
		}
		if n == 0 || ts > last {
			last = ts
		}
	}
	return first, last
}

// Ordered returns the rows of a trace sorted by timestamp. Ties keep
// source order.
func (d *Dataset) Ordered(t Trace) []int {
	rows := make([]int, len(t.Rows))
	copy(rows, t.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return d.events[rows[i]].Timestamp < d.events[rows[j]].Timestamp
	})
	return rows
}
