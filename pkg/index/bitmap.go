// Package index provides bitmap indexes for case-level attribute lookups on
// event logs.
package index

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/pkg/dataset"
)

// CaseIndex maps column values to roaring bitmaps of the cases that carry
// them in at least one event. Columns are indexed on first use.
type CaseIndex struct {
	mu sync.RWMutex

	ds *dataset.Dataset

	// columns maps column_name -> value -> bitmap of case ids
	columns map[string]map[string]*roaring.Bitmap
}

// NewCaseIndex creates an empty index over a dataset.
func NewCaseIndex(ds *dataset.Dataset) *CaseIndex {
	return &CaseIndex{
		ds:      ds,
		columns: make(map[string]map[string]*roaring.Bitmap),
	}
}

// indexColumnLocked returns the value map of a column, building it on first
// use.
// Events without the column, or with an empty value, are skipped.
func (idx *CaseIndex) indexColumnLocked(column string) map[string]*roaring.Bitmap {
	if valMap, ok := idx.columns[column]; ok {
		return valMap
	}
	valMap := make(map[string]*roaring.Bitmap)
	for row := 0; row < idx.ds.Len(); row++ {
		value, ok := idx.ds.Event(row).Value(column)
		if !ok || value == "" {
			continue
		}
		bm, ok := valMap[value]
		if !ok {
			bm = roaring.New()
			valMap[value] = bm
		}
		bm.Add(idx.ds.CaseOf(row))
	}
	idx.columns[column] = valMap
	return valMap
}

// LookupAny returns the cases having at least one event whose column value
// is among values.
func (idx *CaseIndex) LookupAny(column string, values ...string) *roaring.Bitmap {
	idx.mu.Lock()
	valMap := idx.indexColumnLocked(column)
	idx.mu.Unlock()

	result := roaring.New()
	for _, v := range values {
		if bm, ok := valMap[v]; ok {
			result.Or(bm)
		}
	}
	return result
}

// Cardinality returns the number of distinct values for a column.
func (idx *CaseIndex) Cardinality(column string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.indexColumnLocked(column))
}

// DistinctValues returns all distinct values for a column, sorted.
func (idx *CaseIndex) DistinctValues(column string) []string {
	idx.mu.Lock()
	valMap := idx.indexColumnLocked(column)
	idx.mu.Unlock()

	values := make([]string, 0, len(valMap))
	for v := range valMap {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
