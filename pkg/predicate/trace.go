package predicate

import (
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
)

// StartWith keeps the cases whose first event (by timestamp) has one of
// the given activities.
type StartWith struct {
	Activities []string
}

// StartsWith creates a StartWith predicate.
func StartsWith(activities ...string) *StartWith {
	return &StartWith{Activities: activities}
}

// Evaluate implements Predicate.
func (p *StartWith) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *StartWith) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	return boundaryActivity(ds, p.Activities, true)
}

// String implements Predicate.
func (p *StartWith) String() string {
	return fmt.Sprintf("(StartWith %s)", valueSet(toAny(p.Activities)))
}

// EndWith keeps the cases whose last event (by timestamp) has one of the
// given activities.
type EndWith struct {
	Activities []string
}

// EndsWith creates an EndWith predicate.
func EndsWith(activities ...string) *EndWith {
	return &EndWith{Activities: activities}
}

// Evaluate implements Predicate.
func (p *EndWith) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *EndWith) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	return boundaryActivity(ds, p.Activities, false)
}

// String implements Predicate.
func (p *EndWith) String() string {
	return fmt.Sprintf("(EndWith %s)", valueSet(toAny(p.Activities)))
}

func boundaryActivity(ds *dataset.Dataset, activities []string, first bool) (*roaring.Bitmap, error) {
	if err := requireColumn(ds, model.ColumnActivity); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		want[a] = struct{}{}
	}

	cases := roaring.New()
	for _, t := range ds.Traces() {
		rows := ds.Ordered(t)
		row := rows[len(rows)-1]
		if first {
			row = rows[0]
		}
		if _, ok := want[ds.Event(row).Activity]; ok {
			cases.Add(t.ID)
		}
	}
	return cases, nil
}

// DurationWithin keeps the cases whose duration, the distance between the
// last and the first event timestamp, lies in [Min, Max] seconds.
type DurationWithin struct {
	MinSeconds float64
	MaxSeconds float64
}

// Duration creates a DurationWithin predicate.
func Duration(minSeconds, maxSeconds float64) *DurationWithin {
	return &DurationWithin{MinSeconds: minSeconds, MaxSeconds: maxSeconds}
}

// Evaluate implements Predicate.
func (p *DurationWithin) Evaluate(ds *dataset.Dataset) (*dataset.Dataset, error) {
	return apply(p, ds)
}

func (p *DurationWithin) matchCases(ds *dataset.Dataset) (*roaring.Bitmap, error) {
	if err := requireColumn(ds, model.ColumnTimestamp); err != nil {
		return nil, err
	}
	cases := roaring.New()
	for _, t := range ds.Traces() {
		first, last := ds.Span(t)
		d := float64(last-first) / float64(time.Second)
		if d >= p.MinSeconds && d <= p.MaxSeconds {
			cases.Add(t.ID)
		}
	}
	return cases, nil
}

// String implements Predicate.
func (p *DurationWithin) String() string {
	return fmt.Sprintf("(DurationWithin [%s, %s])", formatNumber(p.MinSeconds), formatNumber(p.MaxSeconds))
}
