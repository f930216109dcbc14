// Package characterize describes a result set against a reference log.
// Each characterizer implements plugin.Characterizer.
package characterize

import (
	"context"
	"math"
	"math/rand"
	"strings"

	"github.com/RoaringBitmap/roaring"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/predicate"
)

// SetCardinality counts the distinct cases of both sets.
type SetCardinality struct{}

// Characterize implements plugin.Characterizer.
func (SetCardinality) Characterize(_ context.Context, result, reference plugin.NamedSet) (plugin.Properties, error) {
	return plugin.Properties{
		result.Name:    result.Data.CaseCount(),
		reference.Name: reference.Data.CaseCount(),
	}, nil
}

// ColumnStats summarizes one numeric column.
type ColumnStats struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
}

// SummaryStatistics reports mean, standard deviation, min and max of every
// numeric attribute. Index-like columns and the standard columns are skipped.
type SummaryStatistics struct{}

// Characterize implements plugin.Characterizer.
func (SummaryStatistics) Characterize(_ context.Context, result, reference plugin.NamedSet) (plugin.Properties, error) {
	return plugin.Properties{
		result.Name:    Summarize(result.Data),
		reference.Name: Summarize(reference.Data),
	}, nil
}

// Summarize computes ColumnStats for the numeric columns of ds.
// A column counts as numeric when every present value parses as a number.
func Summarize(ds *dataset.Dataset) []ColumnStats {
	var out []ColumnStats
	for _, col := range ds.Columns() {
		if skipColumn(col) {
			continue
		}
		values, ok := numericColumn(ds, col)
		if !ok || len(values) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(values, nil)
		if len(values) < 2 {
			std = math.NaN()
		}
		out = append(out, ColumnStats{
			Column: col,
			Count:  len(values),
			Mean:   mean,
			Std:    std,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		})
	}
	return out
}

func skipColumn(col string) bool {
	switch col {
	case model.ColumnCaseID, model.ColumnActivity, model.ColumnTimestamp, model.ColumnResource:
		return true
	}
	return strings.Contains(col, "index")
}

func numericColumn(ds *dataset.Dataset, col string) ([]float64, bool) {
	var values []float64
	for i := 0; i < ds.Len(); i++ {
		raw, present := ds.Event(i).Value(col)
		if !present || raw == "" {
			continue
		}
		v, ok := ds.Event(i).Number(col)
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// Samples holds example cases drawn by RandomExampleRetriever. A nil field
// means the corresponding partition was empty.
type Samples struct {
	OnlyResult    *dataset.Dataset
	OnlyReference *dataset.Dataset
	Both          *dataset.Dataset
}

// RandomExampleRetriever draws example cases present only in the result,
// only in the reference, and in both.
type RandomExampleRetriever struct {
	samples int
	rng     *rand.Rand
}

// NewRandomExampleRetriever creates the characterizer. A fixed seed makes
// the draw reproducible.
func NewRandomExampleRetriever(samples int, seed int64) *RandomExampleRetriever {
	if samples < 1 {
		samples = 1
	}
	return &RandomExampleRetriever{samples: samples, rng: rand.New(rand.NewSource(seed))}
}

// Characterize implements plugin.Characterizer.
func (c *RandomExampleRetriever) Characterize(_ context.Context, result, reference plugin.NamedSet) (plugin.Properties, error) {
	resultCases := result.Data.Cases()
	referenceCases := reference.Data.Cases()
	common := roaring.And(resultCases, referenceCases)

	s := Samples{
		OnlyResult:    c.draw(result.Data, roaring.AndNot(resultCases, common)),
		OnlyReference: c.draw(reference.Data, roaring.AndNot(referenceCases, common)),
		Both:          c.draw(reference.Data, common),
	}
	return plugin.Properties{
		"Sample from " + result.Name:                           s.OnlyResult,
		"Sample from " + reference.Name:                        s.OnlyReference,
		"Sample in " + result.Name + " and " + reference.Name: s.Both,
	}, nil
}

func (c *RandomExampleRetriever) draw(ds *dataset.Dataset, valid *roaring.Bitmap) *dataset.Dataset {
	if valid.IsEmpty() {
		return nil
	}
	if int(valid.GetCardinality()) <= c.samples {
		return ds.SelectCases(valid)
	}
	ids := valid.ToArray()
	c.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return ds.SelectCases(roaring.BitmapOf(ids[:c.samples]...))
}

// PropertyShare is the number and fraction of cases satisfying a predicate.
type PropertyShare struct {
	Predicate string
	Cases     int
	Share     float64
}

// PropertiesEvaluator measures how many cases of each set satisfy a list
// of predicates.
type PropertiesEvaluator struct {
	properties []predicate.Predicate
}

// NewPropertiesEvaluator creates the characterizer.
func NewPropertiesEvaluator(properties ...predicate.Predicate) *PropertiesEvaluator {
	return &PropertiesEvaluator{properties: properties}
}

// Characterize implements plugin.Characterizer.
func (c *PropertiesEvaluator) Characterize(_ context.Context, result, reference plugin.NamedSet) (plugin.Properties, error) {
	r, err := c.evaluate(result.Data)
	if err != nil {
		return nil, err
	}
	ref, err := c.evaluate(reference.Data)
	if err != nil {
		return nil, err
	}
	return plugin.Properties{result.Name: r, reference.Name: ref}, nil
}

func (c *PropertiesEvaluator) evaluate(ds *dataset.Dataset) ([]PropertyShare, error) {
	total := ds.CaseCount()
	out := make([]PropertyShare, 0, len(c.properties))
	for _, p := range c.properties {
		matched, err := p.Evaluate(ds)
		if err != nil {
			return nil, err
		}
		n := matched.CaseCount()
		share := 0.0
		if total > 0 {
			share = math.Round(float64(n)/float64(total)*1000) / 1000
		}
		out = append(out, PropertyShare{Predicate: p.String(), Cases: n, Share: share})
	}
	return out, nil
}
