// Package evaluator applies queries to datasets and partitions them into a
// matched result set and its complement.
package evaluator

import (
	"context"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/predicate"
)

// QueryEvaluator partitions a dataset by a query.
type QueryEvaluator interface {
	// Evaluate returns the matched rows and the complement rows of source.
	// Together they partition source by case id.
	Evaluate(ctx context.Context, source *dataset.Dataset, query *predicate.Query) (matched, complement *dataset.Dataset, err error)
}

// DatasetEvaluator evaluates queries on in-memory datasets.
type DatasetEvaluator struct {
	required []string
}

// New creates an evaluator requiring the standard XES columns.
func New() *DatasetEvaluator {
	return &DatasetEvaluator{required: model.RequiredColumns}
}

// NewWithColumns creates an evaluator requiring a custom column set.
func NewWithColumns(required ...string) *DatasetEvaluator {
	return &DatasetEvaluator{required: required}
}

// Evaluate implements QueryEvaluator.
func (e *DatasetEvaluator) Evaluate(ctx context.Context, source *dataset.Dataset, query *predicate.Query) (*dataset.Dataset, *dataset.Dataset, error) {
	if err := e.sanityCheck(source); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, lverrors.Wrap(err, lverrors.CodeContextCanceled, "evaluation canceled").
			WithContext("query", query.Name())
	}

	matched, err := query.Evaluate(source)
	if err != nil {
		code := lverrors.GetCode(err)
		if code == lverrors.CodeUnknown {
			code = lverrors.CodeEvaluationFailed
		}
		return nil, nil, lverrors.Wrap(err, code, "query evaluation failed").
			WithContext("query", query.Name())
	}
	// A query that filters nothing hands back its input. The result set
	// must still be a snapshot of its own.
	if matched.Handle() == source.Handle() {
		matched = source.SelectCases(source.Cases())
	}

	complement := source.ExcludeCases(matched.Cases())
	return matched, complement, nil
}

// sanityCheck fails fast when a required column is absent.
func (e *DatasetEvaluator) sanityCheck(ds *dataset.Dataset) error {
	for _, col := range e.required {
		if !ds.HasColumn(col) {
			return lverrors.MissingColumn(col, ds.Columns())
		}
	}
	return nil
}
