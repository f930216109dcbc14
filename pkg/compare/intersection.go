package compare

import (
	"context"

	"github.com/RoaringBitmap/roaring"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/lineage"
	"github.com/logflow/logview/pkg/plugin"
	"github.com/logflow/logview/pkg/predicate"
	"github.com/logflow/logview/pkg/registry"
)

// Names of the synthetic queries rebuilt from the registry.
const (
	QueryCommonAncestor = "query_common_ancestor"
	QueryQ              = "query_q"
	QueryR              = "query_r"
)

// Matrix is the 2x2 contingency table of two result sets, with the common
// ancestor's cases as the universe for negation.
type Matrix struct {
	QAndR       int `json:"q and r"`
	QAndNotR    int `json:"q and !r"`
	NotQAndR    int `json:"!q and r"`
	NotQAndNotR int `json:"!q and !r"`
}

// AnalysisContext holds the query chains reconstructed from the registry.
type AnalysisContext struct {
	CommonAncestor plugin.NamedSet
	ToAncestor     *predicate.Query
	ToQ            *predicate.Query
	ToR            *predicate.Query
}

// Report is the full output of an intersection matrix comparison.
type Report struct {
	Q           string
	R           string
	Context     AnalysisContext
	Matrix      Matrix
	Positioning Positioning
}

// IntersectionMatrix is a two-set comparator that locates the common
// ancestor of two result sets and counts how their cases overlap within it.
type IntersectionMatrix struct{}

// NewIntersectionMatrix creates the comparator.
func NewIntersectionMatrix() *IntersectionMatrix {
	return &IntersectionMatrix{}
}

// Compare implements plugin.TwoSetComparator.
func (m *IntersectionMatrix) Compare(ctx context.Context, q, r plugin.NamedSet, reg registry.QueryRegistry) (plugin.Properties, error) {
	rep, err := m.Report(ctx, q, r, reg)
	if err != nil {
		return nil, err
	}
	return plugin.Properties{
		"analysis_context":       rep.Context,
		"intersection_matrix":    rep.Matrix,
		"result_set_positioning": rep.Positioning,
		"report":                 rep,
	}, nil
}

// Report runs the comparison and returns it in typed form.
func (m *IntersectionMatrix) Report(ctx context.Context, q, r plugin.NamedSet, reg registry.QueryRegistry) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeContextCanceled, "comparison canceled")
	}

	ancestor, err := lineage.CommonAncestor(reg, q.Data.Handle(), r.Data.Handle())
	if err != nil {
		return nil, err
	}
	analysis, err := domainConditions(reg, ancestor, q.Data, r.Data)
	if err != nil {
		return nil, err
	}

	matrix := ComputeMatrix(ancestor, q.Data, r.Data)
	pos := InferPositioning(analysis.ToQ.Name(), analysis.ToR.Name(),
		matrix.QAndR, matrix.QAndNotR, matrix.NotQAndR, matrix.NotQAndNotR)

	return &Report{
		Q:           q.Name,
		R:           r.Name,
		Context:     analysis,
		Matrix:      matrix,
		Positioning: pos,
	}, nil
}

func domainConditions(reg registry.QueryRegistry, ancestor, q, r *dataset.Dataset) (AnalysisContext, error) {
	root := reg.InitialSourceLog().Handle()

	toAncestor, err := lineage.PredicatesBetween(reg, root, ancestor.Handle())
	if err != nil {
		return AnalysisContext{}, err
	}
	toQ, err := lineage.PredicatesBetween(reg, ancestor.Handle(), q.Handle())
	if err != nil {
		return AnalysisContext{}, err
	}
	toR, err := lineage.PredicatesBetween(reg, ancestor.Handle(), r.Handle())
	if err != nil {
		return AnalysisContext{}, err
	}

	name, _ := reg.Name(ancestor.Handle())
	return AnalysisContext{
		CommonAncestor: plugin.NamedSet{Name: name, Data: ancestor},
		ToAncestor:     predicate.NewQuery(QueryCommonAncestor, toAncestor...),
		ToQ:            predicate.NewQuery(QueryQ, toQ...),
		ToR:            predicate.NewQuery(QueryR, toR...),
	}, nil
}

// ComputeMatrix counts the cases of q and r inside the universe of ancestor.
func ComputeMatrix(ancestor, q, r *dataset.Dataset) Matrix {
	universe := ancestor.Cases()
	qCases := q.Cases()
	rCases := r.Cases()
	notQ := roaring.AndNot(universe, qCases)
	notR := roaring.AndNot(universe, rCases)

	return Matrix{
		QAndR:       int(roaring.And(qCases, rCases).GetCardinality()),
		QAndNotR:    int(roaring.AndNot(qCases, rCases).GetCardinality()),
		NotQAndR:    int(roaring.AndNot(rCases, qCases).GetCardinality()),
		NotQAndNotR: int(roaring.And(notQ, notR).GetCardinality()),
	}
}
