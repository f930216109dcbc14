// Package registry records the provenance of every derived result set.
//
// The registry is append-only. Each result set is registered once, together
// with the query, the source and the complement that produced it. Because
// every entry has exactly one source, the entries form a forest rooted at the
// initial source log, which is never itself an entry.
package registry

import (
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/predicate"
)

// InitialSourceName is the display name of the root log.
const InitialSourceName = "initial_source_log"

// Evaluation records one query application.
type Evaluation struct {
	Query      *predicate.Query
	Source     *dataset.Dataset
	Result     *dataset.Dataset
	Complement *dataset.Dataset

	// ResultName and ComplementName are the display names given at
	// evaluation time.
	ResultName     string
	ComplementName string
}

// QueryRegistry is the provenance store consulted by lineage algorithms and
// comparators.
type QueryRegistry interface {
	// SetInitialSourceLog defines the root log. It may be called once.
	SetInitialSourceLog(ds *dataset.Dataset) error

	// InitialSourceLog returns the root log, or nil before it is set.
	InitialSourceLog() *dataset.Dataset

	// IsRoot reports whether h is the handle of the initial source log.
	IsRoot(h dataset.Handle) bool

	// RegisterEvaluation stores an evaluation under its result handle. The
	// source must be the initial source log or a registered result set.
	RegisterEvaluation(h dataset.Handle, ev Evaluation) error

	// RegisteredResultSetIDs returns result handles in registration order.
	RegisteredResultSetIDs() []dataset.Handle

	// Evaluation returns the evaluation that produced h.
	Evaluation(h dataset.Handle) (Evaluation, error)

	// AnnotateWithLabel adds a label to a result set; repeated labels are ignored.
	AnnotateWithLabel(h dataset.Handle, label string) error

	// Labels returns the labels of a result set in insertion order.
	Labels(h dataset.Handle) ([]string, error)

	// AnnotateWithProperties replaces the properties of a result set.
	AnnotateWithProperties(h dataset.Handle, props map[string]any) error

	// Properties returns the properties of a result set.
	Properties(h dataset.Handle) (map[string]any, error)

	// Name returns the display name of any dataset the registry knows:
	// the root, a registered result or a registered complement.
	Name(h dataset.Handle) (string, bool)

	// Summary derives the evaluation and query relations.
	Summary() Summary
}

// Summary is the tabular view of the registry handed to external consumers.
type Summary struct {
	Evaluations []EvaluationRow
	Queries     []QueryRow
}

// EvaluationRow is one registered evaluation.
type EvaluationRow struct {
	Source string
	Query  string
	Result string
	Labels []string
}

// QueryRow is the canonical predicate string of one registered query.
type QueryRow struct {
	Query      string
	Predicates string
}
