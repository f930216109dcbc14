package registry

import (
	"sync"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

type entry struct {
	evaluation Evaluation
	labels     []string
	properties map[string]any
}

// Memory is the in-process QueryRegistry. It lives as long as the analysis
// session; nothing is persisted.
type Memory struct {
	mu sync.RWMutex

	initial *dataset.Dataset
	entries map[dataset.Handle]*entry
	order   []dataset.Handle

	// names maps result and complement handles to display names.
	names map[dataset.Handle]string
}

// NewMemory creates an empty registry.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[dataset.Handle]*entry),
		names:   make(map[dataset.Handle]string),
	}
}

// SetInitialSourceLog implements QueryRegistry.
func (m *Memory) SetInitialSourceLog(ds *dataset.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initial != nil {
		return lverrors.New(lverrors.CodeInitialSourceSet, "only one initial source log can be defined").
			WithContext("initial", m.initial.Handle())
	}
	if ds == nil {
		return lverrors.New(lverrors.CodeIncompleteEvaluation, "initial source log is nil")
	}
	m.initial = ds
	m.names[ds.Handle()] = InitialSourceName
	return nil
}

// InitialSourceLog implements QueryRegistry.
func (m *Memory) InitialSourceLog() *dataset.Dataset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initial
}

// IsRoot implements QueryRegistry.
func (m *Memory) IsRoot(h dataset.Handle) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initial != nil && m.initial.Handle() == h
}

// RegisterEvaluation implements QueryRegistry.
func (m *Memory) RegisterEvaluation(h dataset.Handle, ev Evaluation) error {
	if err := validate(ev); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[h]; ok {
		return lverrors.New(lverrors.CodeDuplicateResultSet, "a result set cannot be registered twice").
			WithContext("result_set", h)
	}
	if m.initial != nil && m.initial.Handle() == h {
		return lverrors.New(lverrors.CodeDuplicateResultSet, "the initial source log cannot be registered as a result set").
			WithContext("result_set", h)
	}

	src := ev.Source.Handle()
	if m.initial == nil || (m.initial.Handle() != src && m.entries[src] == nil) {
		return lverrors.New(lverrors.CodeUnknownResultSet, "the source log is neither the initial source log nor a registered result set").
			WithContext("result_set", h).
			WithContext("source", src)
	}

	m.entries[h] = &entry{evaluation: ev}
	m.order = append(m.order, h)
	if ev.ResultName != "" {
		m.names[ev.Result.Handle()] = ev.ResultName
	}
	if ev.ComplementName != "" {
		m.names[ev.Complement.Handle()] = ev.ComplementName
	}
	return nil
}

func validate(ev Evaluation) error {
	missing := ""
	switch {
	case ev.Query == nil:
		missing = "query"
	case ev.Source == nil:
		missing = "source_log"
	case ev.Result == nil:
		missing = "result_set"
	case ev.Complement == nil:
		missing = "complement_result_set"
	}
	if missing != "" {
		return lverrors.New(lverrors.CodeIncompleteEvaluation, "field is not present in the evaluation").
			WithContext("field", missing)
	}
	return nil
}

// RegisteredResultSetIDs implements QueryRegistry.
func (m *Memory) RegisteredResultSetIDs() []dataset.Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]dataset.Handle, len(m.order))
	copy(out, m.order)
	return out
}

// Evaluation implements QueryRegistry.
func (m *Memory) Evaluation(h dataset.Handle) (Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.entry(h)
	if err != nil {
		return Evaluation{}, err
	}
	return e.evaluation, nil
}

// AnnotateWithLabel implements QueryRegistry.
func (m *Memory) AnnotateWithLabel(h dataset.Handle, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(h)
	if err != nil {
		return err
	}
	for _, l := range e.labels {
		if l == label {
			return nil
		}
	}
	e.labels = append(e.labels, label)
	return nil
}

// Labels implements QueryRegistry.
func (m *Memory) Labels(h dataset.Handle) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.entry(h)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(e.labels))
	copy(out, e.labels)
	return out, nil
}

// AnnotateWithProperties implements QueryRegistry.
func (m *Memory) AnnotateWithProperties(h dataset.Handle, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.entry(h)
	if err != nil {
		return err
	}
	e.properties = props
	return nil
}

// Properties implements QueryRegistry.
func (m *Memory) Properties(h dataset.Handle) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.entry(h)
	if err != nil {
		return nil, err
	}
	return e.properties, nil
}

// Name implements QueryRegistry.
func (m *Memory) Name(h dataset.Handle) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[h]
	return name, ok
}

// Summary implements QueryRegistry.
func (m *Memory) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		Evaluations: make([]EvaluationRow, 0, len(m.order)),
		Queries:     make([]QueryRow, 0, len(m.order)),
	}
	for _, h := range m.order {
		e := m.entries[h]
		ev := e.evaluation
		labels := make([]string, len(e.labels))
		copy(labels, e.labels)

		s.Evaluations = append(s.Evaluations, EvaluationRow{
			Source: m.nameOf(ev.Source.Handle()),
			Query:  ev.Query.Name(),
			Result: m.nameOf(ev.Result.Handle()),
			Labels: labels,
		})
		s.Queries = append(s.Queries, QueryRow{
			Query:      ev.Query.Name(),
			Predicates: ev.Query.String(),
		})
	}
	return s
}

// nameOf falls back to the handle for datasets never named. Caller holds the lock.
func (m *Memory) nameOf(h dataset.Handle) string {
	if name, ok := m.names[h]; ok {
		return name
	}
	return h.String()
}

// entry looks up a registry item. Caller holds the lock.
func (m *Memory) entry(h dataset.Handle) (*entry, error) {
	e, ok := m.entries[h]
	if !ok {
		return nil, lverrors.UnknownResultSet(h)
	}
	return e, nil
}
