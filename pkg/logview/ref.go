package logview

import (
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// Ref designates a dataset either by display name or directly.
type Ref struct {
	name string
	ds   *dataset.Dataset
}

// ByName refers to a dataset by its display name.
func ByName(name string) Ref {
	return Ref{name: name}
}

// ByDataset refers to a dataset directly.
func ByDataset(ds *dataset.Dataset) Ref {
	return Ref{ds: ds}
}

// String returns the name or handle the reference was built from.
func (r Ref) String() string {
	if r.ds != nil {
		return r.ds.Handle().String()
	}
	return r.name
}

func (lv *LogView) resolve(ref Ref) (*dataset.Dataset, error) {
	if ref.ds != nil {
		return ref.ds, nil
	}
	lv.mu.RLock()
	ds, ok := lv.names[ref.name]
	lv.mu.RUnlock()
	if !ok {
		return nil, lverrors.UnknownResultSet(ref.name)
	}
	return ds, nil
}

func (lv *LogView) resolveAll(refs []Ref) ([]*dataset.Dataset, error) {
	out := make([]*dataset.Dataset, len(refs))
	for i, ref := range refs {
		ds, err := lv.resolve(ref)
		if err != nil {
			return nil, err
		}
		out[i] = ds
	}
	return out, nil
}
