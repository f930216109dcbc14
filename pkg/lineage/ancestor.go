package lineage

import (
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/registry"
)

// CommonAncestor returns the most specific dataset both q and r derive
// from, or the initial source log when their lineages only meet there.
//
// The deeper of the two is first brought up to the depth of the other, then
// both climb in lockstep until they coincide. If r derives from q, q itself
// is returned.
func CommonAncestor(reg registry.QueryRegistry, q, r dataset.Handle) (*dataset.Dataset, error) {
	h, err := CommonAncestorHandle(reg, q, r)
	if err != nil {
		return nil, err
	}
	return Resolve(reg, h)
}

// CommonAncestorHandle is CommonAncestor returning the handle only.
func CommonAncestorHandle(reg registry.QueryRegistry, q, r dataset.Handle) (dataset.Handle, error) {
	depthQ, err := Depth(reg, q)
	if err != nil {
		return "", err
	}
	depthR, err := Depth(reg, r)
	if err != nil {
		return "", err
	}

	shallower, deeper := q, r
	delta := depthQ - depthR
	if delta > 0 {
		shallower, deeper = r, q
	} else {
		delta = -delta
	}
	if deeper, err = Up(reg, deeper, delta); err != nil {
		return "", err
	}

	for shallower != deeper && !reg.IsRoot(shallower) && !reg.IsRoot(deeper) {
		if shallower, err = Parent(reg, shallower); err != nil {
			return "", err
		}
		if deeper, err = Parent(reg, deeper); err != nil {
			return "", err
		}
	}

	if reg.IsRoot(shallower) || reg.IsRoot(deeper) {
		return reg.InitialSourceLog().Handle(), nil
	}
	return shallower, nil
}

// Resolve returns the dataset behind a handle known to the registry as
// either the root or a registered result set.
func Resolve(reg registry.QueryRegistry, h dataset.Handle) (*dataset.Dataset, error) {
	if reg.IsRoot(h) {
		return reg.InitialSourceLog(), nil
	}
	ev, err := reg.Evaluation(h)
	if err != nil {
		return nil, err
	}
	return ev.Result, nil
}
