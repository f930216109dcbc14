package characterize

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/index"
	"github.com/logflow/logview/pkg/plugin"
)

// ColumnProfile holds information metrics of one column.
type ColumnProfile struct {
	Column   string
	Rows     int
	Nulls    int
	NullPct  float64
	Distinct int
	Entropy  float64 // Shannon entropy of the present values, in bits
}

// Profile reports, per column, the share of missing values, the number of
// distinct values and their entropy. A drop in entropy between the reference
// and the result shows which attributes the filter narrowed.
type Profile struct{}

// Characterize implements plugin.Characterizer.
func (Profile) Characterize(ctx context.Context, result, reference plugin.NamedSet) (plugin.Properties, error) {
	res, err := ProfileColumns(ctx, result.Data)
	if err != nil {
		return nil, err
	}
	ref, err := ProfileColumns(ctx, reference.Data)
	if err != nil {
		return nil, err
	}
	return plugin.Properties{
		result.Name:    res,
		reference.Name: ref,
	}, nil
}

// ProfileColumns computes a ColumnProfile for every column of ds, in column
// order.
func ProfileColumns(ctx context.Context, ds *dataset.Dataset) ([]ColumnProfile, error) {
	idx := index.NewCaseIndex(ds)
	columns := ds.Columns()
	out := make([]ColumnProfile, 0, len(columns))
	for _, col := range columns {
		if ctx.Err() != nil {
			return nil, lverrors.ContextCanceled("profile")
		}
		counts := make(map[string]int)
		p := ColumnProfile{Column: col, Rows: ds.Len()}
		for i := 0; i < ds.Len(); i++ {
			v, ok := ds.Event(i).Value(col)
			if !ok || v == "" {
				p.Nulls++
				continue
			}
			counts[v]++
		}
		p.Distinct = idx.Cardinality(col)
		if p.Rows > 0 {
			p.NullPct = 100 * float64(p.Nulls) / float64(p.Rows)
		}
		p.Entropy = entropyBits(counts, p.Rows-p.Nulls)
		out = append(out, p)
	}
	return out, nil
}

func entropyBits(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	dist := make([]float64, 0, len(counts))
	for _, n := range counts {
		dist = append(dist, float64(n)/float64(total))
	}
	return stat.Entropy(dist) / math.Ln2
}
