package compare

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/plugin"
)

// Intersection is one bar of an UpSet diagram: the cases that belong to
// exactly the listed result sets and to no other.
type Intersection struct {
	Members []string
	Count   int
}

// QueryDescription lists a compared query with its canonical predicates.
type QueryDescription struct {
	Query      string
	Predicates string
}

// UpSet is a multi-set comparator counting exclusive intersections of case
// sets.
type UpSet struct {
	logger *log.Logger
}

// NewUpSet creates the comparator. A nil logger writes to stderr.
func NewUpSet(logger *log.Logger) *UpSet {
	if logger == nil {
		logger = log.New(os.Stderr, "[upset] ", log.LstdFlags)
	}
	return &UpSet{logger: logger}
}

// CompareAll implements plugin.MultiSetComparator. Fewer than two result
// sets yield a warning and no properties.
func (u *UpSet) CompareAll(ctx context.Context, sets []plugin.QueryResult) (plugin.Properties, error) {
	if len(sets) <= 1 {
		u.logger.Printf("WARN: at least two result sets must be provided to UpSet, got %d", len(sets))
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeContextCanceled, "comparison canceled")
	}

	names := make([]string, len(sets))
	cases := make([]*roaring.Bitmap, len(sets))
	union := roaring.New()
	queries := make([]QueryDescription, len(sets))
	for i, s := range sets {
		names[i] = s.Query.Name()
		cases[i] = s.Result.Data.Cases()
		union.Or(cases[i])
		queries[i] = QueryDescription{Query: s.Query.Name(), Predicates: s.Query.String()}
	}

	counts := make(map[string]*Intersection)
	it := union.Iterator()
	for it.HasNext() {
		id := it.Next()
		var members []string
		for i, bm := range cases {
			if bm.Contains(id) {
				members = append(members, names[i])
			}
		}
		key := strings.Join(members, "\x00")
		if in, ok := counts[key]; ok {
			in.Count++
		} else {
			counts[key] = &Intersection{Members: members, Count: 1}
		}
	}

	out := make([]Intersection, 0, len(counts))
	for _, in := range counts {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.Join(out[i].Members, ",") < strings.Join(out[j].Members, ",")
	})

	return plugin.Properties{
		"intersections": out,
		"queries":       queries,
	}, nil
}
