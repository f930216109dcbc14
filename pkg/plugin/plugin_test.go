package plugin

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	lverrors "github.com/logflow/logview/pkg/errors"
)

func names[T any](items []Named[T]) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestSet_Resolve(t *testing.T) {
	s := NewSet[int](KindCharacterizer)
	s.Attach("stats", 1)
	s.Attach("cardinality", 2)
	s.Attach("examples", 3)
	s.Attach("stats", 4)

	tests := []struct {
		name    string
		request []string
		want    []string
	}{
		{"none selects all in attach order", nil, []string{"stats", "cardinality", "examples"}},
		{"wildcard", []string{All}, []string{"stats", "cardinality", "examples"}},
		{"wildcard among names", []string{"examples", All}, []string{"stats", "cardinality", "examples"}},
		{"named subset is sorted and deduplicated", []string{"stats", "examples", "stats"}, []string{"examples", "stats"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.request...)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, names(got)); diff != "" {
				t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	got, _ := s.Resolve("stats")
	if got[0].Impl != 4 {
		t.Errorf("re-attach did not replace: %d", got[0].Impl)
	}
}

func TestSet_ResolveUnknown(t *testing.T) {
	s := NewSet[string](KindTwoSetComparator)
	s.Attach("matrix", "m")

	got, err := s.Resolve("matrix", "venn")
	if !lverrors.IsCode(err, lverrors.CodeUnknownPlugin) {
		t.Fatalf("error = %v, want %s", err, lverrors.CodeUnknownPlugin)
	}
	if got != nil {
		t.Errorf("partial resolution returned %v", names(got))
	}
}

func TestSet_Empty(t *testing.T) {
	s := NewSet[int](KindMultiSetComparator)
	got, err := s.Resolve()
	if err != nil || len(got) != 0 {
		t.Errorf("Resolve() on empty set = %v, %v", got, err)
	}
}
