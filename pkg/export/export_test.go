package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	"github.com/logflow/logview/pkg/testing/generators"
)

func fixture() *dataset.Dataset {
	return dataset.New(generators.Events(
		generators.NewCase("c1", generators.At("A", 0, "amount", "10"), generators.At("B", time.Hour)),
		generators.NewCase("c2", generators.At("A", 0, "amount", "20")),
	), nil)
}

func TestSchema(t *testing.T) {
	s := Schema(fixture(), map[string]string{MetaName: "x"})

	ts, ok := s.FieldsByName(model.ColumnTimestamp)
	if !ok || ts[0].Type.ID() != arrow.TIMESTAMP {
		t.Errorf("timestamp field = %v", ts)
	}
	caseID, _ := s.FieldsByName(model.ColumnCaseID)
	if caseID[0].Nullable {
		t.Error("case id is nullable")
	}
	amount, _ := s.FieldsByName("amount")
	if !amount[0].Nullable {
		t.Error("attribute column is not nullable")
	}
	if v, ok := s.Metadata().GetValue(MetaName); !ok || v != "x" {
		t.Errorf("metadata = %v", s.Metadata())
	}
}

func TestRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ds := fixture()
	rec := Record(mem, ds, Schema(ds, nil))
	defer rec.Release()

	if rec.NumRows() != 3 || rec.NumCols() != 4 {
		t.Fatalf("record = %d x %d", rec.NumRows(), rec.NumCols())
	}
	// The second event of c1 has no amount.
	if !rec.Column(3).IsNull(1) || rec.Column(3).IsNull(0) {
		t.Error("amount nulls misplaced")
	}
}

func TestWriteReadRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, fixture(), map[string]string{MetaQuery: "(amount < 30)"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	schema, rows, err := ReadRows(context.Background(), &buf)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}
	if v, _ := schema.Metadata().GetValue(MetaQuery); v != "(amount < 30)" {
		t.Errorf("query metadata = %q", v)
	}

	if _, _, err := ReadRows(context.Background(), bytes.NewReader([]byte("not arrow"))); err == nil {
		t.Error("ReadRows() accepted garbage")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"cheap":            "cheap.arrow",
		"complement_cheap": "complement_cheap.arrow",
		"a b/c":            "a_b_c.arrow",
		"":                 "result_set.arrow",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExporter(t *testing.T) {
	dir := t.TempDir()
	ds := fixture()
	jobs := []Job{
		{Name: "all", Data: ds},
		{Name: "one", Data: ds.SelectCases(roaring.BitmapOf(ds.CaseOf(2))), Metadata: map[string]string{MetaSource: "all"}},
		{Name: "empty", Data: ds.SelectCases(roaring.New())},
	}

	var written atomic.Int32
	exp := NewExporter(filepath.Join(dir, "out"), 2)
	exp.OnWritten = func(Result) { written.Add(1) }

	results, err := exp.Export(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if written.Load() != 3 {
		t.Errorf("OnWritten called %d times", written.Load())
	}

	wantRows := []int64{3, 1, 0}
	for i, res := range results {
		if res.Name != jobs[i].Name {
			t.Errorf("result %d is %s, want %s", i, res.Name, jobs[i].Name)
		}
		f, err := os.Open(res.Path)
		if err != nil {
			t.Fatal(err)
		}
		schema, rows, err := ReadRows(context.Background(), f)
		f.Close()
		if err != nil {
			t.Fatalf("ReadRows(%s) error = %v", res.Path, err)
		}
		if rows != wantRows[i] {
			t.Errorf("%s: %d rows, want %d", res.Name, rows, wantRows[i])
		}
		if name, _ := schema.Metadata().GetValue(MetaName); name != res.Name {
			t.Errorf("%s: name metadata = %q", res.Name, name)
		}
		if res.Bytes == 0 {
			t.Errorf("%s: zero bytes", res.Name)
		}
	}
}

func TestExporter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExporter(t.TempDir(), 1).Export(ctx, []Job{{Name: "x", Data: fixture()}})
	if err == nil {
		t.Error("Export() on a canceled context succeeded")
	}
}
