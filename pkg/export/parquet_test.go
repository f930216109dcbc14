package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/go-cmp/cmp"

	"github.com/logflow/logview/internal/model"
)

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParquetWriter(t *testing.T) {
	pw, err := NewParquetWriter("")
	if err != nil {
		t.Fatalf("NewParquetWriter() error = %v", err)
	}
	defer pw.Close()
	pw.CaseSummary = true

	dir := t.TempDir()
	exp := NewExporter(dir, 2)
	exp.Parquet = pw

	ds := fixture()
	results, err := exp.Export(context.Background(), []Job{
		{Name: "all", Data: ds},
		{Name: "one", Data: ds.SelectCases(roaring.BitmapOf(ds.CaseOf(2)))},
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if results[0].Path != filepath.Join(dir, "all.parquet") {
		t.Errorf("Path = %s", results[0].Path)
	}

	db := openDuckDB(t)

	var got []string
	rows, err := db.Query(fmt.Sprintf(`SELECT %s, %s, amount FROM read_parquet('%s')`,
		quoteIdent(model.ColumnCaseID), quoteIdent(model.ColumnActivity), results[0].Path))
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	for rows.Next() {
		var caseID, activity string
		var amount sql.NullString
		if err := rows.Scan(&caseID, &activity, &amount); err != nil {
			t.Fatal(err)
		}
		got = append(got, fmt.Sprintf("%s:%s:%s", caseID, activity, amount.String))
	}
	rows.Close()
	want := []string{"c1:A:10", "c1:B:", "c2:A:20"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	var n int
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet('%s')`, results[1].Path)).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("one.parquet has %d rows, want 1", n)
	}

	var events int
	var duration float64
	summary := filepath.Join(dir, CaseSummaryFileName("all"))
	err = db.QueryRow(fmt.Sprintf(
		`SELECT event_count, duration_seconds FROM read_parquet('%s') WHERE case_id = 'c1'`, summary)).
		Scan(&events, &duration)
	if err != nil {
		t.Fatalf("read case summary: %v", err)
	}
	if events != 2 || duration != 3600 {
		t.Errorf("c1 summary = %d events over %vs, want 2 over 3600s", events, duration)
	}
}

func TestParquetFileNames(t *testing.T) {
	if got := ParquetFileName("a/b"); got != "a_b.parquet" {
		t.Errorf("ParquetFileName() = %q", got)
	}
	if got := CaseSummaryFileName(""); got != "result_set.cases.parquet" {
		t.Errorf("CaseSummaryFileName() = %q", got)
	}
}
