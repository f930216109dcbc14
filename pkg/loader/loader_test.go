package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/logflow/logview/internal/model"
	lverrors "github.com/logflow/logview/pkg/errors"
	"github.com/logflow/logview/pkg/testing/generators"
)

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"log.csv":        FormatCSV,
		"LOG.TSV":        FormatTSV,
		"a/b.json":       FormatJSON,
		"events.ndjson":  FormatJSONL,
		"events.parquet": FormatParquet,
		"book.xlsx":      FormatXLSX,
	}
	for path, want := range tests {
		got, err := DetectFormat(path)
		if err != nil || got != want {
			t.Errorf("DetectFormat(%q) = %q, %v; want %q", path, got, err, want)
		}
	}
	if _, err := DetectFormat("log.xes"); !lverrors.IsCode(err, lverrors.CodeInvalidFormat) {
		t.Errorf("DetectFormat(xes) error = %v, want %s", err, lverrors.CodeInvalidFormat)
	}
}

func TestTimestampParser(t *testing.T) {
	want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC).UnixNano()

	tests := []struct {
		layout string
		input  string
	}{
		{"", "2024-03-05T14:30:00Z"},
		{"", "2024-03-05 14:30:00"},
		{"", "2024/03/05 14:30:00"},
		{"", "03/05/2024 14:30:00"},
		{"", "45356.6041666667"},
		{"02.01.2006 15:04", "05.03.2024 14:30"},
		{"02.01.2006 15:04", "2024-03-05T14:30:00Z"},
	}
	for _, tt := range tests {
		got, err := NewTimestampParser(tt.layout).Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.input, err)
			continue
		}
		if d := time.Duration(got - want); d > time.Millisecond || d < -time.Millisecond {
			t.Errorf("Parse(%q) = %s, want %s", tt.input, time.Unix(0, got).UTC(), time.Unix(0, want).UTC())
		}
	}

	for _, bad := range []string{"", "yesterday"} {
		if _, err := NewTimestampParser("").Parse(bad); !lverrors.IsCode(err, lverrors.CodeInvalidTimestamp) {
			t.Errorf("Parse(%q) error = %v, want %s", bad, err, lverrors.CodeInvalidTimestamp)
		}
	}
	if _, err := NewTimestampParser("2006-01-02").Parse("05.03.2024"); !lverrors.IsCode(err, lverrors.CodeInvalidTimestamp) {
		t.Errorf("layout mismatch error = %v", err)
	}
}

func TestRowBuilder(t *testing.T) {
	opts := Options{Columns: Columns{CaseID: "case", Activity: "act", Timestamp: "ts", Resource: "who"}}
	b, err := newRowBuilder([]string{"ts", "case", "amount", "act", "who", "note"}, opts)
	if err != nil {
		t.Fatal(err)
	}

	wantColumns := []string{model.ColumnCaseID, model.ColumnActivity, model.ColumnTimestamp, model.ColumnResource, "amount", "note"}
	if diff := cmp.Diff(wantColumns, b.columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	if err := b.add([]string{"2024-01-01T00:00:00Z", "c1", "12.5", "A", "bob", ""}); err != nil {
		t.Fatal(err)
	}
	if err := b.add([]string{"2024-01-01T01:00:00Z", "c1", "", "B"}); err != nil {
		t.Fatal(err)
	}
	ds := b.dataset()
	if ds.Len() != 2 || ds.CaseCount() != 1 {
		t.Fatalf("dataset = %d rows, %d cases", ds.Len(), ds.CaseCount())
	}
	first := ds.Event(0)
	if first.Resource != "bob" || len(first.Attributes) != 1 || first.Attributes[0].Type != model.AttrTypeFloat {
		t.Errorf("first event = %+v", *first)
	}
	if v, _ := ds.Event(1).Value(model.ColumnResource); v != "" {
		t.Errorf("short row resource = %q", v)
	}

	err = b.add([]string{"2024-01-01T00:00:00Z", "", "1", "A"})
	if !lverrors.IsCode(err, lverrors.CodeInvalidFormat) {
		t.Errorf("empty case id error = %v, want %s", err, lverrors.CodeInvalidFormat)
	}
	err = b.add([]string{"soon", "c2", "1", "A"})
	if !lverrors.IsCode(err, lverrors.CodeInvalidTimestamp) {
		t.Errorf("bad timestamp error = %v, want %s", err, lverrors.CodeInvalidTimestamp)
	}
}

func TestRowBuilder_MissingColumns(t *testing.T) {
	if _, err := newRowBuilder([]string{"act", "ts"}, Options{Columns: Columns{CaseID: "case"}}); !lverrors.IsCode(err, lverrors.CodeMissingColumn) {
		t.Errorf("missing case column error = %v, want %s", err, lverrors.CodeMissingColumn)
	}

	b, err := newRowBuilder([]string{"case", "act"}, Options{Columns: Columns{CaseID: "case", Activity: "act", Timestamp: "ts"}})
	if err != nil {
		t.Fatalf("missing timestamp column error = %v", err)
	}
	if b.dataset().HasColumn(model.ColumnTimestamp) {
		t.Error("timestamp column reported without a source column")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), DefaultOptions())
	if !lverrors.IsCode(err, lverrors.CodeFileNotFound) {
		t.Errorf("error = %v, want %s", err, lverrors.CodeFileNotFound)
	}
}

func TestLoad_CSV(t *testing.T) {
	events := generators.NewLogGenerator(11).Generate(25)
	path := filepath.Join(t.TempDir(), "events.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	columns := []string{model.ColumnCaseID, model.ColumnActivity, model.ColumnTimestamp, model.ColumnResource, "amount"}
	if err := generators.WriteCSV(f, events, columns); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ds, err := Load(context.Background(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != len(events) || ds.CaseCount() != 25 {
		t.Fatalf("loaded %d rows, %d cases; want %d, 25", ds.Len(), ds.CaseCount(), len(events))
	}
	for i := range events {
		got := ds.Event(i)
		if got.CaseID != events[i].CaseID || got.Activity != events[i].Activity || got.Timestamp != events[i].Timestamp {
			t.Fatalf("row %d = %+v, want %+v", i, *got, events[i])
		}
	}
	if diff := cmp.Diff(columns, ds.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_CSVRenamedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	content := "id;step;at;cost\n" +
		"o1;Create;05.03.2024 14:30;10\n" +
		"o1;Pay;05.03.2024 15:00;\n" +
		"o2;Create;06.03.2024 09:00;20\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Columns:         Columns{CaseID: "id", Activity: "step", Timestamp: "at"},
		TimestampFormat: "02.01.2006 15:04",
		Delimiter:       ";",
	}
	ds, err := Load(context.Background(), path, opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"o1", "o2"}, ds.CaseKeys()); diff != "" {
		t.Errorf("cases mismatch (-want +got):\n%s", diff)
	}
	if !ds.Event(1).Time().Equal(time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %s", ds.Event(1).Time())
	}
	if _, ok := ds.Event(1).Value("cost"); ok {
		t.Error("empty cell kept as attribute")
	}
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"case:concept:name", "concept:name", "time:timestamp", "amount"},
		{"c1", "A", "2024-01-01 08:00:00", 5},
		{},
		{"c1", "B", "2024-01-01 09:00:00", 7},
		{"c2", "A", "2024-01-02 08:00:00", 9},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ds, err := Load(context.Background(), path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 3 || ds.CaseCount() != 2 {
		t.Errorf("loaded %d rows, %d cases; want 3, 2", ds.Len(), ds.CaseCount())
	}
	if v, _ := ds.Event(1).Number("amount"); v != 7 {
		t.Errorf("amount = %v, want 7", v)
	}

	if _, err := Load(context.Background(), path, Options{Sheet: "Missing"}); !lverrors.IsCode(err, lverrors.CodeInvalidFormat) {
		t.Errorf("missing sheet error = %v, want %s", err, lverrors.CodeInvalidFormat)
	}
}
