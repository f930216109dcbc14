// Package loader reads an initial event log from disk into a dataset.
//
// CSV, TSV, JSON and Parquet are read through an embedded DuckDB; XLSX is
// read with excelize. Source columns are renamed onto the standard event
// columns according to Options.Columns.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// Format identifies an input file format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatJSON    Format = "json"
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", lverrors.New(lverrors.CodeInvalidFormat, "unsupported file extension").
		WithContext("path", path)
}

// Columns names the source columns holding the standard event fields.
type Columns struct {
	CaseID    string
	Activity  string
	Timestamp string
	Resource  string
}

// DefaultColumns are the XES column names.
func DefaultColumns() Columns {
	return Columns{
		CaseID:    model.ColumnCaseID,
		Activity:  model.ColumnActivity,
		Timestamp: model.ColumnTimestamp,
		Resource:  model.ColumnResource,
	}
}

// Options configures loading.
type Options struct {
	Columns         Columns
	TimestampFormat string // empty = auto-detect
	Delimiter       string // csv only, empty = sniff
	Sheet           string // xlsx only, empty = first sheet
	MemoryLimit     string // duckdb memory_limit
	Threads         int    // duckdb threads, 0 = auto
}

// DefaultOptions returns options reading XES-named columns.
func DefaultOptions() Options {
	return Options{Columns: DefaultColumns()}
}

// Load reads the file at path into a root dataset.
func Load(ctx context.Context, path string, opts Options) (*dataset.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, lverrors.FileNotFound(path)
		}
		return nil, lverrors.Wrap(err, lverrors.CodeFileNotFound, "cannot stat input")
	}
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	if opts.Columns == (Columns{}) {
		opts.Columns = DefaultColumns()
	}

	if format == FormatXLSX {
		return readXLSX(ctx, path, opts)
	}

	r, err := NewDuckDBReader(opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Read(ctx, path, format)
}

// rowBuilder turns header-indexed string rows into events.
type rowBuilder struct {
	header   []string
	caseIdx  int
	actIdx   int
	tsIdx    int
	resIdx   int
	columns  []string
	attrs    []int
	parser   *TimestampParser
	rowCount int
	events   []model.Event
}

func newRowBuilder(header []string, opts Options) (*rowBuilder, error) {
	b := &rowBuilder{
		header:  header,
		caseIdx: indexOf(header, opts.Columns.CaseID),
		actIdx:  indexOf(header, opts.Columns.Activity),
		tsIdx:   indexOf(header, opts.Columns.Timestamp),
		resIdx:  indexOf(header, opts.Columns.Resource),
		parser:  NewTimestampParser(opts.TimestampFormat),
	}
	if b.caseIdx < 0 {
		return nil, lverrors.MissingColumn(opts.Columns.CaseID, header)
	}

	b.columns = append(b.columns, model.ColumnCaseID)
	if b.actIdx >= 0 {
		b.columns = append(b.columns, model.ColumnActivity)
	}
	if b.tsIdx >= 0 {
		b.columns = append(b.columns, model.ColumnTimestamp)
	}
	if b.resIdx >= 0 {
		b.columns = append(b.columns, model.ColumnResource)
	}
	for i, name := range header {
		if i == b.caseIdx || i == b.actIdx || i == b.tsIdx || i == b.resIdx {
			continue
		}
		b.attrs = append(b.attrs, i)
		b.columns = append(b.columns, name)
	}
	return b, nil
}

// add appends one row. Cells beyond the row length count as missing.
func (b *rowBuilder) add(row []string) error {
	b.rowCount++
	ev := model.Event{CaseID: cell(row, b.caseIdx), Activity: cell(row, b.actIdx), Resource: cell(row, b.resIdx)}
	if ev.CaseID == "" {
		return lverrors.New(lverrors.CodeInvalidFormat, "row without case identifier").
			WithContext("row", b.rowCount)
	}
	if b.tsIdx >= 0 {
		ts, err := b.parser.Parse(cell(row, b.tsIdx))
		if err != nil {
			if lvErr, ok := err.(*lverrors.LogViewError); ok {
				return lvErr.WithContext("row", b.rowCount)
			}
			return err
		}
		ev.Timestamp = ts
	}
	for _, i := range b.attrs {
		v := cell(row, i)
		if v == "" {
			continue
		}
		ev.Attributes = append(ev.Attributes, model.Attribute{Key: b.header[i], Value: v, Type: model.InferAttrType(v)})
	}
	b.events = append(b.events, ev)
	return nil
}

func (b *rowBuilder) dataset() *dataset.Dataset {
	return dataset.New(b.events, b.columns)
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func indexOf(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}
