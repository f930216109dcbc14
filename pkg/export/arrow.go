// Package export writes result sets as Arrow IPC streams or, through DuckDB,
// as Parquet files.
package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// Schema metadata keys.
const (
	MetaName   = "logview.name"
	MetaQuery  = "logview.query"
	MetaSource = "logview.source"
	MetaCases  = "logview.cases"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Nanosecond, TimeZone: "UTC"}

// Schema returns the Arrow schema of a dataset. The timestamp column is a
// nanosecond timestamp; every other column is a nullable string.
func Schema(ds *dataset.Dataset, meta map[string]string) *arrow.Schema {
	columns := ds.Columns()
	fields := make([]arrow.Field, len(columns))
	for i, col := range columns {
		switch col {
		case model.ColumnTimestamp:
			fields[i] = arrow.Field{Name: col, Type: timestampType}
		case model.ColumnCaseID, model.ColumnActivity:
			fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String}
		default:
			fields[i] = arrow.Field{Name: col, Type: arrow.BinaryTypes.String, Nullable: true}
		}
	}
	var md *arrow.Metadata
	if len(meta) > 0 {
		m := arrow.MetadataFrom(meta)
		md = &m
	}
	return arrow.NewSchema(fields, md)
}

// Record builds a single record holding every row of ds in order.
// The caller must Release it.
func Record(mem memory.Allocator, ds *dataset.Dataset, schema *arrow.Schema) arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	columns := ds.Columns()
	for i := 0; i < ds.Len(); i++ {
		ev := ds.Event(i)
		for j, col := range columns {
			switch fb := b.Field(j).(type) {
			case *array.TimestampBuilder:
				fb.Append(arrow.Timestamp(ev.Timestamp))
			case *array.StringBuilder:
				v, ok := ev.Value(col)
				if !ok && schema.Field(j).Nullable {
					fb.AppendNull()
					continue
				}
				fb.Append(v)
			}
		}
	}
	return b.NewRecord()
}

// Write streams ds to w in Arrow IPC stream format.
func Write(w io.Writer, ds *dataset.Dataset, meta map[string]string) error {
	mem := memory.NewGoAllocator()
	schema := Schema(ds, meta)

	rec := Record(mem, ds, schema)
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		iw.Close()
		return lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to write batch")
	}
	if err := iw.Close(); err != nil {
		return lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to close writer")
	}
	return nil
}

// WriteFile writes ds to path, creating parent directories.
func WriteFile(path string, ds *dataset.Dataset, meta map[string]string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to create file").
			WithContext("path", path)
	}
	if err := Write(f, ds, meta); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to stat output")
	}
	if err := f.Close(); err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to close output")
	}
	return info.Size(), nil
}

// ReadRows counts the rows of an Arrow IPC stream and returns its schema.
func ReadRows(ctx context.Context, r io.Reader) (*arrow.Schema, int64, error) {
	rdr, err := ipc.NewReader(r)
	if err != nil {
		return nil, 0, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "not an Arrow IPC stream")
	}
	defer rdr.Release()

	var rows int64
	for rdr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, 0, lverrors.ContextCanceled("read")
		}
		rows += rdr.Record().NumRows()
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, 0, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "failed to read stream")
	}
	return rdr.Schema(), rows, nil
}

// FileName maps a display name onto a safe Arrow file name.
func FileName(name string) string {
	return safeName(name) + ".arrow"
}

func safeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "result_set"
	}
	return sb.String()
}
