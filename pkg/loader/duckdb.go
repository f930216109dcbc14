package loader

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// DuckDBReader reads delimited, JSON and Parquet files through an in-memory
// DuckDB instance.
type DuckDBReader struct {
	db   *sql.DB
	opts Options
}

// NewDuckDBReader opens an in-memory DuckDB.
func NewDuckDBReader(opts Options) (*DuckDBReader, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeDuckDBInit, "failed to open DuckDB")
	}
	r := &DuckDBReader{db: db, opts: opts}
	if opts.Threads > 0 {
		if _, err := db.Exec(fmt.Sprintf("SET threads=%d", opts.Threads)); err != nil {
			db.Close()
			return nil, lverrors.Wrap(err, lverrors.CodeDuckDBInit, "failed to set threads")
		}
	}
	if opts.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", escapeLiteral(opts.MemoryLimit))); err != nil {
			db.Close()
			return nil, lverrors.Wrap(err, lverrors.CodeDuckDBInit, "failed to set memory limit")
		}
	}
	return r, nil
}

// Close releases resources.
func (r *DuckDBReader) Close() error {
	return r.db.Close()
}

// Read loads the whole file into a root dataset, preserving file row order.
func (r *DuckDBReader) Read(ctx context.Context, path string, format Format) (*dataset.Dataset, error) {
	query, err := r.selectQuery(path, format)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "read failed").
			WithContext("path", path)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to read columns")
	}
	b, err := newRowBuilder(header, r.opts)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(header))
	ptrs := make([]any, len(header))
	for i := range values {
		ptrs[i] = &values[i]
	}
	row := make([]string, len(header))
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, lverrors.ContextCanceled("load")
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "scan failed")
		}
		for i, v := range values {
			row[i] = stringify(v)
		}
		if err := b.add(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "read failed")
	}
	return b.dataset(), nil
}

// selectQuery builds the table function call for the format.
func (r *DuckDBReader) selectQuery(path string, format Format) (string, error) {
	p := escapeLiteral(path)
	switch format {
	case FormatCSV, FormatTSV:
		return fmt.Sprintf("SELECT * FROM read_csv_auto('%s'%s)", p, r.csvOptions(format)), nil
	case FormatJSON:
		return fmt.Sprintf("SELECT * FROM read_json_auto('%s', format='auto')", p), nil
	case FormatJSONL:
		return fmt.Sprintf("SELECT * FROM read_json_auto('%s', format='newline_delimited')", p), nil
	case FormatParquet:
		return fmt.Sprintf("SELECT * FROM read_parquet('%s')", p), nil
	}
	return "", lverrors.New(lverrors.CodeInvalidFormat, "unsupported format").
		WithContext("format", string(format))
}

// csvOptions keeps every column as text so timestamps are parsed once, by
// TimestampParser, with the configured layout.
func (r *DuckDBReader) csvOptions(format Format) string {
	options := []string{"header=true", "all_varchar=true"}

	delim := r.opts.Delimiter
	if delim == "" && format == FormatTSV {
		delim = "\t"
	}
	if delim == "\t" {
		options = append(options, "delim='\\t'")
	} else if delim != "" {
		options = append(options, fmt.Sprintf("delim='%s'", escapeLiteral(delim)))
	}
	return ", " + strings.Join(options, ", ")
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// escapeLiteral escapes a string for a DuckDB SQL literal.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
