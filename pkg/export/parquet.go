package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/logflow/logview/internal/model"
	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// ParquetWriter writes result sets as Parquet files through an in-memory
// DuckDB. Each write stages its rows in a temporary table on a dedicated
// connection, so one writer serves concurrent jobs.
type ParquetWriter struct {
	db          *sql.DB
	compression string

	// CaseSummary also writes <name>.cases.parquet with one row per case.
	CaseSummary bool
}

// NewParquetWriter opens the DuckDB instance. An empty compression uses zstd.
func NewParquetWriter(compression string) (*ParquetWriter, error) {
	if compression == "" {
		compression = "zstd"
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeDuckDBInit, "failed to open DuckDB")
	}
	return &ParquetWriter{db: db, compression: compression}, nil
}

// Close releases the DuckDB instance.
func (w *ParquetWriter) Close() error {
	return w.db.Close()
}

// ParquetFileName maps a display name onto a safe Parquet file name.
func ParquetFileName(name string) string {
	return safeName(name) + ".parquet"
}

// CaseSummaryFileName is the companion file written when CaseSummary is set.
func CaseSummaryFileName(name string) string {
	return safeName(name) + ".cases.parquet"
}

// WriteFile writes ds to path and returns the size of the events file.
func (w *ParquetWriter) WriteFile(ctx context.Context, path string, ds *dataset.Dataset) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to create output directory")
	}

	conn, err := w.db.Conn(ctx)
	if err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeDuckDBInit, "failed to acquire connection")
	}
	defer conn.Close()

	columns := ds.Columns()
	if err := createStaging(ctx, conn, columns); err != nil {
		return 0, err
	}
	defer conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS staging")

	if err := insertRows(ctx, conn, ds, columns); err != nil {
		return 0, err
	}

	copyEvents := fmt.Sprintf(
		"COPY (SELECT * EXCLUDE (row_index) FROM staging ORDER BY row_index) TO '%s' (FORMAT PARQUET, COMPRESSION '%s')",
		escapeLiteral(path), escapeLiteral(w.compression))
	if _, err := conn.ExecContext(ctx, copyEvents); err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to write parquet").
			WithContext("path", path)
	}

	if w.CaseSummary {
		summary := strings.TrimSuffix(path, ".parquet") + ".cases.parquet"
		if err := w.writeCaseSummary(ctx, conn, summary); err != nil {
			return 0, err
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to stat output")
	}
	return info.Size(), nil
}

// writeCaseSummary writes one row per case with its span and event count.
func (w *ParquetWriter) writeCaseSummary(ctx context.Context, conn *sql.Conn, path string) error {
	query := fmt.Sprintf(`
		COPY (
			SELECT
				%[1]s AS case_id,
				MIN(%[2]s) AS case_start_time,
				MAX(%[2]s) AS case_end_time,
				COUNT(*) AS event_count,
				EPOCH(MAX(%[2]s)) - EPOCH(MIN(%[2]s)) AS duration_seconds
			FROM staging
			GROUP BY %[1]s
			ORDER BY MIN(row_index)
		) TO '%[3]s' (FORMAT PARQUET, COMPRESSION '%[4]s')
	`, quoteIdent(model.ColumnCaseID), quoteIdent(model.ColumnTimestamp),
		escapeLiteral(path), escapeLiteral(w.compression))

	if _, err := conn.ExecContext(ctx, query); err != nil {
		return lverrors.Wrap(err, lverrors.CodeWriteFailed, "failed to write case summary").
			WithContext("path", path)
	}
	return nil
}

func createStaging(ctx context.Context, conn *sql.Conn, columns []string) error {
	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, "row_index BIGINT")
	for _, col := range columns {
		typ := "VARCHAR"
		if col == model.ColumnTimestamp {
			typ = "TIMESTAMP"
		}
		defs = append(defs, quoteIdent(col)+" "+typ)
	}
	stmt := fmt.Sprintf("CREATE TEMP TABLE staging (%s)", strings.Join(defs, ", "))
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to create staging table")
	}
	return nil
}

func insertRows(ctx context.Context, conn *sql.Conn, ds *dataset.Dataset, columns []string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to begin transaction")
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)+1), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO staging VALUES (%s)", placeholders))
	if err != nil {
		return lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to prepare insert")
	}
	defer stmt.Close()

	args := make([]any, len(columns)+1)
	for i := 0; i < ds.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return lverrors.ContextCanceled("export")
		}
		ev := ds.Event(i)
		args[0] = int64(i)
		for j, col := range columns {
			if col == model.ColumnTimestamp {
				args[j+1] = ev.Time().UTC()
				continue
			}
			if v, ok := ev.Value(col); ok {
				args[j+1] = v
			} else {
				args[j+1] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to stage row").
				WithContext("row", fmt.Sprint(i))
		}
	}

	if err := tx.Commit(); err != nil {
		return lverrors.Wrap(err, lverrors.CodeDuckDBQuery, "failed to commit rows")
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
