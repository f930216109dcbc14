package loader

import (
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// readXLSX reads the configured sheet (or the first one). The first row is
// the header; fully empty rows are skipped.
func readXLSX(ctx context.Context, path string, opts Options) (*dataset.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "failed to open xlsx").
			WithContext("path", path)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, lverrors.New(lverrors.CodeInvalidFormat, "no sheets found in xlsx file")
		}
		sheet = sheets[0]
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "failed to read rows").
			WithContext("sheet", sheet)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, lverrors.New(lverrors.CodeInvalidFormat, "xlsx sheet is empty").
			WithContext("sheet", sheet)
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "failed to read header")
	}
	b, err := newRowBuilder(header, opts)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, lverrors.ContextCanceled("load")
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, lverrors.Wrap(err, lverrors.CodeInvalidFormat, "failed to read row")
		}
		if isBlank(cols) {
			continue
		}
		if err := b.add(cols); err != nil {
			return nil, err
		}
	}
	return b.dataset(), nil
}

func isBlank(cols []string) bool {
	for _, c := range cols {
		if c != "" {
			return false
		}
	}
	return true
}
