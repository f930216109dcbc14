package export

import (
	"context"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/logflow/logview/pkg/dataset"
	lverrors "github.com/logflow/logview/pkg/errors"
)

// Job is one result set to export.
type Job struct {
	Name     string
	Data     *dataset.Dataset
	Metadata map[string]string
}

// Result describes one written file.
type Result struct {
	Name  string
	Path  string
	Rows  int
	Cases int
	Bytes int64
}

// Output formats.
const (
	FormatArrow   = "arrow"
	FormatParquet = "parquet"
)

// Exporter writes result sets concurrently into one directory.
type Exporter struct {
	Dir         string
	Concurrency int

	// Parquet, if set, switches the output from Arrow IPC to Parquet.
	Parquet *ParquetWriter

	// OnWritten, if set, is called after each file is written.
	OnWritten func(Result)
}

// NewExporter creates an exporter. Concurrency <= 0 uses GOMAXPROCS.
func NewExporter(dir string, concurrency int) *Exporter {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Exporter{Dir: dir, Concurrency: concurrency}
}

// Export writes every job and returns the results in job order. The first
// failure cancels the remaining writes.
func (e *Exporter) Export(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Concurrency)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return lverrors.ContextCanceled("export")
			}
			meta := map[string]string{
				MetaName:  job.Name,
				MetaCases: strconv.Itoa(job.Data.CaseCount()),
			}
			for k, v := range job.Metadata {
				meta[k] = v
			}

			var (
				path string
				n    int64
				err  error
			)
			if e.Parquet != nil {
				path = filepath.Join(e.Dir, ParquetFileName(job.Name))
				n, err = e.Parquet.WriteFile(ctx, path, job.Data)
			} else {
				path = filepath.Join(e.Dir, FileName(job.Name))
				n, err = WriteFile(path, job.Data, meta)
			}
			if err != nil {
				return lverrors.Wrapf(err, lverrors.CodeWriteFailed, "export %s", job.Name)
			}

			res := Result{Name: job.Name, Path: path, Rows: job.Data.Len(), Cases: job.Data.CaseCount(), Bytes: n}
			results[i] = res
			if e.OnWritten != nil {
				mu.Lock()
				e.OnWritten(res)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
