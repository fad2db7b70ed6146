// Package etl orchestrates a full disclosure load: for each dataset it
// streams the extract through the normalizer into a staging relation, then
// reconciles staging against the target with a key-based merge, recording
// every run in the ledger. Datasets run in declaration order so foreign
// relations are merged before their dependents, and one failed dataset never
// aborts its siblings.
package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sunshine/internal/dataset"
	"sunshine/internal/datasource/file"
	"sunshine/internal/ledger"
	"sunshine/internal/metrics"
	"sunshine/internal/parser/tsv"
	"sunshine/internal/records"
	"sunshine/internal/storage"
	"sunshine/internal/storage/postgres"
)

// tsvStream is a seam over the normalizer so pipeline tests can feed
// synthetic rows without real extract files.
var tsvStream = func(
	ctx context.Context,
	src io.ReadCloser,
	columns []string,
	recode func(cells []any) []any,
	out chan<- *records.Row,
	onErr func(line int, err error),
) error {
	return tsv.StreamRows(ctx, src, columns, recode, tsv.Options{}, out, onErr)
}

// rowBuffer bounds the normalizer→loader channel so a slow COPY applies
// backpressure to the reader instead of buffering the whole extract.
const rowBuffer = 1024

// Warehouse is the session surface the pipeline needs. *postgres.Session
// satisfies it; tests substitute fakes.
type Warehouse interface {
	CreateStaging(ctx context.Context, spec postgres.MergeSpec) error
	CopyInto(ctx context.Context, staging string, columns []string, rows [][]any) (int64, error)
	Merge(ctx context.Context, spec postgres.MergeSpec) (postgres.MergeStats, error)
}

// RunLedger records per-dataset run history. *ledger.Ledger satisfies it.
type RunLedger interface {
	MarkStaged(ctx context.Context, dataset, fileHash string, staged int64) (int64, error)
	MarkMerged(ctx context.Context, runID, updated, inserted int64) error
	LastMerged(ctx context.Context, dataset string) (*ledger.Run, error)
}

// Pipeline loads datasets from a directory of extracts into the warehouse.
type Pipeline struct {
	DB        Warehouse
	Ledger    RunLedger // nil disables run history and skip-unchanged
	DataDir   string
	BatchSize int

	// SkipUnchanged skips a dataset when its extract hash matches the last
	// merged run for that dataset.
	SkipUnchanged bool
}

// Summary reports the outcome of one dataset load.
type Summary struct {
	Dataset     string
	Skipped     bool
	Staged      int64
	Updated     int64
	Inserted    int64
	ParseErrors int64
}

// LoadAll runs every dataset in merge order. A failed dataset is logged and
// skipped; the remaining datasets still run. The joined error reports every
// failure.
func (p *Pipeline) LoadAll(ctx context.Context) ([]Summary, error) {
	var (
		summaries []Summary
		errs      []error
	)
	for _, d := range dataset.All() {
		sum, err := p.LoadDataset(ctx, d)
		if err != nil {
			log.Printf("dataset %s: load failed: %v", d.Name, err)
			errs = append(errs, fmt.Errorf("dataset %s: %w", d.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		summaries = append(summaries, sum)
		if sum.Skipped {
			log.Printf("dataset %s: unchanged extract, skipped", d.Name)
			continue
		}
		log.Printf("dataset %s: staged=%d updated=%d inserted=%d parse_errors=%d",
			d.Name, sum.Staged, sum.Updated, sum.Inserted, sum.ParseErrors)
	}
	return summaries, errors.Join(errs...)
}

// LoadDataset stages and merges one dataset. The stage phase streams the
// extract through the normalizer into the staging relation; only when staging
// completes without error does the merge run. A failed stage leaves the
// target untouched and the run recorded as staged-only.
func (p *Pipeline) LoadDataset(ctx context.Context, d dataset.Driver) (Summary, error) {
	sum := Summary{Dataset: d.Name}
	src := file.NewLocal(filepath.Join(p.DataDir, d.SourceFile))

	var fileHash string
	if p.Ledger != nil {
		var err error
		fileHash, err = src.Hash(ctx)
		if err != nil {
			return sum, fmt.Errorf("hash extract: %w", err)
		}
		if p.SkipUnchanged {
			last, err := p.Ledger.LastMerged(ctx, d.Name)
			if err != nil {
				return sum, err
			}
			if last != nil && last.FileHash == fileHash {
				sum.Skipped = true
				return sum, nil
			}
		}
	}

	spec := postgres.SpecFor(d)

	start := time.Now()
	staged, parseErrs, err := p.stage(ctx, d, spec, src)
	metrics.RecordStep(d.Name, "stage", err, time.Since(start))
	sum.Staged = staged
	sum.ParseErrors = parseErrs
	if err != nil {
		return sum, fmt.Errorf("stage: %w", err)
	}
	metrics.RecordRows(d.Name, "staged", staged)
	metrics.RecordRows(d.Name, "parse_errors", parseErrs)

	var runID int64
	if p.Ledger != nil {
		runID, err = p.Ledger.MarkStaged(ctx, d.Name, fileHash, staged)
		if err != nil {
			return sum, err
		}
	}

	start = time.Now()
	stats, err := p.DB.Merge(ctx, spec)
	metrics.RecordStep(d.Name, "merge", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("merge: %w", err)
	}
	sum.Updated = stats.Updated
	sum.Inserted = stats.Inserted
	metrics.RecordRows(d.Name, "updated", stats.Updated)
	metrics.RecordRows(d.Name, "inserted", stats.Inserted)

	if p.Ledger != nil {
		if err := p.Ledger.MarkMerged(ctx, runID, stats.Updated, stats.Inserted); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// stage recreates the staging relation and runs the normalizer and batched
// loader concurrently, joined by an errgroup: either side failing cancels the
// other.
func (p *Pipeline) stage(ctx context.Context, d dataset.Driver, spec postgres.MergeSpec, src *file.Local) (int64, int64, error) {
	if err := p.DB.CreateStaging(ctx, spec); err != nil {
		return 0, 0, err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return 0, 0, err
	}

	var (
		parseErrs atomic.Int64
		staged    int64
	)
	onErr := func(line int, err error) {
		parseErrs.Add(1)
		log.Printf("dataset %s: line %d skipped: %v", d.Name, line, err)
	}

	rows := make(chan *records.Row, rowBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		return tsvStream(gctx, rc, d.Columns, d.Recode, rows, onErr)
	})
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, spec.Columns, rows, p.BatchSize, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
			return p.DB.CopyInto(ctx, spec.Staging, columns, batch)
		})
		staged = n
		return err
	})

	if err := g.Wait(); err != nil {
		return staged, parseErrs.Load(), err
	}
	return staged, parseErrs.Load(), nil
}
