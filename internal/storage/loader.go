// Package storage contains storage-agnostic loading utilities. This file
// implements a generic, batched loader that drains normalized rows from a
// channel and invokes a provided bulk-insert function (CopyFn) per batch.
//
// The Postgres backend implements CopyFn with COPY into the dataset's staging
// relation; each CopyFn call is one atomic unit, so a failed batch leaves no
// partial rows behind.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"sunshine/internal/records"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of
// rows inserted. The function should cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains pooled rows from 'in', groups them into batches of size
// 'batchSize', and calls 'copyFn' for each non-empty batch, flushing the
// final partial batch. Rows are returned to the pool after a successful
// flush. It returns the total number of rows reported by copyFn and the first
// error encountered; on error, remaining batches are not attempted and the
// staging relation is left short, which the caller must treat as a failed
// load rather than merging.
//
// Cancellation: returns (total, ctx.Err()) when canceled, draining and
// freeing any rows still queued on 'in'.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan *records.Row,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		batch       = make([]*records.Row, 0, batchSize)
		slab        = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		// Build the [][]any view on a reused backing array.
		slab = slab[:0]
		for _, r := range batch {
			slab = append(slab, r.V)
		}
		n, err := copyFn(ctx, columns, slab)
		total += n
		if err != nil {
			log.Printf("loader: batch write failed rows=%d total=%d err=%v", len(batch), total, err)
			return err
		}
		for _, r := range batch {
			r.Free()
		}
		batch = batch[:0]

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: rps=%.0f staged=%d total_staged=%d elapsed=%s since_last=%s",
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total

		return nil
	}

	// drain frees whatever is already buffered without blocking on a channel
	// the producer may never close after cancellation.
	drain := func() {
		for {
			select {
			case r, ok := <-in:
				if !ok {
					return
				}
				r.Free()
			default:
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				// Channel closed: flush remaining rows.
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					drain()
					return total, err
				}
			}
		}
	}
}
