// Package records defines the normalized row representation shared by the
// parser → loader pipeline. A Row is positional: V[i] holds the value for the
// i-th column of the owning dataset driver's column list, so every row of a
// dataset carries exactly the same fields in the same order. Values are
// strings, nil (blank cell), bool, or a recoded enumeration string.
//
// Rows are pooled to reduce heap churn while streaming multi-million-row
// disclosure files.
package records

import "sync"

// Row is a pooled container holding one normalized row for database COPY.
//
// Contract:
//   - The producing stage writes V[0:colCount] and sets Line to the 1-based
//     source line for diagnostics.
//   - After the row has been persisted (or dropped), the consumer must call
//     Free() to return it to the pool.
//   - Do not retain references to r or r.V beyond the owning stage.
//
// V is kept as []any so it feeds pgx CopyFromRows directly.
type Row struct {
	V    []any
	Line int
}

var rowPool sync.Pool

// Get returns a pooled Row with length colCount. All elements are zeroed.
func Get(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool. The caller must not use r after Free().
func (r *Row) Free() { rowPool.Put(r) }
