package widecolumn

import (
	"bytes"
	"context"
	"sort"
)

// Client is a connection to a wide-column store.
//
// Implementations must be safe for concurrent use. Table handles returned by
// Table are cheap and may be pooled by the implementation; callers must
// Close every handle they acquire (use WithTable).
type Client interface {
	// Table acquires a handle on the named table, creating it if needed.
	Table(ctx context.Context, name string) (Table, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}

// Table is a handle on one table of the store.
//
// Every single-row operation is atomic with respect to other operations on
// the same row.
type Table interface {
	// Get returns the requested columns of row, or every column when none
	// are named. A missing row yields an empty Result, not an error.
	Get(ctx context.Context, row []byte, columns ...[]byte) (*Result, error)

	// Put writes cells into row, leaving other columns untouched.
	Put(ctx context.Context, row []byte, cells ...Cell) error

	// Delete removes row and all of its cells. Deleting a missing row is
	// not an error.
	Delete(ctx context.Context, row []byte) error

	// Increment atomically adds delta to the 8-byte big-endian counter held
	// in column and returns the new value. A missing cell counts as zero.
	Increment(ctx context.Context, row, column []byte, delta int64) (int64, error)

	// Scan returns rows in [start, stop) in ascending key order. An empty
	// stop scans to the end of the table.
	Scan(ctx context.Context, start, stop []byte) (Scanner, error)

	// Close releases the handle.
	Close() error
}

// Scanner iterates over scan results. It must be closed.
type Scanner interface {
	// Next advances to the next row and reports whether one is available.
	Next() bool

	// Result returns the current row. Valid until the next call to Next.
	Result() *Result

	// Err returns the first error encountered during iteration.
	Err() error

	// Close releases the cursor.
	Close() error
}

// Cell is one column value within a row.
type Cell struct {
	Qualifier []byte
	Value     []byte
}

// Result is the set of cells read from one row, sorted by qualifier.
type Result struct {
	Row   []byte
	Cells []Cell
}

// NewResult builds a Result, copying the inputs and sorting cells by
// qualifier.
func NewResult(row []byte, cells []Cell) *Result {
	r := &Result{Row: clone(row), Cells: make([]Cell, 0, len(cells))}
	for _, c := range cells {
		r.Cells = append(r.Cells, Cell{Qualifier: clone(c.Qualifier), Value: clone(c.Value)})
	}
	sort.Slice(r.Cells, func(i, j int) bool {
		return bytes.Compare(r.Cells[i].Qualifier, r.Cells[j].Qualifier) < 0
	})
	return r
}

// Size returns the number of cells in the result.
func (r *Result) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Cells)
}

// IsEmpty reports whether the row had no matching cells.
func (r *Result) IsEmpty() bool {
	return r.Size() == 0
}

// Value returns the value of the named column, or nil.
func (r *Result) Value(qualifier []byte) []byte {
	if r == nil {
		return nil
	}
	for _, c := range r.Cells {
		if bytes.Equal(c.Qualifier, qualifier) {
			return c.Value
		}
	}
	return nil
}

// Has reports whether the named column is present.
func (r *Result) Has(qualifier []byte) bool {
	if r == nil {
		return false
	}
	for _, c := range r.Cells {
		if bytes.Equal(c.Qualifier, qualifier) {
			return true
		}
	}
	return false
}

// Count returns how many cells carry the named qualifier.
// A well-formed row has at most one; backends never emit duplicates, but
// readers check cardinality rather than assume it.
func (r *Result) Count(qualifier []byte) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Cells {
		if bytes.Equal(c.Qualifier, qualifier) {
			n++
		}
	}
	return n
}

// WantColumn reports whether qualifier is selected by columns. An empty
// selection selects every column.
func WantColumn(columns [][]byte, qualifier []byte) bool {
	if len(columns) == 0 {
		return true
	}
	for _, c := range columns {
		if bytes.Equal(c, qualifier) {
			return true
		}
	}
	return false
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
