// Package memstore is an in-memory widecolumn backend built on a B-tree.
//
// It is used by tests and by development runs configured with the
// "memory" backend. Contents are lost on Close.
package memstore

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

const btreeDegree = 32

// FaultFunc is consulted before every operation. A non-nil return fails the
// operation with that error wrapped in widecolumn.ErrIO.
//
// op is one of "table", "get", "put", "delete", "increment", "scan" or
// "next".
type FaultFunc func(op, table string) error

// Option configures a Store.
type Option func(*Store)

// WithFault installs a fault injector.
func WithFault(fn FaultFunc) Option {
	return func(s *Store) {
		s.fault = fn
	}
}

// Store is an in-memory wide-column store.
type Store struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	closed bool
	fault  FaultFunc

	handles  atomic.Int64
	scanners atomic.Int64
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{tree: btree.New(btreeDegree)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// rowItem is one row stored in the tree, keyed by table prefix and
// escaped row key.
type rowItem struct {
	key   []byte
	row   []byte
	cells map[string][]byte
}

func (r *rowItem) Less(than btree.Item) bool {
	return bytes.Compare(r.key, than.(*rowItem).key) < 0
}

func (r *rowItem) result(columns [][]byte) *widecolumn.Result {
	cells := make([]widecolumn.Cell, 0, len(r.cells))
	for q, v := range r.cells {
		if widecolumn.WantColumn(columns, []byte(q)) {
			cells = append(cells, widecolumn.Cell{Qualifier: []byte(q), Value: v})
		}
	}
	return widecolumn.NewResult(r.row, cells)
}

func searchKey(table string, row []byte) *rowItem {
	return &rowItem{key: widecolumn.RowPrefix(table, row)}
}

// Table returns a handle on the named table.
func (s *Store) Table(_ context.Context, name string) (widecolumn.Table, error) {
	if name == "" {
		return nil, widecolumn.ErrInvalidTable
	}
	if err := s.check("table", name); err != nil {
		return nil, err
	}
	s.handles.Add(1)
	return &table{store: s, name: name}, nil
}

// HealthCheck reports whether the store is open.
func (s *Store) HealthCheck(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return widecolumn.ErrClosed
	}
	return nil
}

// Close discards the contents of the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tree = btree.New(btreeDegree)
	return nil
}

// OpenHandles returns the number of table handles not yet closed.
func (s *Store) OpenHandles() int {
	return int(s.handles.Load())
}

// OpenScanners returns the number of scanners not yet closed.
func (s *Store) OpenScanners() int {
	return int(s.scanners.Load())
}

func (s *Store) check(op, table string) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return widecolumn.ErrClosed
	}
	if s.fault != nil {
		if err := s.fault(op, table); err != nil {
			return widecolumn.IOError(op, err)
		}
	}
	return nil
}

type table struct {
	store  *Store
	name   string
	closed atomic.Bool
}

func (t *table) begin(ctx context.Context, op string) error {
	if t.closed.Load() {
		return widecolumn.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.check(op, t.name)
}

func (t *table) Get(ctx context.Context, row []byte, columns ...[]byte) (*widecolumn.Result, error) {
	if err := t.begin(ctx, "get"); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	item := t.store.tree.Get(searchKey(t.name, row))
	if item == nil {
		return widecolumn.NewResult(row, nil), nil
	}
	return item.(*rowItem).result(columns), nil
}

func (t *table) Put(ctx context.Context, row []byte, cells ...widecolumn.Cell) error {
	if len(row) == 0 {
		return widecolumn.ErrEmptyRow
	}
	if err := t.begin(ctx, "put"); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	r := t.load(row)
	for _, c := range cells {
		r.cells[string(c.Qualifier)] = append([]byte(nil), c.Value...)
	}
	return nil
}

func (t *table) Delete(ctx context.Context, row []byte) error {
	if err := t.begin(ctx, "delete"); err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.store.tree.Delete(searchKey(t.name, row))
	return nil
}

func (t *table) Increment(ctx context.Context, row, column []byte, delta int64) (int64, error) {
	if len(row) == 0 {
		return 0, widecolumn.ErrEmptyRow
	}
	if err := t.begin(ctx, "increment"); err != nil {
		return 0, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	r := t.load(row)
	var current int64
	if raw, ok := r.cells[string(column)]; ok {
		v, err := widecolumn.DecodeCounter(raw)
		if err != nil {
			return 0, fmt.Errorf("incrementing %q: %w", column, err)
		}
		current = v
	}
	next := current + delta
	r.cells[string(column)] = widecolumn.EncodeCounter(next)
	return next, nil
}

// load returns the row, inserting an empty one if needed. Caller holds the
// write lock.
func (t *table) load(row []byte) *rowItem {
	p := searchKey(t.name, row)
	if item := t.store.tree.Get(p); item != nil {
		return item.(*rowItem)
	}
	p.row = append([]byte(nil), row...)
	p.cells = make(map[string][]byte)
	t.store.tree.ReplaceOrInsert(p)
	return p
}

// Scan snapshots the matching rows; later writes are not observed.
func (t *table) Scan(ctx context.Context, start, stop []byte) (widecolumn.Scanner, error) {
	if err := t.begin(ctx, "scan"); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	lower, upper := widecolumn.ScanBounds(t.name, start, stop)
	var rows []*widecolumn.Result
	t.store.tree.AscendRange(&rowItem{key: lower}, &rowItem{key: upper}, func(i btree.Item) bool {
		r := i.(*rowItem)
		if len(r.cells) > 0 {
			rows = append(rows, r.result(nil))
		}
		return true
	})

	t.store.scanners.Add(1)
	return &scanner{table: t, ctx: ctx, rows: rows, pos: -1}, nil
}

func (t *table) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.store.handles.Add(-1)
	}
	return nil
}

type scanner struct {
	table  *table
	ctx    context.Context
	rows   []*widecolumn.Result
	pos    int
	err    error
	closed bool
}

func (s *scanner) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.rows) {
		return false
	}
	if err := s.table.store.check("next", s.table.name); err != nil {
		s.err = err
		return false
	}
	s.pos++
	return true
}

func (s *scanner) Result() *widecolumn.Result {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return nil
	}
	return s.rows[s.pos]
}

func (s *scanner) Err() error {
	return s.err
}

func (s *scanner) Close() error {
	if !s.closed {
		s.closed = true
		s.table.store.scanners.Add(-1)
	}
	return nil
}
