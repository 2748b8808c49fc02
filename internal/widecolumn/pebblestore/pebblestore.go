// Package pebblestore is a widecolumn backend on top of the Pebble LSM
// key-value store.
//
// Every cell is stored under its own key (see widecolumn.CellKey), so rows
// and tables map onto contiguous key ranges. Writes to one row go through a
// single batch; Increment and Put are serialised by a store-wide write lock
// to keep counter read-modify-write atomic.
package pebblestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

// Option configures Open.
type Option func(*options)

type options struct {
	fs   vfs.FS
	sync bool
}

// WithFS overrides the filesystem. Tests use vfs.NewMem().
func WithFS(fs vfs.FS) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithSync makes every write wait for the WAL to reach stable storage.
func WithSync(sync bool) Option {
	return func(o *options) {
		o.sync = sync
	}
}

// Store is a Pebble-backed wide-column store.
type Store struct {
	db      *pebble.DB
	writeMu sync.Mutex
	wo      *pebble.WriteOptions
	closed  atomic.Bool
}

// Open opens (or creates) a store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	o := options{fs: vfs.Default}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := pebble.Open(dir, &pebble.Options{FS: o.fs})
	if err != nil {
		return nil, widecolumn.IOError(fmt.Sprintf("opening pebble at %q", dir), err)
	}

	wo := pebble.NoSync
	if o.sync {
		wo = pebble.Sync
	}
	return &Store{db: db, wo: wo}, nil
}

// Table returns a handle on the named table.
func (s *Store) Table(_ context.Context, name string) (widecolumn.Table, error) {
	if name == "" {
		return nil, widecolumn.ErrInvalidTable
	}
	if s.closed.Load() {
		return nil, widecolumn.ErrClosed
	}
	return &table{store: s, name: name}, nil
}

// HealthCheck performs a point read against the store.
func (s *Store) HealthCheck(context.Context) error {
	if s.closed.Load() {
		return widecolumn.ErrClosed
	}
	_, closer, err := s.db.Get([]byte{0x00})
	if err == nil {
		return closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return widecolumn.IOError("health check", err)
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return widecolumn.IOError("closing pebble", err)
	}
	return nil
}

// Metrics returns a snapshot of Pebble's internal metrics, or nil once the
// store is closed.
func (s *Store) Metrics() *pebble.Metrics {
	if s.closed.Load() {
		return nil
	}
	return s.db.Metrics()
}

type table struct {
	store  *Store
	name   string
	closed atomic.Bool
}

func (t *table) begin(ctx context.Context) error {
	if t.closed.Load() || t.store.closed.Load() {
		return widecolumn.ErrClosed
	}
	return ctx.Err()
}

func (t *table) Get(ctx context.Context, row []byte, columns ...[]byte) (*widecolumn.Result, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}

	prefix := widecolumn.RowPrefix(t.name, row)
	iter, err := t.store.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: widecolumn.PrefixEnd(prefix),
	})
	if err != nil {
		return nil, widecolumn.IOError("get", err)
	}
	defer func() { _ = iter.Close() }()

	var cells []widecolumn.Cell
	for iter.First(); iter.Valid(); iter.Next() {
		q := iter.Key()[len(prefix):]
		if widecolumn.WantColumn(columns, q) {
			cells = append(cells, widecolumn.Cell{
				Qualifier: bytes.Clone(q),
				Value:     bytes.Clone(iter.Value()),
			})
		}
	}
	if err := iter.Error(); err != nil {
		return nil, widecolumn.IOError("get", err)
	}
	return widecolumn.NewResult(row, cells), nil
}

func (t *table) Put(ctx context.Context, row []byte, cells ...widecolumn.Cell) error {
	if len(row) == 0 {
		return widecolumn.ErrEmptyRow
	}
	if err := t.begin(ctx); err != nil {
		return err
	}

	b := t.store.db.NewBatch()
	defer func() { _ = b.Close() }()
	for _, c := range cells {
		if err := b.Set(widecolumn.CellKey(t.name, row, c.Qualifier), c.Value, nil); err != nil {
			return widecolumn.IOError("put", err)
		}
	}

	t.store.writeMu.Lock()
	defer t.store.writeMu.Unlock()
	if err := b.Commit(t.store.wo); err != nil {
		return widecolumn.IOError("put", err)
	}
	return nil
}

func (t *table) Delete(ctx context.Context, row []byte) error {
	if err := t.begin(ctx); err != nil {
		return err
	}
	prefix := widecolumn.RowPrefix(t.name, row)

	t.store.writeMu.Lock()
	defer t.store.writeMu.Unlock()
	if err := t.store.db.DeleteRange(prefix, widecolumn.PrefixEnd(prefix), t.store.wo); err != nil {
		return widecolumn.IOError("delete", err)
	}
	return nil
}

func (t *table) Increment(ctx context.Context, row, column []byte, delta int64) (int64, error) {
	if len(row) == 0 {
		return 0, widecolumn.ErrEmptyRow
	}
	if err := t.begin(ctx); err != nil {
		return 0, err
	}
	key := widecolumn.CellKey(t.name, row, column)

	t.store.writeMu.Lock()
	defer t.store.writeMu.Unlock()

	var current int64
	raw, closer, err := t.store.db.Get(key)
	switch {
	case err == nil:
		current, err = widecolumn.DecodeCounter(raw)
		_ = closer.Close()
		if err != nil {
			return 0, fmt.Errorf("incrementing %q: %w", column, err)
		}
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return 0, widecolumn.IOError("increment", err)
	}

	next := current + delta
	if err := t.store.db.Set(key, widecolumn.EncodeCounter(next), t.store.wo); err != nil {
		return 0, widecolumn.IOError("increment", err)
	}
	return next, nil
}

func (t *table) Scan(ctx context.Context, start, stop []byte) (widecolumn.Scanner, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}
	lower, upper := widecolumn.ScanBounds(t.name, start, stop)
	iter, err := t.store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, widecolumn.IOError("scan", err)
	}
	iter.First()
	return &scanner{ctx: ctx, iter: iter, tablePrefix: widecolumn.TablePrefix(t.name)}, nil
}

func (t *table) Close() error {
	t.closed.Store(true)
	return nil
}

// scanner groups consecutive cell keys into rows.
type scanner struct {
	ctx         context.Context
	iter        *pebble.Iterator
	tablePrefix []byte
	current     *widecolumn.Result
	err         error
	closed      bool
}

func (s *scanner) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if !s.iter.Valid() {
		if err := s.iter.Error(); err != nil {
			s.err = widecolumn.IOError("scan", err)
		}
		return false
	}

	_, row, err := widecolumn.DecodeBytes(s.iter.Key()[len(s.tablePrefix):])
	if err != nil {
		s.err = widecolumn.IOError("scan", err)
		return false
	}
	rowPrefix := widecolumn.EncodeBytes(append([]byte(nil), s.tablePrefix...), row)

	var cells []widecolumn.Cell
	for ; s.iter.Valid() && bytes.HasPrefix(s.iter.Key(), rowPrefix); s.iter.Next() {
		cells = append(cells, widecolumn.Cell{
			Qualifier: bytes.Clone(s.iter.Key()[len(rowPrefix):]),
			Value:     bytes.Clone(s.iter.Value()),
		})
	}
	if err := s.iter.Error(); err != nil {
		s.err = widecolumn.IOError("scan", err)
		return false
	}
	s.current = widecolumn.NewResult(row, cells)
	return true
}

func (s *scanner) Result() *widecolumn.Result {
	return s.current
}

func (s *scanner) Err() error {
	return s.err
}

func (s *scanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.iter.Close(); err != nil {
		return widecolumn.IOError("closing scanner", err)
	}
	return nil
}
