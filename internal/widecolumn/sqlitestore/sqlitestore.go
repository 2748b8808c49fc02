// Package sqlitestore is a widecolumn backend storing cells in a single
// SQLite table.
//
// The schema lives in the migrations package and must be applied before
// use. Scans are read into memory when opened: the database runs on one
// connection, and a cursor held open across a caller's writes would
// deadlock it.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-specstore/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

const upsertCell = `
	INSERT INTO cells (tbl, row_key, qualifier, value) VALUES (?, ?, ?, ?)
	ON CONFLICT (tbl, row_key, qualifier) DO UPDATE SET value = excluded.value`

// Store is a SQLite-backed wide-column store.
type Store struct {
	db     *database.DB
	closed atomic.Bool
}

// New wraps an open, migrated database. Close does not close db.
func New(db *database.DB) *Store {
	return &Store{db: db}
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

// HealthCheck delegates to the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.closed.Load() {
		return widecolumn.ErrClosed
	}
	if err := s.db.HealthCheck(ctx); err != nil {
		return widecolumn.IOError("health check", err)
	}
	return nil
}

// Close marks the store closed. The database stays open for its owner.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
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
	rows, err := t.store.db.QueryContext(ctx,
		"SELECT qualifier, value FROM cells WHERE tbl = ? AND row_key = ?",
		t.name, nonNil(row),
	)
	if err != nil {
		return nil, widecolumn.IOError("get", err)
	}
	defer rows.Close()

	var cells []widecolumn.Cell
	for rows.Next() {
		var c widecolumn.Cell
		if err := rows.Scan(&c.Qualifier, &c.Value); err != nil {
			return nil, widecolumn.IOError("get", err)
		}
		if widecolumn.WantColumn(columns, c.Qualifier) {
			cells = append(cells, c)
		}
	}
	if err := rows.Err(); err != nil {
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
	err := t.store.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, c := range cells {
			if _, err := tx.ExecContext(ctx, upsertCell, t.name, row, nonNil(c.Qualifier), nonNil(c.Value)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return widecolumn.IOError("put", err)
	}
	return nil
}

func (t *table) Delete(ctx context.Context, row []byte) error {
	if err := t.begin(ctx); err != nil {
		return err
	}
	_, err := t.store.db.ExecContext(ctx, "DELETE FROM cells WHERE tbl = ? AND row_key = ?", t.name, nonNil(row))
	if err != nil {
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

	var next int64
	err := t.store.db.InTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			"SELECT value FROM cells WHERE tbl = ? AND row_key = ? AND qualifier = ?",
			t.name, row, nonNil(column),
		).Scan(&raw)

		var current int64
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return widecolumn.IOError("increment", err)
		default:
			if current, err = widecolumn.DecodeCounter(raw); err != nil {
				return fmt.Errorf("incrementing %q: %w", column, err)
			}
		}

		next = current + delta
		if _, err := tx.ExecContext(ctx, upsertCell, t.name, row, nonNil(column), widecolumn.EncodeCounter(next)); err != nil {
			return widecolumn.IOError("increment", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, widecolumn.ErrNotCounter) || errors.Is(err, widecolumn.ErrIO) {
			return 0, err
		}
		return 0, widecolumn.IOError("increment", err)
	}
	return next, nil
}

func (t *table) Scan(ctx context.Context, start, stop []byte) (widecolumn.Scanner, error) {
	if err := t.begin(ctx); err != nil {
		return nil, err
	}

	query := "SELECT row_key, qualifier, value FROM cells WHERE tbl = ? AND row_key >= ?"
	args := []any{t.name, nonNil(start)}
	if len(stop) > 0 {
		query += " AND row_key < ?"
		args = append(args, stop)
	}
	query += " ORDER BY row_key, qualifier"

	rows, err := t.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, widecolumn.IOError("scan", err)
	}
	defer rows.Close()

	var (
		results []*widecolumn.Result
		current *widecolumn.Result
	)
	for rows.Next() {
		var rowKey []byte
		var c widecolumn.Cell
		if err := rows.Scan(&rowKey, &c.Qualifier, &c.Value); err != nil {
			return nil, widecolumn.IOError("scan", err)
		}
		if current == nil || string(current.Row) != string(rowKey) {
			current = &widecolumn.Result{Row: rowKey}
			results = append(results, current)
		}
		current.Cells = append(current.Cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, widecolumn.IOError("scan", err)
	}
	return &scanner{ctx: ctx, rows: results, pos: -1}, nil
}

func (t *table) Close() error {
	t.closed.Store(true)
	return nil
}

type scanner struct {
	ctx  context.Context
	rows []*widecolumn.Result
	pos  int
	err  error
}

func (s *scanner) Next() bool {
	if s.err != nil || s.pos+1 >= len(s.rows) {
		return false
	}
	if err := s.ctx.Err(); err != nil {
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

func (s *scanner) Err() error { return s.err }

func (s *scanner) Close() error {
	s.rows = nil
	return nil
}

// nonNil maps nil to an empty blob; the driver binds nil slices as NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
