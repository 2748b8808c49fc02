// Package storetest holds the conformance suite every widecolumn backend
// must pass.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-specstore/internal/widecolumn"
)

// NewClientFunc opens a fresh, empty store for one subtest. The suite
// closes the client when the subtest ends.
type NewClientFunc func(t *testing.T) widecolumn.Client

// RunSuite runs the conformance suite against a backend.
func RunSuite(t *testing.T, newClient NewClientFunc) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, c widecolumn.Client)
	}{
		{"GetMissingRow", testGetMissingRow},
		{"PutGet", testPutGet},
		{"PutMergesColumns", testPutMergesColumns},
		{"GetSelectedColumns", testGetSelectedColumns},
		{"Delete", testDelete},
		{"DeleteMissingRow", testDeleteMissingRow},
		{"IncrementFromZero", testIncrementFromZero},
		{"IncrementNegative", testIncrementNegative},
		{"IncrementNotCounter", testIncrementNotCounter},
		{"IncrementConcurrent", testIncrementConcurrent},
		{"ScanOrderAndBounds", testScanOrderAndBounds},
		{"ScanOpenStop", testScanOpenStop},
		{"ScanBinaryRows", testScanBinaryRows},
		{"ScanEarlyClose", testScanEarlyClose},
		{"TablesIsolated", testTablesIsolated},
		{"EmptyRow", testEmptyRow},
		{"InvalidTable", testInvalidTable},
		{"ClosedTable", testClosedTable},
		{"HealthCheck", testHealthCheck},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t)
			t.Cleanup(func() {
				if err := c.Close(); err != nil {
					t.Errorf("Close() error = %v", err)
				}
			})
			tt.fn(t, c)
		})
	}
}

func openTable(t *testing.T, c widecolumn.Client, name string) widecolumn.Table {
	t.Helper()
	tbl, err := c.Table(context.Background(), name)
	if err != nil {
		t.Fatalf("Table(%q) error = %v", name, err)
	}
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func put(t *testing.T, tbl widecolumn.Table, row string, kv ...string) {
	t.Helper()
	cells := make([]widecolumn.Cell, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		cells = append(cells, widecolumn.Cell{Qualifier: []byte(kv[i]), Value: []byte(kv[i+1])})
	}
	if err := tbl.Put(context.Background(), []byte(row), cells...); err != nil {
		t.Fatalf("Put(%q) error = %v", row, err)
	}
}

func scanRows(t *testing.T, tbl widecolumn.Table, start, stop []byte) [][]byte {
	t.Helper()
	var rows [][]byte
	err := widecolumn.WithScanner(context.Background(), tbl, start, stop, func(s widecolumn.Scanner) error {
		for s.Next() {
			rows = append(rows, append([]byte(nil), s.Result().Row...))
		}
		return s.Err()
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return rows
}

func testGetMissingRow(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	r, err := tbl.Get(context.Background(), []byte("nope"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !r.IsEmpty() {
		t.Errorf("Get() = %d cells, want 0", r.Size())
	}
}

func testPutGet(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	put(t, tbl, "row1", "json", `{"a":1}`, "deleted", "\x01")

	r, err := tbl.Get(context.Background(), []byte("row1"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := []widecolumn.Cell{
		{Qualifier: []byte("deleted"), Value: []byte{0x01}},
		{Qualifier: []byte("json"), Value: []byte(`{"a":1}`)},
	}
	if diff := cmp.Diff(want, r.Cells); diff != "" {
		t.Errorf("Get() cells mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(r.Row, []byte("row1")) {
		t.Errorf("Get() row = %q, want row1", r.Row)
	}
}

func testPutMergesColumns(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	put(t, tbl, "row1", "a", "1", "b", "2")
	put(t, tbl, "row1", "b", "3", "c", "4")

	r, err := tbl.Get(context.Background(), []byte("row1"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got := map[string]string{}
	for _, cell := range r.Cells {
		got[string(cell.Qualifier)] = string(cell.Value)
	}
	want := map[string]string{"a": "1", "b": "3", "c": "4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged row mismatch (-want +got):\n%s", diff)
	}
}

func testGetSelectedColumns(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	put(t, tbl, "row1", "a", "1", "b", "2", "c", "3")

	r, err := tbl.Get(context.Background(), []byte("row1"), []byte("a"), []byte("c"), []byte("zz"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Size() != 2 {
		t.Fatalf("Get() = %d cells, want 2", r.Size())
	}
	if r.Has([]byte("b")) {
		t.Error("Get() returned unselected column b")
	}
	if string(r.Value([]byte("c"))) != "3" {
		t.Errorf("c = %q, want 3", r.Value([]byte("c")))
	}
}

func testDelete(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	put(t, tbl, "row1", "a", "1", "b", "2")
	put(t, tbl, "row2", "a", "1")

	if err := tbl.Delete(context.Background(), []byte("row1")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	r, err := tbl.Get(context.Background(), []byte("row1"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !r.IsEmpty() {
		t.Errorf("row1 still has %d cells", r.Size())
	}
	r, err = tbl.Get(context.Background(), []byte("row2"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.IsEmpty() {
		t.Error("row2 removed by delete of row1")
	}
}

func testDeleteMissingRow(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	if err := tbl.Delete(context.Background(), []byte("ghost")); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func testIncrementFromZero(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := tbl.Increment(ctx, []byte("ctr"), []byte("n"), 1)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if got != want {
			t.Errorf("Increment() = %d, want %d", got, want)
		}
	}

	r, err := tbl.Get(ctx, []byte("ctr"), []byte("n"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	v, err := widecolumn.DecodeCounter(r.Value([]byte("n")))
	if err != nil {
		t.Fatalf("DecodeCounter() error = %v", err)
	}
	if v != 3 {
		t.Errorf("stored counter = %d, want 3", v)
	}
}

func testIncrementNegative(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	ctx := context.Background()

	err := tbl.Put(ctx, []byte("ctr"), widecolumn.Cell{
		Qualifier: []byte("n"),
		Value:     widecolumn.EncodeCounter(math.MaxInt64),
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := tbl.Increment(ctx, []byte("ctr"), []byte("n"), -1)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if got != math.MaxInt64-1 {
		t.Errorf("Increment() = %d, want %d", got, int64(math.MaxInt64-1))
	}
}

func testIncrementNotCounter(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	put(t, tbl, "row", "n", "abc")

	_, err := tbl.Increment(context.Background(), []byte("row"), []byte("n"), 1)
	if !errors.Is(err, widecolumn.ErrNotCounter) {
		t.Errorf("Increment() error = %v, want ErrNotCounter", err)
	}
}

func testIncrementConcurrent(t *testing.T, c widecolumn.Client) {
	const workers, perWorker = 8, 25

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, workers*perWorker)
		errs = make(chan error, workers)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := widecolumn.WithTable(context.Background(), c, "t", func(tbl widecolumn.Table) error {
				for i := 0; i < perWorker; i++ {
					v, err := tbl.Increment(context.Background(), []byte("ctr"), []byte("n"), 1)
					if err != nil {
						return err
					}
					mu.Lock()
					if seen[v] {
						mu.Unlock()
						return fmt.Errorf("duplicate counter value %d", v)
					}
					seen[v] = true
					mu.Unlock()
				}
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if len(seen) != workers*perWorker {
		t.Errorf("distinct values = %d, want %d", len(seen), workers*perWorker)
	}
}

func testScanOrderAndBounds(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	for _, row := range []string{"d", "a", "c", "b", "e"} {
		put(t, tbl, row, "q", row)
	}

	got := scanRows(t, tbl, []byte("b"), []byte("e"))
	want := [][]byte{[]byte("b"), []byte("c"), []byte("d")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() rows mismatch (-want +got):\n%s", diff)
	}
}

func testScanOpenStop(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	for _, row := range []string{"a", "b", "c"} {
		put(t, tbl, row, "q", row)
	}

	got := scanRows(t, tbl, []byte("b"), nil)
	want := [][]byte{[]byte("b"), []byte("c")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() rows mismatch (-want +got):\n%s", diff)
	}
}

func testScanBinaryRows(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	rows := [][]byte{
		{0x01, 0x00, 0x00, 0x00, 0x01, 0x01},
		{0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x7f, 0xff, 0xff, 0xfe},
		{0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x7f, 0xff, 0xff, 0xff},
		{0x01, 0x00, 0x00, 0x00, 0x01, 0xff},
		{0x01, 0x00, 0x00, 0x00, 0x02, 0x01},
	}
	ctx := context.Background()
	for i := len(rows) - 1; i >= 0; i-- {
		if err := tbl.Put(ctx, rows[i], widecolumn.Cell{Qualifier: []byte("q"), Value: []byte{byte(i)}}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got := scanRows(t, tbl, []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x02}, []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0xff})
	if diff := cmp.Diff(rows[1:3], got); diff != "" {
		t.Errorf("Scan() rows mismatch (-want +got):\n%s", diff)
	}

	all := scanRows(t, tbl, []byte{0x01}, []byte{0xff})
	if diff := cmp.Diff(rows, all); diff != "" {
		t.Errorf("full Scan() rows mismatch (-want +got):\n%s", diff)
	}
}

func testScanEarlyClose(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	for _, row := range []string{"a", "b", "c"} {
		put(t, tbl, row, "q", row)
	}

	var first []byte
	err := widecolumn.WithScanner(context.Background(), tbl, nil, nil, func(s widecolumn.Scanner) error {
		if s.Next() {
			first = append([]byte(nil), s.Result().Row...)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if string(first) != "a" {
		t.Errorf("first row = %q, want a", first)
	}

	// The table stays usable after an abandoned scan.
	put(t, tbl, "d", "q", "d")
	if n := len(scanRows(t, tbl, nil, nil)); n != 4 {
		t.Errorf("rows after early close = %d, want 4", n)
	}
}

func testTablesIsolated(t *testing.T, c widecolumn.Client) {
	a := openTable(t, c, "alpha")
	b := openTable(t, c, "beta")
	put(t, a, "row", "q", "a")

	r, err := b.Get(context.Background(), []byte("row"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !r.IsEmpty() {
		t.Error("row written to alpha visible in beta")
	}
	if rows := scanRows(t, b, nil, nil); len(rows) != 0 {
		t.Errorf("beta scan = %d rows, want 0", len(rows))
	}
}

func testEmptyRow(t *testing.T, c widecolumn.Client) {
	tbl := openTable(t, c, "t")
	err := tbl.Put(context.Background(), nil, widecolumn.Cell{Qualifier: []byte("q"), Value: []byte("v")})
	if !errors.Is(err, widecolumn.ErrEmptyRow) {
		t.Errorf("Put() error = %v, want ErrEmptyRow", err)
	}
}

func testInvalidTable(t *testing.T, c widecolumn.Client) {
	_, err := c.Table(context.Background(), "")
	if !errors.Is(err, widecolumn.ErrInvalidTable) {
		t.Errorf("Table(\"\") error = %v, want ErrInvalidTable", err)
	}
}

func testClosedTable(t *testing.T, c widecolumn.Client) {
	tbl, err := c.Table(context.Background(), "t")
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_, err = tbl.Get(context.Background(), []byte("row"))
	if !errors.Is(err, widecolumn.ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func testHealthCheck(t *testing.T, c widecolumn.Client) {
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
