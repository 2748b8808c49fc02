// Package widecolumn defines the sparse, range-scannable wide-column store
// contract that the specification store persists into.
//
// A store holds named tables. A table holds rows addressed by byte-array
// keys, sorted lexicographically. Each row holds any number of cells, one
// per column qualifier. The contract is deliberately narrow:
//
//	Get        read selected (or all) cells of one row
//	Put        write cells of one row atomically
//	Delete     remove a row and all its cells
//	Increment  atomic read-modify-write of one 8-byte counter cell
//	Scan       lazy ascending iteration over [start, stop)
//
// # Resource Scope
//
// Table handles and scanners are resources. Every caller acquires them
// through WithTable and WithScanner, which release the resource on every
// exit path, including errors and partially consumed scans:
//
//	err := widecolumn.WithTable(ctx, client, "devices", func(t widecolumn.Table) error {
//	    return widecolumn.WithScanner(ctx, t, start, stop, func(s widecolumn.Scanner) error {
//	        for s.Next() {
//	            handle(s.Result())
//	        }
//	        return s.Err()
//	    })
//	})
//
// # Implementations
//
//   - memstore: in-memory B-tree, used by tests and development runs
//   - pebblestore: embedded LSM store (cockroachdb/pebble)
//   - sqlitestore: SQLite-backed cells table
//
// All implementations pass the shared conformance suite in storetest.
package widecolumn
