package widecolumn

import "errors"

// Sentinel errors for store operations.
//
// Backends wrap transport and storage failures with ErrIO so that callers
// can distinguish "storage unavailable" from domain errors:
//
//	if errors.Is(err, widecolumn.ErrIO) {
//	    // store failure, safe to retry at a higher layer
//	}
var (
	// ErrIO is returned when a read, write or scan cannot be completed.
	ErrIO = errors.New("widecolumn: i/o failure")

	// ErrClosed is returned when a handle, scanner or client is used after Close.
	ErrClosed = errors.New("widecolumn: closed")

	// ErrNotCounter is returned when Increment targets a cell whose value is
	// not an 8-byte counter.
	ErrNotCounter = errors.New("widecolumn: cell is not a counter")

	// ErrEmptyRow is returned when an operation is given an empty row key.
	ErrEmptyRow = errors.New("widecolumn: empty row key")

	// ErrInvalidTable is returned when a table name is empty.
	ErrInvalidTable = errors.New("widecolumn: invalid table name")
)
