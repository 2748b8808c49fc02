package widecolumn

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Ordered key-value backends flatten (table, row, qualifier) into a single
// cell key:
//
//	enc(table) ++ enc(row) ++ qualifier
//
// enc escapes every 0x00 byte as 0x00 0xff and terminates with 0x00 0x01.
// The encoding preserves the lexicographic order of the raw bytes and is
// prefix-free, so all cells of a row, and all rows of a table, occupy one
// contiguous key range.
const (
	escape      byte = 0x00
	escapedTerm byte = 0x01
	escaped00   byte = 0xff
)

// CounterWidth is the size of a counter cell value.
const CounterWidth = 8

// EncodeBytes appends the escaped, terminated form of data to b.
func EncodeBytes(b []byte, data []byte) []byte {
	for {
		i := bytes.IndexByte(data, escape)
		if i == -1 {
			break
		}
		b = append(b, data[:i]...)
		b = append(b, escape, escaped00)
		data = data[i+1:]
	}
	b = append(b, data...)
	return append(b, escape, escapedTerm)
}

// DecodeBytes decodes one value written by EncodeBytes from the front of b.
// It returns the remainder of b and the decoded bytes.
func DecodeBytes(b []byte) (rest []byte, data []byte, err error) {
	data = []byte{}
	for {
		i := bytes.IndexByte(b, escape)
		if i == -1 {
			return nil, nil, fmt.Errorf("did not find terminator in buffer %#x", b)
		}
		if i+1 >= len(b) {
			return nil, nil, fmt.Errorf("malformed escape in buffer %#x", b)
		}
		switch b[i+1] {
		case escapedTerm:
			data = append(data, b[:i]...)
			return b[i+2:], data, nil
		case escaped00:
			data = append(data, b[:i]...)
			data = append(data, escape)
		default:
			return nil, nil, fmt.Errorf("unknown escape sequence %#x %#x", escape, b[i+1])
		}
		b = b[i+2:]
	}
}

// TablePrefix returns the key prefix shared by every cell of a table.
func TablePrefix(table string) []byte {
	return EncodeBytes(nil, []byte(table))
}

// RowPrefix returns the key prefix shared by every cell of one row.
func RowPrefix(table string, row []byte) []byte {
	return EncodeBytes(TablePrefix(table), row)
}

// CellKey returns the flattened key of one cell.
func CellKey(table string, row, qualifier []byte) []byte {
	return append(RowPrefix(table, row), qualifier...)
}

// DecodeCellKey splits a key produced by CellKey back into its parts.
func DecodeCellKey(key []byte) (table string, row, qualifier []byte, err error) {
	rest, t, err := DecodeBytes(key)
	if err != nil {
		return "", nil, nil, fmt.Errorf("decoding table: %w", err)
	}
	rest, row, err = DecodeBytes(rest)
	if err != nil {
		return "", nil, nil, fmt.Errorf("decoding row: %w", err)
	}
	return string(t), row, rest, nil
}

// ScanBounds returns the cell-key range [lower, upper) covering rows in
// [start, stop) of table. An empty stop extends to the end of the table.
func ScanBounds(table string, start, stop []byte) (lower, upper []byte) {
	lower = EncodeBytes(TablePrefix(table), start)
	if len(start) == 0 {
		lower = TablePrefix(table)
	}
	if len(stop) == 0 {
		return lower, PrefixEnd(TablePrefix(table))
	}
	return lower, EncodeBytes(TablePrefix(table), stop)
}

// PrefixEnd returns the smallest key greater than every key carrying prefix.
// A prefix made only of 0xff bytes has no such key and is returned as is.
func PrefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return prefix
}

// EncodeCounter returns the 8-byte big-endian form of v.
func EncodeCounter(v int64) []byte {
	b := make([]byte, CounterWidth)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// DecodeCounter parses an 8-byte big-endian counter value.
func DecodeCounter(b []byte) (int64, error) {
	if len(b) != CounterWidth {
		return 0, fmt.Errorf("%w: %d bytes", ErrNotCounter, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
