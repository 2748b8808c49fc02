package device

import (
	"encoding/binary"
	"fmt"
)

// RecordType is the first byte of every row in the devices table.
type RecordType byte

// Top-level record types. RecordTypeEnd sorts after every real type and is
// only used as a scan bound.
const (
	RecordTypeSpecification RecordType = 0x01
	RecordTypeEnd           RecordType = 0xff
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeSpecification:
		return "specification"
	case RecordTypeEnd:
		return "end"
	}
	return fmt.Sprintf("record(0x%02x)", byte(t))
}

// SpecificationRecordType is the sub-kind byte following the truncated
// specification id.
type SpecificationRecordType byte

// Sub-record types within a specification. SubRecordEnd sorts after every
// real sub-kind.
const (
	SubRecordSpecification SpecificationRecordType = 0x01
	SubRecordCommand       SpecificationRecordType = 0x02
	SubRecordEnd           SpecificationRecordType = 0xff
)

func (t SpecificationRecordType) String() string {
	switch t {
	case SubRecordSpecification:
		return "specification"
	case SubRecordCommand:
		return "command"
	case SubRecordEnd:
		return "end"
	}
	return fmt.Sprintf("subrecord(0x%02x)", byte(t))
}

// Key layout widths.
const (
	// SpecIDWidth is the number of low-order id bytes kept in a row key.
	SpecIDWidth = 4

	// CommandIDWidth is the number of low-order command id bytes kept.
	CommandIDWidth = 4

	// PrimaryRowKeyLen is [type][spec id][sub-type].
	PrimaryRowKeyLen = 1 + SpecIDWidth + 1

	// CommandRowKeyLen is the primary layout plus the command id.
	CommandRowKeyLen = PrimaryRowKeyLen + CommandIDWidth
)

// TruncatedID returns the low-order width bytes of id's big-endian form.
func TruncatedID(id uint64, width int) []byte {
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], id)
	out := make([]byte, width)
	copy(out, full[8-width:])
	return out
}

func specRow(specID uint64, sub SpecificationRecordType, extra int) []byte {
	b := make([]byte, 0, PrimaryRowKeyLen+extra)
	b = append(b, byte(RecordTypeSpecification))
	b = append(b, TruncatedID(specID, SpecIDWidth)...)
	return append(b, byte(sub))
}

// PrimaryRowKey returns the key of the specification's own row.
func PrimaryRowKey(specID uint64) []byte {
	return specRow(specID, SubRecordSpecification, 0)
}

// CommandRowPrefix returns the prefix shared by every command row of the
// specification.
func CommandRowPrefix(specID uint64) []byte {
	return specRow(specID, SubRecordCommand, 0)
}

// CommandRowKey returns the key of one command row. Command ids are
// counter values, so the signed value is truncated as its two's
// complement bit pattern.
func CommandRowKey(specID uint64, cmdID int64) []byte {
	b := specRow(specID, SubRecordCommand, CommandIDWidth)
	return append(b, TruncatedID(uint64(cmdID), CommandIDWidth)...)
}

// EndRowPrefix returns the exclusive upper bound for scanning every
// sub-record of the specification.
func EndRowPrefix(specID uint64) []byte {
	return specRow(specID, SubRecordEnd, 0)
}

// SpecificationScanStart is the inclusive lower bound of all
// specification rows.
func SpecificationScanStart() []byte {
	return []byte{byte(RecordTypeSpecification)}
}

// SpecificationScanStop is the exclusive upper bound of all
// specification rows.
func SpecificationScanStop() []byte {
	return []byte{byte(RecordTypeEnd)}
}

// RowKey is a decoded devices-table row key.
type RowKey struct {
	Record    RecordType
	SpecID    uint32
	Sub       SpecificationRecordType
	CommandID uint32

	// HasCommandID is set for full command row keys.
	HasCommandID bool
}

// Bytes re-encodes the key.
func (k RowKey) Bytes() []byte {
	b := make([]byte, 0, CommandRowKeyLen)
	b = append(b, byte(k.Record))
	b = binary.BigEndian.AppendUint32(b, k.SpecID)
	b = append(b, byte(k.Sub))
	if k.HasCommandID {
		b = binary.BigEndian.AppendUint32(b, k.CommandID)
	}
	return b
}

// IsPrimary reports whether the key addresses a specification's own row.
func (k RowKey) IsPrimary() bool {
	return k.Record == RecordTypeSpecification && k.Sub == SubRecordSpecification && !k.HasCommandID
}

// IsCommand reports whether the key addresses a command row.
func (k RowKey) IsCommand() bool {
	return k.Record == RecordTypeSpecification && k.Sub == SubRecordCommand && k.HasCommandID
}

// ParseRowKey decodes a row key produced by this package: a 6-byte
// specification row or prefix, or a 10-byte command row.
func ParseRowKey(row []byte) (RowKey, error) {
	switch len(row) {
	case PrimaryRowKeyLen, CommandRowKeyLen:
	default:
		return RowKey{}, fmt.Errorf("%w: %d bytes", ErrMalformedRowKey, len(row))
	}
	if RecordType(row[0]) != RecordTypeSpecification {
		return RowKey{}, fmt.Errorf("%w: record type %s", ErrMalformedRowKey, RecordType(row[0]))
	}

	k := RowKey{
		Record: RecordTypeSpecification,
		SpecID: binary.BigEndian.Uint32(row[1 : 1+SpecIDWidth]),
		Sub:    SpecificationRecordType(row[1+SpecIDWidth]),
	}
	switch k.Sub {
	case SubRecordSpecification, SubRecordCommand, SubRecordEnd:
	default:
		return RowKey{}, fmt.Errorf("%w: sub-record type %s", ErrMalformedRowKey, k.Sub)
	}

	if len(row) == CommandRowKeyLen {
		if k.Sub != SubRecordCommand {
			return RowKey{}, fmt.Errorf("%w: %s row with command id", ErrMalformedRowKey, k.Sub)
		}
		k.CommandID = binary.BigEndian.Uint32(row[PrimaryRowKeyLen:])
		k.HasCommandID = true
	}
	return k, nil
}

// isPrimaryRow is the scan-time filter for specification rows.
func isPrimaryRow(row []byte) bool {
	return len(row) == PrimaryRowKeyLen &&
		RecordType(row[0]) == RecordTypeSpecification &&
		SpecificationRecordType(row[1+SpecIDWidth]) == SubRecordSpecification
}

// isCommandRow is the scan-time filter for command rows.
func isCommandRow(row []byte) bool {
	return len(row) == CommandRowKeyLen &&
		RecordType(row[0]) == RecordTypeSpecification &&
		SpecificationRecordType(row[1+SpecIDWidth]) == SubRecordCommand
}
