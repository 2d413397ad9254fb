package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

// Record format
//
// A record is how the database stores a row in a b-tree. It has a header
// and a body:
//
//	+----+----+----+-- ... --+----+----+-- ... --+
//	| HS | S1 | S2 |         | SN | V1 |         |
//	+----+----+----+-- ... --+----+----+-- ... --+
//	|<------- header ------->|<----- body ------>|
//
// HS is the header size as a varint (it counts itself), S1..SN are one
// serial-type varint per column, and V1..VN are the column values in order.

// SerialType is a single tag from a record header describing one column's
// storage class and, for blobs and text, the byte length.
type SerialType uint64

// Fixed serial type codepoints
const (
	SerialTypeNull      SerialType = 0 // NULL, no data stored
	SerialTypeI8        SerialType = 1 // 8-bit signed integer
	SerialTypeI16       SerialType = 2 // 16-bit big-endian signed integer
	SerialTypeI24       SerialType = 3 // 24-bit big-endian signed integer
	SerialTypeI32       SerialType = 4 // 32-bit big-endian signed integer
	SerialTypeI48       SerialType = 5 // 48-bit big-endian signed integer
	SerialTypeI64       SerialType = 6 // 64-bit big-endian signed integer
	SerialTypeF64       SerialType = 7 // IEEE 754 float64, big-endian
	SerialTypeConstInt0 SerialType = 8 // integer constant 0, no data stored
	SerialTypeConstInt1 SerialType = 9 // integer constant 1, no data stored
)

// Codepoints 10 and 11 are reserved and never valid. Even codepoints >= 12
// are blobs of (n-12)/2 bytes; odd codepoints >= 13 are text of (n-13)/2
// bytes.

// SerialTypeKind is the storage class a serial type denotes.
type SerialTypeKind uint8

const (
	KindNull SerialTypeKind = iota
	KindI8
	KindI16
	KindI24
	KindI32
	KindI48
	KindI64
	KindF64
	KindConstInt0
	KindConstInt1
	KindBlob
	KindText
	// KindInvalid is the classification of the reserved codepoints 10 and 11.
	KindInvalid
)

// IsValidSerialType reports whether n is a legal serial type codepoint.
func IsValidSerialType(n uint64) bool {
	return n != 10 && n != 11
}

// NewSerialType validates a codepoint read from a record header.
func NewSerialType(n uint64) (SerialType, error) {
	if !IsValidSerialType(n) {
		return 0, dberrors.Corruptf("invalid serial type: %d", n)
	}
	return SerialType(n), nil
}

// BlobSerialType returns the tag for a blob of the given byte length.
func BlobSerialType(size uint64) SerialType {
	return SerialType(12 + 2*size)
}

// TextSerialType returns the tag for text of the given byte length.
func TextSerialType(size uint64) SerialType {
	return SerialType(13 + 2*size)
}

// Kind classifies the serial type.
func (st SerialType) Kind() SerialTypeKind {
	switch st {
	case SerialTypeNull:
		return KindNull
	case SerialTypeI8:
		return KindI8
	case SerialTypeI16:
		return KindI16
	case SerialTypeI24:
		return KindI24
	case SerialTypeI32:
		return KindI32
	case SerialTypeI48:
		return KindI48
	case SerialTypeI64:
		return KindI64
	case SerialTypeF64:
		return KindF64
	case SerialTypeConstInt0:
		return KindConstInt0
	case SerialTypeConstInt1:
		return KindConstInt1
	}
	if st < 12 {
		return KindInvalid
	}
	if st%2 == 0 {
		return KindBlob
	}
	return KindText
}

// Size returns the payload length in bytes for this serial type.
func (st SerialType) Size() int {
	switch st.Kind() {
	case KindNull, KindConstInt0, KindConstInt1, KindInvalid:
		return 0
	case KindI8:
		return 1
	case KindI16:
		return 2
	case KindI24:
		return 3
	case KindI32:
		return 4
	case KindI48:
		return 6
	case KindI64, KindF64:
		return 8
	case KindBlob:
		return int(st-12) / 2
	case KindText:
		return int(st-13) / 2
	}
	return 0
}

// SerialTypeFor picks the smallest serial type able to hold v. Supported
// value types are nil, int64, float64, string and []byte.
func SerialTypeFor(v any) (SerialType, error) {
	switch val := v.(type) {
	case nil:
		return SerialTypeNull, nil
	case int64:
		switch {
		case val == 0:
			return SerialTypeConstInt0, nil
		case val == 1:
			return SerialTypeConstInt1, nil
		case val >= math.MinInt8 && val <= math.MaxInt8:
			return SerialTypeI8, nil
		case val >= math.MinInt16 && val <= math.MaxInt16:
			return SerialTypeI16, nil
		case val >= -(1<<23) && val <= 1<<23-1:
			return SerialTypeI24, nil
		case val >= math.MinInt32 && val <= math.MaxInt32:
			return SerialTypeI32, nil
		case val >= -(1<<47) && val <= 1<<47-1:
			return SerialTypeI48, nil
		default:
			return SerialTypeI64, nil
		}
	case float64:
		return SerialTypeF64, nil
	case string:
		return TextSerialType(uint64(len(val))), nil
	case []byte:
		return BlobSerialType(uint64(len(val))), nil
	default:
		return 0, fmt.Errorf("unsupported record value type %T", v)
	}
}

// EncodeRecord serializes values into the record format. Values must be
// nil, int64, float64, string or []byte.
func EncodeRecord(values []any) ([]byte, error) {
	serialTypes := make([]SerialType, len(values))
	serialTypesSize := 0
	bodySize := 0
	for i, v := range values {
		st, err := SerialTypeFor(v)
		if err != nil {
			return nil, err
		}
		serialTypes[i] = st
		serialTypesSize += VarintLen(uint64(st))
		bodySize += st.Size()
	}

	// The header size varint counts itself, so iterate until stable.
	headerSize := serialTypesSize + 1
	for {
		next := VarintLen(uint64(headerSize)) + serialTypesSize
		if next == headerSize {
			break
		}
		headerSize = next
	}

	buf := make([]byte, headerSize+bodySize)
	n := PutVarint(buf, uint64(headerSize))
	for _, st := range serialTypes {
		n += PutVarint(buf[n:], uint64(st))
	}
	for i, v := range values {
		n += appendValue(buf[n:], v, serialTypes[i])
	}
	return buf, nil
}

// appendValue writes v's body bytes into buf and returns the byte count.
func appendValue(buf []byte, v any, st SerialType) int {
	switch st.Kind() {
	case KindNull, KindConstInt0, KindConstInt1:
		return 0
	case KindI8:
		buf[0] = byte(v.(int64))
		return 1
	case KindI16:
		binary.BigEndian.PutUint16(buf, uint16(v.(int64)))
		return 2
	case KindI24:
		n := uint32(v.(int64))
		buf[0], buf[1], buf[2] = byte(n>>16), byte(n>>8), byte(n)
		return 3
	case KindI32:
		binary.BigEndian.PutUint32(buf, uint32(v.(int64)))
		return 4
	case KindI48:
		n := uint64(v.(int64))
		buf[0], buf[1], buf[2] = byte(n>>40), byte(n>>32), byte(n>>24)
		buf[3], buf[4], buf[5] = byte(n>>16), byte(n>>8), byte(n)
		return 6
	case KindI64:
		binary.BigEndian.PutUint64(buf, uint64(v.(int64)))
		return 8
	case KindF64:
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.(float64)))
		return 8
	case KindText:
		return copy(buf, v.(string))
	case KindBlob:
		return copy(buf, v.([]byte))
	}
	return 0
}

// DecodeRecord deserializes a record into its column values. Integers of
// every width decode to int64, floats to float64, text to string and blobs
// to []byte.
func DecodeRecord(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, dberrors.Corruptf("empty record")
	}

	headerSize, n, err := ReadVarint(data)
	if err != nil {
		return nil, err
	}
	if headerSize > uint64(len(data)) || uint64(n) > headerSize {
		return nil, dberrors.Corruptf("record header size %d out of bounds", headerSize)
	}

	var serialTypes []SerialType
	offset := n
	for offset < int(headerSize) {
		raw, n, err := ReadVarint(data[offset:])
		if err != nil {
			return nil, err
		}
		st, err := NewSerialType(raw)
		if err != nil {
			return nil, err
		}
		serialTypes = append(serialTypes, st)
		offset += n
	}

	values := make([]any, len(serialTypes))
	for i, st := range serialTypes {
		v, n, err := decodeValue(data, offset, st)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		values[i] = v
		offset += n
	}
	return values, nil
}

// decodeValue decodes a single value from the record body.
func decodeValue(data []byte, offset int, st SerialType) (any, int, error) {
	size := st.Size()
	if offset+size > len(data) {
		return nil, 0, dberrors.Corruptf("truncated %v value", st.Kind())
	}

	switch st.Kind() {
	case KindNull:
		return nil, 0, nil
	case KindConstInt0:
		return int64(0), 0, nil
	case KindConstInt1:
		return int64(1), 0, nil
	case KindI8:
		return int64(int8(data[offset])), 1, nil
	case KindI16:
		return int64(int16(binary.BigEndian.Uint16(data[offset:]))), 2, nil
	case KindI24:
		v := int32(data[offset])<<16 | int32(data[offset+1])<<8 | int32(data[offset+2])
		if v&0x800000 != 0 {
			v |= ^int32(0xffffff) // Sign extend
		}
		return int64(v), 3, nil
	case KindI32:
		return int64(int32(binary.BigEndian.Uint32(data[offset:]))), 4, nil
	case KindI48:
		v := int64(data[offset])<<40 | int64(data[offset+1])<<32 |
			int64(data[offset+2])<<24 | int64(data[offset+3])<<16 |
			int64(data[offset+4])<<8 | int64(data[offset+5])
		if v&0x800000000000 != 0 {
			v |= ^int64(0xffffffffffff) // Sign extend
		}
		return v, 6, nil
	case KindI64:
		return int64(binary.BigEndian.Uint64(data[offset:])), 8, nil
	case KindF64:
		return math.Float64frombits(binary.BigEndian.Uint64(data[offset:])), 8, nil
	case KindText:
		return string(data[offset : offset+size]), size, nil
	case KindBlob:
		blob := make([]byte, size)
		copy(blob, data[offset:offset+size])
		return blob, size, nil
	default:
		return nil, 0, dberrors.Corruptf("invalid serial type: %d", uint64(st))
	}
}
