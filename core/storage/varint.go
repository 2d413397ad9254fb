package storage

import (
	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

// Variable-length integer encoding/decoding (SQLite format)
//
// A varint encodes a 64-bit unsigned integer into 1-9 bytes, most
// significant byte first. The first 1-8 bytes carry 7 data bits with the
// high bit as a continuation flag; only the 9-byte form uses all 8 bits of
// its final byte.

// MaxVarintLen is the maximum encoded length of a varint.
const MaxVarintLen = 9

// PutVarint writes v to p and returns the number of bytes written. p must
// have room for VarintLen(v) bytes.
func PutVarint(p []byte, v uint64) int {
	if v <= 0x7f {
		p[0] = byte(v)
		return 1
	}
	if v <= 0x3fff {
		p[0] = byte((v>>7)&0x7f) | 0x80
		p[1] = byte(v & 0x7f)
		return 2
	}
	return putVarint64(p, v)
}

// putVarint64 handles the general case of encoding a 64-bit varint.
func putVarint64(p []byte, v uint64) int {
	if v&(uint64(0xff000000)<<32) != 0 {
		// Bits 56-63 are in use: only the 9-byte form can carry them.
		// The trailing byte holds the low 8 bits raw.
		p[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			p[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return 9
	}

	// Count the 7-bit groups needed
	n := 1
	for temp := v >> 7; temp > 0; temp >>= 7 {
		n++
	}

	// Encode from most significant to least significant; the continuation
	// bit is clear only on the final byte.
	for i := n - 1; i >= 0; i-- {
		b := byte((v >> uint(i*7)) & 0x7f)
		if i > 0 {
			b |= 0x80
		}
		p[n-1-i] = b
	}
	return n
}

// ReadVarint reads a varint from p and returns the value and the number of
// bytes consumed. A varint whose continuation chain runs past the available
// bytes, or whose 9th byte would overflow 64 bits, is corrupt data.
func ReadVarint(p []byte) (uint64, int, error) {
	if len(p) == 0 {
		return 0, 0, dberrors.Corruptf("truncated varint")
	}

	// Fast paths for the 1- and 2-byte cases
	if p[0] < 0x80 {
		return uint64(p[0]), 1, nil
	}
	if len(p) > 1 && p[1] < 0x80 {
		return uint64(p[0]&0x7f)<<7 | uint64(p[1]), 2, nil
	}

	var v uint64
	for i := 0; i < 8; i++ {
		if i >= len(p) {
			return 0, 0, dberrors.Corruptf("truncated varint")
		}
		v = v<<7 | uint64(p[i]&0x7f)
		if p[i]&0x80 == 0 {
			return v, i + 1, nil
		}
	}

	// All 8 bytes had the continuation bit set; a 9th raw byte is required.
	if len(p) < 9 {
		return 0, 0, dberrors.Corruptf("truncated varint: 9th byte missing")
	}
	if v>>56 != 0 {
		return 0, 0, dberrors.Corruptf("varint overflows 64 bits")
	}
	return v<<8 | uint64(p[8]), 9, nil
}

// VarintLen returns the number of bytes PutVarint emits for v.
func VarintLen(v uint64) int {
	if v <= 0x7f {
		return 1
	}
	if v <= 0x3fff {
		return 2
	}
	if v <= 0x1fffff {
		return 3
	}
	if v <= 0xfffffff {
		return 4
	}
	if v <= 0x7ffffffff {
		return 5
	}
	if v <= 0x3ffffffffff {
		return 6
	}
	if v <= 0x1ffffffffffff {
		return 7
	}
	if v <= 0xffffffffffffff {
		return 8
	}
	return 9
}
