package storage

import (
	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

// Page size limits
const (
	// MinPageSize is the minimum allowed page size (512 bytes).
	MinPageSize = 512

	// MaxPageSize is the maximum allowed page size (65536 bytes).
	MaxPageSize = 65536

	// DefaultPageSize is the default page size for new databases.
	DefaultPageSize = 4096
)

// PageSize is a validated database page size in its on-disk 16-bit form.
// The page size field of the file header is two bytes, so the maximum size
// 65536 does not fit; the raw value 1 is the sentinel for it. Exactly one
// raw encoding is valid per logical size.
type PageSize uint16

// NewPageSize validates size and returns it in on-disk form. Valid sizes
// are powers of two between MinPageSize and MaxPageSize inclusive.
func NewPageSize(size uint32) (PageSize, error) {
	if size < MinPageSize || size > MaxPageSize {
		return 0, dberrors.Corruptf("invalid page size: %d", size)
	}
	if size&(size-1) != 0 {
		return 0, dberrors.Corruptf("page size is not a power of two: %d", size)
	}
	if size == MaxPageSize {
		return PageSize(1), nil
	}
	return PageSize(size), nil
}

// PageSizeFromHeader validates the raw 16-bit value read from the file
// header. Any value other than 1 must itself be a valid page size.
func PageSizeFromHeader(raw uint16) (PageSize, error) {
	if raw == 1 {
		return PageSize(1), nil
	}
	return NewPageSize(uint32(raw))
}

// DefaultSize returns the default page size in on-disk form.
func DefaultSize() PageSize {
	return PageSize(DefaultPageSize)
}

// Get returns the logical page size in bytes.
func (s PageSize) Get() uint32 {
	if s == 1 {
		return MaxPageSize
	}
	return uint32(s)
}

// Raw returns the on-disk 16-bit encoding.
func (s PageSize) Raw() uint16 {
	return uint16(s)
}
