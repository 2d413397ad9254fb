package vfs

import "fmt"

// Buffer is an owned, fixed-size byte region. The backing array is allocated
// once and never reallocated or resized, so slices handed out by Bytes()
// remain valid for the buffer's entire lifetime. Length is immutable after
// creation.
//
// A Buffer may be shared across an asynchronous boundary (a read completion
// holds a reference to its destination buffer), but the buffer itself does
// not arbitrate concurrent mutation: callers must serialize access while an
// I/O operation against it is outstanding.
type Buffer struct {
	data []byte
}

// NewBuffer creates a buffer that takes ownership of data. The caller must
// not retain or resize data afterwards.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// NewBufferZeroed creates a zero-filled buffer of the given size.
func NewBufferZeroed(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Len returns the buffer length in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// IsEmpty reports whether the buffer has zero length.
func (b *Buffer) IsEmpty() bool {
	return len(b.data) == 0
}

// Bytes returns the full backing slice. The slice aliases the buffer's
// storage; writes through it are writes to the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(len=%d)", len(b.data))
}
