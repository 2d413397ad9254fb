package vfs

import (
	"fmt"
	"sync"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

// memPageSize is the fixed granularity of the in-memory backing store. It is
// independent of the database page size.
const memPageSize = 4096

// MemoryFile is an in-memory File backed by a sparse page map. It is the
// reference backend for tests and purely in-memory databases.
//
// Never-written regions read as zero bytes. That is a property of this
// backend, not a general File guarantee.
//
// All operations resolve their completion synchronously before returning.
// A mutex guards the page map and size, so a MemoryFile is safe to share
// across goroutines.
type MemoryFile struct {
	path string

	mu    sync.Mutex
	pages map[int64][]byte
	size  int64
}

// NewMemoryFile creates an empty in-memory file.
func NewMemoryFile(path string) *MemoryFile {
	return &MemoryFile{
		path:  path,
		pages: make(map[int64][]byte),
	}
}

// LockFile is a no-op: an in-memory file has no cross-process visibility.
func (f *MemoryFile) LockFile() error {
	return nil
}

// UnlockFile is a no-op.
func (f *MemoryFile) UnlockFile() error {
	return nil
}

// Size returns the logical file size. Size grows only from writes and
// shrinks only from Truncate.
func (f *MemoryFile) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, nil
}

// Pread reads into the completion's buffer starting at pos.
//
// A read that starts at or beyond the current size completes with 0 bytes.
// Otherwise min(len(buf), size-pos) bytes are read, split across page
// boundaries, with absent pages supplying zeros.
func (f *MemoryFile) Pread(pos int64, c *Completion) (*Completion, error) {
	buf := c.Buf()
	bufLen := int64(buf.Len())
	if bufLen == 0 {
		c.Complete(0)
		return c, nil
	}

	f.mu.Lock()
	if pos >= f.size {
		f.mu.Unlock()
		c.Complete(0)
		return c, nil
	}

	readLen := bufLen
	if avail := f.size - pos; avail < readLen {
		readLen = avail
	}

	dst := buf.Bytes()
	offset := pos
	remaining := readLen
	bufOffset := int64(0)
	for remaining > 0 {
		pageNo := offset / memPageSize
		pageOffset := offset % memPageSize
		n := remaining
		if max := memPageSize - pageOffset; max < n {
			n = max
		}

		if page, ok := f.pages[pageNo]; ok {
			copy(dst[bufOffset:bufOffset+n], page[pageOffset:pageOffset+n])
		} else {
			zero(dst[bufOffset : bufOffset+n])
		}

		offset += n
		bufOffset += n
		remaining -= n
	}
	f.mu.Unlock()

	c.Complete(int32(readLen))
	return c, nil
}

// Pwrite writes buf at pos, allocating zero-filled pages on first touch and
// growing the logical size to max(pos+written, size).
func (f *MemoryFile) Pwrite(pos int64, buf *Buffer, c *Completion) (*Completion, error) {
	bufLen := int64(buf.Len())
	if bufLen == 0 {
		c.Complete(0)
		return c, nil
	}

	f.mu.Lock()
	f.writeLocked(pos, buf.Bytes())
	if end := pos + bufLen; end > f.size {
		f.size = end
	}
	f.mu.Unlock()

	c.Complete(int32(bufLen))
	return c, nil
}

// Pwritev writes bufs contiguously starting at pos. Empty buffers are
// skipped; the total byte count is the sum of the buffer lengths.
func (f *MemoryFile) Pwritev(pos int64, bufs []*Buffer, c *Completion) (*Completion, error) {
	if len(bufs) == 0 {
		c.Complete(0)
		return c, nil
	}

	f.mu.Lock()
	offset := pos
	var total int64
	for _, buf := range bufs {
		if buf.IsEmpty() {
			continue
		}
		f.writeLocked(offset, buf.Bytes())
		offset += int64(buf.Len())
		total += int64(buf.Len())
	}
	if end := pos + total; end > f.size {
		f.size = end
	}
	f.mu.Unlock()

	c.Complete(int32(total))
	return c, nil
}

// writeLocked copies data into the page map starting at offset, splitting
// across page boundaries. Caller holds f.mu.
func (f *MemoryFile) writeLocked(offset int64, data []byte) {
	remaining := int64(len(data))
	bufOffset := int64(0)
	for remaining > 0 {
		pageNo := offset / memPageSize
		pageOffset := offset % memPageSize
		n := remaining
		if max := memPageSize - pageOffset; max < n {
			n = max
		}

		page, ok := f.pages[pageNo]
		if !ok {
			page = make([]byte, memPageSize)
			f.pages[pageNo] = page
		}
		copy(page[pageOffset:pageOffset+n], data[bufOffset:bufOffset+n])

		offset += n
		bufOffset += n
		remaining -= n
	}
}

// Sync is a no-op for an in-memory file, resolved immediately.
func (f *MemoryFile) Sync(c *Completion) (*Completion, error) {
	c.Complete(0)
	return c, nil
}

// Truncate sets the logical size to length. Pages starting at or beyond the
// new length are dropped, and the tail of the boundary page past the
// truncation point is zeroed so a later extension reads zeros.
func (f *MemoryFile) Truncate(length int64, c *Completion) (*Completion, error) {
	f.mu.Lock()
	if length < f.size {
		for pageNo := range f.pages {
			if pageNo*memPageSize >= length {
				delete(f.pages, pageNo)
			}
		}
		if tail := length % memPageSize; tail != 0 {
			if page, ok := f.pages[length/memPageSize]; ok {
				zero(page[tail:])
			}
		}
	}
	f.size = length
	f.mu.Unlock()

	c.Complete(0)
	return c, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// MemoryIO is the reactor for in-memory files. Every operation resolves
// synchronously, so Step, Cancel and Drain are trivial.
type MemoryIO struct {
	SystemClock

	mu    sync.Mutex
	files map[string]*MemoryFile
}

// NewMemoryIO creates an in-memory IO with no open files.
func NewMemoryIO() *MemoryIO {
	return &MemoryIO{
		files: make(map[string]*MemoryFile),
	}
}

// OpenFile returns the file registered at path, creating it when flags
// include OpenCreate. Opening the same path twice returns the same file.
func (io *MemoryIO) OpenFile(path string, flags OpenFlags) (File, error) {
	io.mu.Lock()
	defer io.mu.Unlock()

	if f, ok := io.files[path]; ok {
		return f, nil
	}
	if !flags.Has(OpenCreate) {
		return nil, fmt.Errorf("open %s: %w", path, dberrors.ErrNotFound)
	}

	f := NewMemoryFile(path)
	io.files[path] = f
	return f, nil
}

// RemoveFile deletes the file registered at path.
func (io *MemoryIO) RemoveFile(path string) error {
	io.mu.Lock()
	defer io.mu.Unlock()

	if _, ok := io.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, dberrors.ErrNotFound)
	}
	delete(io.files, path)
	return nil
}

// Step has no pending work to advance.
func (io *MemoryIO) Step() error {
	return nil
}

// Cancel is a no-op: no operation is ever actually pending, so there is
// nothing to cancel.
func (io *MemoryIO) Cancel(cs []*Completion) error {
	return nil
}

// Drain has no outstanding work to wait for.
func (io *MemoryIO) Drain() error {
	return nil
}

// WaitForCompletion blocks until c resolves and returns its error.
func (io *MemoryIO) WaitForCompletion(c *Completion) error {
	_, err := c.Result()
	return err
}
