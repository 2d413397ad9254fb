package vfs

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
	"github.com/FocuswithJustin/minilite/internal/logging"
)

// DiskFile is an on-disk File. Reads are served from a memory mapping of the
// file; writes go through the file descriptor and the mapping is re-created
// whenever the file grows or shrinks. All operations resolve their
// completion synchronously.
type DiskFile struct {
	path     string
	readOnly bool

	mu   sync.Mutex
	file *os.File
	data mmap.MMap
	size int64
}

func openDiskFile(path string, flags OpenFlags) (*DiskFile, error) {
	readOnly := flags.Has(OpenReadOnly)

	mode := os.O_RDWR
	if readOnly {
		mode = os.O_RDONLY
	}
	if flags.Has(OpenCreate) {
		mode |= os.O_CREATE
	}

	fh, err := os.OpenFile(path, mode, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}

	f := &DiskFile{
		path:     path,
		readOnly: readOnly,
		file:     fh,
		size:     fi.Size(),
	}
	if err := f.remap(); err != nil {
		fh.Close()
		return nil, err
	}
	return f, nil
}

// remap rebuilds the memory mapping for the current size. Caller holds f.mu
// (or exclusive ownership during open). A zero-length file has no mapping.
func (f *DiskFile) remap() error {
	if f.data != nil {
		if err := f.data.Unmap(); err != nil {
			return err
		}
		f.data = nil
	}
	if f.size == 0 {
		return nil
	}

	prot := mmap.RDWR
	if f.readOnly {
		prot = mmap.RDONLY
	}
	data, err := mmap.Map(f.file, prot, 0)
	if err != nil {
		return err
	}
	f.data = data
	return nil
}

// LockFile acquires an advisory lock on the file: shared for read-only
// files, exclusive otherwise. Non-blocking; a held lock is an error.
func (f *DiskFile) LockFile() error {
	how := unix.LOCK_EX | unix.LOCK_NB
	if f.readOnly {
		how = unix.LOCK_SH | unix.LOCK_NB
	}
	if err := unix.Flock(int(f.file.Fd()), how); err != nil {
		return &dberrors.LockError{Path: f.path, Err: err}
	}
	return nil
}

// UnlockFile releases the advisory lock.
func (f *DiskFile) UnlockFile() error {
	if err := unix.Flock(int(f.file.Fd()), unix.LOCK_UN); err != nil {
		return &dberrors.LockError{Path: f.path, Err: err}
	}
	return nil
}

// Size returns the current file size in bytes.
func (f *DiskFile) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, nil
}

// Pread reads into the completion's buffer starting at pos. A read starting
// at or beyond the file size completes with 0 bytes.
func (f *DiskFile) Pread(pos int64, c *Completion) (*Completion, error) {
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
	copy(buf.Bytes()[:readLen], f.data[pos:pos+readLen])
	f.mu.Unlock()

	c.Complete(int32(readLen))
	return c, nil
}

// Pwrite writes buf at pos through the file descriptor, remapping when the
// file grows.
func (f *DiskFile) Pwrite(pos int64, buf *Buffer, c *Completion) (*Completion, error) {
	if f.readOnly {
		c.Fail(dberrors.CompletionError{Kind: dberrors.KindPermission})
		return c, nil
	}
	bufLen := int64(buf.Len())
	if bufLen == 0 {
		c.Complete(0)
		return c, nil
	}

	f.mu.Lock()
	if _, err := f.file.WriteAt(buf.Bytes(), pos); err != nil {
		f.mu.Unlock()
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	if err := f.grewTo(pos + bufLen); err != nil {
		f.mu.Unlock()
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	f.mu.Unlock()

	c.Complete(int32(bufLen))
	return c, nil
}

// Pwritev writes bufs contiguously starting at pos.
func (f *DiskFile) Pwritev(pos int64, bufs []*Buffer, c *Completion) (*Completion, error) {
	if f.readOnly {
		c.Fail(dberrors.CompletionError{Kind: dberrors.KindPermission})
		return c, nil
	}
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
		if _, err := f.file.WriteAt(buf.Bytes(), offset); err != nil {
			f.mu.Unlock()
			c.Fail(dberrors.Completion(err))
			return c, nil
		}
		offset += int64(buf.Len())
		total += int64(buf.Len())
	}
	if err := f.grewTo(pos + total); err != nil {
		f.mu.Unlock()
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	f.mu.Unlock()

	c.Complete(int32(total))
	return c, nil
}

// grewTo updates the tracked size and remaps after a write that may have
// extended the file. Caller holds f.mu.
func (f *DiskFile) grewTo(end int64) error {
	if end <= f.size {
		return nil
	}
	f.size = end
	return f.remap()
}

// Sync flushes the mapping and the file to stable storage.
func (f *DiskFile) Sync(c *Completion) (*Completion, error) {
	f.mu.Lock()
	if f.data != nil {
		if err := f.data.Flush(); err != nil {
			f.mu.Unlock()
			c.Fail(dberrors.Completion(err))
			return c, nil
		}
	}
	err := f.file.Sync()
	f.mu.Unlock()

	if err != nil {
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	c.Complete(0)
	return c, nil
}

// Truncate sets the file size to length and remaps.
func (f *DiskFile) Truncate(length int64, c *Completion) (*Completion, error) {
	if f.readOnly {
		c.Fail(dberrors.CompletionError{Kind: dberrors.KindPermission})
		return c, nil
	}

	f.mu.Lock()
	if err := f.file.Truncate(length); err != nil {
		f.mu.Unlock()
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	f.size = length
	err := f.remap()
	f.mu.Unlock()

	if err != nil {
		c.Fail(dberrors.Completion(err))
		return c, nil
	}
	c.Complete(0)
	return c, nil
}

// Close unmaps and closes the underlying file. Close is not part of the
// File contract; it belongs to the host that owns the DiskIO.
func (f *DiskFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data != nil {
		if err := f.data.Unmap(); err != nil {
			return err
		}
		f.data = nil
	}
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// DiskIO is the reactor for on-disk files. Like MemoryIO it resolves every
// operation synchronously, so the reactor methods are trivial; an
// io_uring-style backend would implement the same surface with real pending
// work.
type DiskIO struct {
	SystemClock
}

// NewDiskIO creates an on-disk IO.
func NewDiskIO() *DiskIO {
	return &DiskIO{}
}

// OpenFile opens or creates the file at path according to flags.
func (io *DiskIO) OpenFile(path string, flags OpenFlags) (File, error) {
	f, err := openDiskFile(path, flags)
	if err != nil {
		return nil, err
	}
	logging.FileOp("open", path, "read_only", f.readOnly)
	return f, nil
}

// RemoveFile deletes the file at path.
func (io *DiskIO) RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return err
	}
	logging.FileOp("remove", path)
	return nil
}

// Step has no pending work to advance.
func (io *DiskIO) Step() error {
	return nil
}

// Cancel is a no-op for a synchronous backend.
func (io *DiskIO) Cancel(cs []*Completion) error {
	return nil
}

// Drain has no outstanding work to wait for.
func (io *DiskIO) Drain() error {
	return nil
}

// WaitForCompletion blocks until c resolves and returns its error.
func (io *DiskIO) WaitForCompletion(c *Completion) error {
	_, err := c.Result()
	return err
}
