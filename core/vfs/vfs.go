// Package vfs defines the completion-based asynchronous file I/O contract
// used by the storage layer, together with its reference backends.
//
// A caller allocates a Buffer, wraps it in a Completion describing the
// operation and its callback, and submits it to a File. The backend fills
// the buffer and resolves the completion exactly once. Resolution may happen
// synchronously inside the submitting call (both backends in this package do
// so) or later, driven by the host calling IO.Step, IO.Drain or
// IO.WaitForCompletion on an asynchronous backend.
//
// The contract gives no ordering guarantee between two submitted operations.
// A caller that needs ordering must wait for one completion before
// submitting the next.
package vfs

// OpenFlags is a combinable set of file-open options.
type OpenFlags int

const (
	// OpenNone requests no special behavior.
	OpenNone OpenFlags = 0
	// OpenCreate creates the file if it does not exist.
	OpenCreate OpenFlags = 1 << 0
	// OpenReadOnly opens the file for reading only.
	OpenReadOnly OpenFlags = 1 << 1
)

// DefaultFlags returns the default open mode: create if absent.
func DefaultFlags() OpenFlags {
	return OpenCreate
}

// Has reports whether every bit of flag is set in f.
func (f OpenFlags) Has(flag OpenFlags) bool {
	return f&flag == flag
}

// File is the persistent-storage contract. All positioned operations take a
// Completion and return the same Completion after arranging for it to be
// resolved, either immediately or at some later point. Methods return a
// non-nil error only when the operation could not be submitted at all;
// failures of the operation itself travel through the completion.
type File interface {
	// LockFile acquires the file-level lock.
	LockFile() error

	// UnlockFile releases the file-level lock.
	UnlockFile() error

	// Size returns the current logical file size in bytes.
	Size() (int64, error)

	// Pread reads into the completion's buffer starting at pos.
	Pread(pos int64, c *Completion) (*Completion, error)

	// Pwrite writes buf at pos.
	Pwrite(pos int64, buf *Buffer, c *Completion) (*Completion, error)

	// Pwritev writes bufs contiguously starting at pos.
	Pwritev(pos int64, bufs []*Buffer, c *Completion) (*Completion, error)

	// Sync flushes buffered writes to stable storage.
	Sync(c *Completion) (*Completion, error)

	// Truncate sets the logical file size to length.
	Truncate(length int64, c *Completion) (*Completion, error)
}

// IO is the reactor surface a host drives. It owns file lifecycle and any
// pending asynchronous work.
type IO interface {
	Clock

	// OpenFile opens or creates the file at path according to flags.
	OpenFile(path string, flags OpenFlags) (File, error)

	// RemoveFile deletes the file at path.
	RemoveFile(path string) error

	// Step advances any pending asynchronous work by one increment. A
	// synchronous backend has nothing pending and returns immediately.
	Step() error

	// Cancel requests best-effort cancellation of the given completions.
	Cancel(cs []*Completion) error

	// Drain blocks until all outstanding work has finished.
	Drain() error

	// WaitForCompletion blocks until c resolves and returns its error, if
	// any.
	WaitForCompletion(c *Completion) error
}
