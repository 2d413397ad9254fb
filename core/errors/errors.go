// Package errors provides standardized error types and helpers for the minilite codebase.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Sentinel errors for common cases
var (
	// ErrCorrupt indicates decoded bytes violated a structural invariant
	// of the file format. Corruption is never repaired silently and is
	// not retriable.
	ErrCorrupt = errors.New("database disk image is malformed")
	// ErrFileLock indicates a file-level lock could not be acquired or released
	ErrFileLock = errors.New("file lock error")
	// ErrFileExtension indicates the file could not be grown to the requested size
	ErrFileExtension = errors.New("file extension error")
	// ErrNotFound indicates a file or resource was not found
	ErrNotFound = errors.New("not found")
	// ErrReadOnly indicates a write was attempted on a read-only file
	ErrReadOnly = errors.New("attempt to write a readonly database")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// CorruptError represents structural corruption detected while decoding
// on-disk bytes, with context about what was malformed.
type CorruptError struct {
	Detail string // Description of the violated invariant
}

func (e *CorruptError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("database disk image is malformed: %s", e.Detail)
	}
	return "database disk image is malformed"
}

func (e *CorruptError) Unwrap() error {
	return ErrCorrupt
}

// Corruptf returns a CorruptError with a formatted detail message.
// Only for cold paths: decoding failures, not per-operation completions.
func Corruptf(format string, args ...any) error {
	return &CorruptError{Detail: fmt.Sprintf(format, args...)}
}

// IOErrorKind classifies an I/O failure by the underlying OS error class.
// Completions carry only this kind, never a formatted message, because
// they resolve on hot paths where string formatting is a needless cost.
type IOErrorKind uint8

const (
	// KindOther is any I/O failure not covered by a more specific kind.
	KindOther IOErrorKind = iota
	// KindNotFound means the file or path does not exist.
	KindNotFound
	// KindPermission means the operation was not permitted.
	KindPermission
	// KindExists means the file already exists.
	KindExists
	// KindInvalid means an argument was invalid (bad offset, closed file).
	KindInvalid
	// KindTimedOut means the operation timed out.
	KindTimedOut
	// KindUnsupported means the backend does not support the operation.
	KindUnsupported
)

// String returns a static description of the kind. No allocation.
func (k IOErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindPermission:
		return "permission denied"
	case KindExists:
		return "already exists"
	case KindInvalid:
		return "invalid argument"
	case KindTimedOut:
		return "timed out"
	case KindUnsupported:
		return "operation not supported"
	default:
		return "I/O error"
	}
}

// CompletionError is the error form a resolved Completion carries. It holds
// only the OS error classification, so it is cheap to construct and copy.
type CompletionError struct {
	Kind IOErrorKind
}

func (e CompletionError) Error() string {
	return e.Kind.String()
}

// KindOf maps an arbitrary error from the os/syscall layer to its
// IOErrorKind classification.
func KindOf(err error) IOErrorKind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission):
		return KindPermission
	case errors.Is(err, fs.ErrExist):
		return KindExists
	case errors.Is(err, fs.ErrInvalid), errors.Is(err, fs.ErrClosed):
		return KindInvalid
	case os.IsTimeout(err):
		return KindTimedOut
	default:
		return KindOther
	}
}

// Completion wraps an OS-level error into the kind-only form completions
// propagate.
func Completion(err error) error {
	return CompletionError{Kind: KindOf(err)}
}

// LockError represents a failure to acquire or release a file-level lock.
type LockError struct {
	Path string // File path involved
	Err  error  // Underlying error
}

func (e *LockError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("file lock error on %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("file lock error: %v", e.Err)
}

func (e *LockError) Unwrap() error {
	return ErrFileLock
}

// IsCorrupt reports whether err is (or wraps) a corruption error.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
