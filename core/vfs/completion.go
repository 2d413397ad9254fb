package vfs

import (
	"sync/atomic"
)

// CompletionKind identifies the I/O operation a Completion belongs to.
type CompletionKind uint8

const (
	// CompletionRead is a positioned read into a destination buffer.
	CompletionRead CompletionKind = iota
	// CompletionWrite is a positioned write (single or vectored).
	CompletionWrite
	// CompletionSync is a durability barrier.
	CompletionSync
	// CompletionTruncate is a file length change.
	CompletionTruncate
)

// String returns the kind name.
func (k CompletionKind) String() string {
	switch k {
	case CompletionRead:
		return "read"
	case CompletionWrite:
		return "write"
	case CompletionSync:
		return "sync"
	case CompletionTruncate:
		return "truncate"
	default:
		return "unknown"
	}
}

// ReadComplete is invoked when a read completion resolves. On success err is
// nil and n is the number of bytes read into buf.
type ReadComplete func(buf *Buffer, n int32, err error)

// WriteComplete is invoked when a write completion resolves with the number
// of bytes written.
type WriteComplete func(n int32, err error)

// SyncComplete is invoked when a sync completion resolves.
type SyncComplete func(n int32, err error)

// TruncateComplete is invoked when a truncate completion resolves.
type TruncateComplete func(n int32, err error)

// Completion represents exactly one outstanding or finished I/O operation.
//
// A completion has two observable states: pending and resolved. It resolves
// at most once, with either a byte count (Complete) or an error (Fail); a
// second resolution is a contract violation and panics. The callback fires
// synchronously on the goroutine that resolves the completion.
type Completion struct {
	kind     CompletionKind
	buf      *Buffer // read destination, nil for other kinds
	callback func(n int32, err error)

	resolved atomic.Bool
	done     chan struct{}
	n        int32
	err      error
}

func newCompletion(kind CompletionKind, buf *Buffer, callback func(n int32, err error)) *Completion {
	return &Completion{
		kind:     kind,
		buf:      buf,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// NewReadCompletion creates a completion for a positioned read into buf.
func NewReadCompletion(buf *Buffer, complete ReadComplete) *Completion {
	var cb func(n int32, err error)
	if complete != nil {
		cb = func(n int32, err error) {
			complete(buf, n, err)
		}
	}
	return newCompletion(CompletionRead, buf, cb)
}

// NewWriteCompletion creates a completion for a positioned write.
func NewWriteCompletion(complete WriteComplete) *Completion {
	return newCompletion(CompletionWrite, nil, func(n int32, err error) {
		if complete != nil {
			complete(n, err)
		}
	})
}

// NewSyncCompletion creates a completion for a sync operation.
func NewSyncCompletion(complete SyncComplete) *Completion {
	return newCompletion(CompletionSync, nil, func(n int32, err error) {
		if complete != nil {
			complete(n, err)
		}
	})
}

// NewTruncateCompletion creates a completion for a truncate operation.
func NewTruncateCompletion(complete TruncateComplete) *Completion {
	return newCompletion(CompletionTruncate, nil, func(n int32, err error) {
		if complete != nil {
			complete(n, err)
		}
	})
}

// Kind returns the operation kind this completion was created for.
func (c *Completion) Kind() CompletionKind {
	return c.kind
}

// Buf returns the destination buffer of a read completion. Calling it on
// any other kind is a programming error.
func (c *Completion) Buf() *Buffer {
	if c.kind != CompletionRead {
		panic("vfs: Buf called on a " + c.kind.String() + " completion")
	}
	return c.buf
}

// Complete resolves the completion with a non-negative byte count and
// invokes the callback. Panics if the completion was already resolved.
func (c *Completion) Complete(n int32) {
	c.resolve(n, nil)
}

// Fail resolves the completion with an error and invokes the callback.
// Panics if the completion was already resolved.
func (c *Completion) Fail(err error) {
	c.resolve(-1, err)
}

func (c *Completion) resolve(n int32, err error) {
	if !c.resolved.CompareAndSwap(false, true) {
		panic("vfs: completion resolved twice")
	}
	c.n = n
	c.err = err
	if c.callback != nil {
		c.callback(n, err)
	}
	close(c.done)
}

// Done reports whether the completion has resolved.
func (c *Completion) Done() bool {
	return c.resolved.Load()
}

// Wait blocks until the completion resolves. For synchronous backends this
// returns immediately.
func (c *Completion) Wait() {
	<-c.done
}

// Result returns the resolved byte count and error. It blocks until the
// completion resolves.
func (c *Completion) Result() (int32, error) {
	<-c.done
	return c.n, c.err
}
