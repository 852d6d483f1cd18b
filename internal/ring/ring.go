// Package ring wraps the kernel asynchronous submit/complete ring spec.md's
// C4 names: a fixed-depth queue of in-flight writes, submitted in batches
// and reaped via completion events, plus the per-submission Continuation
// (C6) that keeps a buffer alive from submission to completion. The worker
// goroutine (internal/worker) is the ring's only caller; nothing here is
// safe for concurrent use by multiple goroutines, mirroring spec.md
// section 5's single-writer policy for the ring.
package ring

import (
	"sync/atomic"
	"time"

	"github.com/ringlog/ringlog/internal/bufpool"
)

// Continuation pairs one outstanding write submission with the buffer
// whose bytes were submitted, per spec.md section 4.6. It is resumed
// exactly once, from the worker goroutine, when ProcessCompletions
// observes the matching completion queue entry.
type Continuation struct {
	// Buffer is the buffer whose bytes were handed to PrepareWrite. The
	// ring keeps this reachable (via its outstanding-submission table)
	// so the Go garbage collector never reclaims it out from under an
	// in-flight kernel write.
	Buffer *bufpool.Buffer
	// Result is the completion's result code: non-negative is bytes
	// written, negative is a kernel error code, valid only once Done
	// reports true.
	Result int32

	done atomic.Bool
}

// NewContinuation allocates a Continuation for a write of buf.
func NewContinuation(buf *bufpool.Buffer) *Continuation {
	return &Continuation{Buffer: buf}
}

// Done reports whether the ring has delivered this continuation's
// completion.
func (c *Continuation) Done() bool {
	return c.done.Load()
}

// Resume delivers a completion result to the continuation. Production
// Ring implementations call this exactly once, from ProcessCompletions,
// when the kernel reports the matching completion queue entry. It is
// exported so a fake Ring used in tests (internal/worker's test suite,
// for one) can drive the same resumption path without duplicating it.
func (c *Continuation) Resume(result int32) {
	c.Result = result
	c.done.Store(true)
}

// Ring is the contract spec.md's C4 names. PrepareWrite stages one write
// against a submission slot without doing any I/O; Submit hands staged
// slots to the kernel; ProcessCompletions drains whatever completions are
// ready and resumes their Continuations; WaitForCompletion blocks up to
// timeout for at least one completion to become ready.
type Ring interface {
	// PrepareWrite stages a write of data against fd, tagged with cont.
	// It returns false when the ring has no free submission slot
	// (ordinary backpressure: the caller should Submit and retry) or
	// when the ring is not operational.
	PrepareWrite(fd uintptr, data []byte, cont *Continuation) bool
	// Submit hands every staged submission to the kernel. It returns
	// false on a fatal ring error, after which the ring marks itself
	// non-operational.
	Submit() bool
	// ProcessCompletions drains ready completions, resuming their
	// Continuations, and returns how many were processed. It never
	// panics.
	ProcessCompletions() int
	// WaitForCompletion blocks for at most timeout until at least one
	// completion is ready. It returns false on timeout.
	WaitForCompletion(timeout time.Duration) bool
	// IsOperational reports the ring's atomic operational flag.
	IsOperational() bool
	// MarkFailed flips the operational flag to false. Idempotent.
	MarkFailed()
	// Close releases the ring's kernel resources.
	Close() error
}

var _ Ring = (*LinuxRing)(nil)
