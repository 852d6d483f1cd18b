// Package threadid resolves the "producing thread" identifier spec.md's
// Record.thread_id names. On Linux it is grounded on the same
// golang.org/x/sys/unix dependency internal/ring uses for the io_uring
// syscalls: unix.Gettid() returns the kernel thread id of the calling
// OS thread.
package threadid

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// Current returns the calling OS thread's kernel id, formatted as a
// decimal string. Because the Go runtime may move a goroutine between OS
// threads between calls, this is only a point-in-time identifier, the
// same caveat spec.md's glossary leaves implicit for "thread_id".
func Current() string {
	return strconv.Itoa(unix.Gettid())
}
