package ringlog

import (
	"fmt"
	"os"
	"syscall"

	"github.com/mattn/go-isatty"
)

// defaultErrorHandler is the InternalErrorHandler a Logger falls back to
// when Config.InternalErrorHandler is unset. It mirrors the reference
// implementation's default_error_handler (SPEC_FULL.md section 4, item
// 4): a fixed "[ringlog]" prefix plus the message, written to stderr,
// with the terminal-aware ANSI coloring the teacher's ConsoleWriter
// applies when writing to a real terminal.
func defaultErrorHandler(err error) {
	if err == nil {
		return
	}

	if isTerminal(os.Stderr) {
		fmt.Fprintf(os.Stderr, "%s[ringlog] %s%s\n", Red, err.Error(), Reset)

		return
	}

	fmt.Fprintf(os.Stderr, "[ringlog] %s\n", err.Error())
}

// isTerminal reports whether stderr is connected to a real terminal,
// the same isatty-backed check the teacher's internal/output.IsTerminal
// performs for stdout/stderr.
func isTerminal(f *os.File) bool {
	if f.Fd() == uintptr(syscall.Stdout) || f.Fd() == uintptr(syscall.Stderr) {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}
