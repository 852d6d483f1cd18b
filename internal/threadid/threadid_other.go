//go:build !linux

package threadid

import (
	"os"
	"strconv"
)

// Current falls back to the process id on non-Linux builds; spec.md
// assumes a Linux-style ring (section 6), so this path only matters for
// running the formatting/pool/queue packages' tests on a dev machine
// that isn't Linux.
func Current() string {
	return strconv.Itoa(os.Getpid())
}
