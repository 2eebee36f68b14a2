//go:build !windows

package bytesource

import "os"

// openReadOnly opens path for reading. On non-Windows platforms a plain
// os.Open already gives the opaque, read-only byte source spec.md §6 asks
// for, so no syscall-level share-mode dance is needed here.
func openReadOnly(path string) (*os.File, error) {
	return os.Open(path)
}
