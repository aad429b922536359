//go:build linux

package phonedata

import "golang.org/x/sys/unix"

// fadviseSequential hints that the database file will be read sequentially
// by Open. Best-effort: errors are silently ignored.
func fadviseSequential(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_SEQUENTIAL)
}
