//go:build linux

package phonedata

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for the database being written, so a full
// disk fails here rather than with SIGBUS while writing through the mapping.
func preallocate(file *os.File, size int64) error {
	fd := int(file.Fd())
	if err := unix.Fallocate(fd, 0, 0, size); err != nil {
		// Some filesystems (NFS, tmpfs on old kernels) lack fallocate.
		return unix.Ftruncate(fd, size)
	}
	return unix.Ftruncate(fd, size)
}
