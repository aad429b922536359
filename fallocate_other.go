//go:build !linux && !darwin

package phonedata

import "os"

// preallocate sets the file size. Disk blocks may not be reserved.
func preallocate(file *os.File, size int64) error {
	return file.Truncate(size)
}
