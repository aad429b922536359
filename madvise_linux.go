//go:build linux

package phonedata

import "golang.org/x/sys/unix"

// adviseSequential tells the kernel the mapping is about to be read front
// to back once, so readahead can be aggressive and pages dropped early.
// Best-effort: errors are ignored.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
