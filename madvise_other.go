//go:build !linux

package phonedata

// adviseSequential is a no-op on non-Linux platforms.
func adviseSequential(data []byte) {}
