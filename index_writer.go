package phonedata

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// fileWriter writes a database image of known size through a read-write
// mapping of a preallocated temporary file, then renames it into place.
type fileWriter struct {
	path    string
	tmpPath string
	file    *os.File
	mmap    mmap.MMap
}

// newFileWriter creates path+".tmp", reserves size bytes and maps it.
func newFileWriter(path string, size int) (*fileWriter, error) {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create database file: %w", err)
	}

	if err := preallocate(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(tmpPath))
	}

	mm, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("mmap database file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(tmpPath))
	}

	return &fileWriter{
		path:    path,
		tmpPath: tmpPath,
		file:    file,
		mmap:    mm,
	}, nil
}

// data returns the writable mapping.
func (w *fileWriter) data() []byte {
	return w.mmap
}

// commit flushes the mapping, closes the file and renames it to the final
// path. On failure the temporary file is removed.
func (w *fileWriter) commit() error {
	if err := w.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("flush database file: %w", err)
		return errors.Join(primaryErr, w.abort())
	}
	if err := w.close(); err != nil {
		return errors.Join(err, os.Remove(w.tmpPath))
	}
	if err := os.Rename(w.tmpPath, w.path); err != nil {
		primaryErr := fmt.Errorf("rename database file: %w", err)
		return errors.Join(primaryErr, os.Remove(w.tmpPath))
	}
	return nil
}

// abort releases the mapping and removes the temporary file.
func (w *fileWriter) abort() error {
	return errors.Join(w.close(), os.Remove(w.tmpPath))
}

// close is idempotent.
func (w *fileWriter) close() error {
	var unmapErr error
	if w.mmap != nil {
		unmapErr = w.mmap.Unmap()
		w.mmap = nil
	}
	var closeErr error
	if w.file != nil {
		closeErr = w.file.Close()
		w.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}
