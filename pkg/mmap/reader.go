// Package mmap provides read-only memory-mapped file access for the Arrow
// file store. Mapped bytes back the record batches of an opened table, so
// the mapping must stay alive until the store is closed.
package mmap

import (
	"fmt"
	"os"
	"sync"
)

// Reader is a read-only memory mapping of a whole file.
type Reader struct {
	file     *os.File
	data     []byte
	fileSize int64
	mapped   bool

	mu sync.RWMutex
}

// Open memory maps filename for reading.
func Open(filename string) (*Reader, error) {
	file, err := os.Open(filename) //nolint:gosec // G304: path comes from the table descriptor
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fileSize := stat.Size()
	if fileSize == 0 {
		file.Close()
		return nil, fmt.Errorf("file is empty")
	}

	data, mapped, err := mapFile(file, int(fileSize))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap file: %w", err)
	}

	if mapped {
		// Advisory only
		_ = madvise(data, MadvSequential)
	}

	return &Reader{
		file:     file,
		data:     data,
		fileSize: fileSize,
		mapped:   mapped,
	}, nil
}

// Bytes returns the mapped file contents. The slice is invalid after Close.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 {
	return r.fileSize
}

// ReadRange returns a sub-slice of the mapping.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset < 0 || offset >= r.fileSize {
		return nil, fmt.Errorf("offset %d out of range [0, %d)", offset, r.fileSize)
	}

	end := offset + length
	if end > r.fileSize {
		end = r.fileSize
	}
	return r.data[offset:end], nil
}

// Close unmaps the file and closes it. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	if r.data != nil {
		if r.mapped {
			err = munmap(r.data)
		}
		r.data = nil
	}

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}

	return err
}
