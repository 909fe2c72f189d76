//go:build !linux && !darwin

package mmap

import (
	"io"
	"os"
)

// mapFile reads the file into memory on platforms without mmap support.
func mapFile(f *os.File, length int) ([]byte, bool, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func munmap(b []byte) error { return nil }

func madvise(b []byte, advice int) error { return nil }

const MadvSequential = 0
