//go:build linux
// +build linux

package mmap

import (
	"os"
	"syscall"
)

func mapFile(f *os.File, length int) ([]byte, bool, error) {
	data, err := syscall.Mmap(int(f.Fd()), 0, length, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// munmap wraps the munmap system call
func munmap(b []byte) error {
	return syscall.Munmap(b)
}

// madvise wraps the madvise system call
func madvise(b []byte, advice int) error {
	return syscall.Madvise(b, advice)
}

const (
	// MadvSequential hints sequential access
	MadvSequential = syscall.MADV_SEQUENTIAL //nolint:stylecheck
)
