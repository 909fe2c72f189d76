package store

import (
	"io"
	"os"
)

// WriteAtomically writes path via a sibling temporary file that is renamed
// into place only after fn and the sync succeed.
func WriteAtomically(path string, fn func(w io.Writer) error) (err error) {
	tmp := path + ".tmp"
	file, err := os.Create(tmp) //nolint:gosec // G304: caller-provided target
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(tmp)
		}
	}()

	if err = fn(file); err != nil {
		return err
	}
	if err = file.Sync(); err != nil {
		return err
	}
	if err = file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
