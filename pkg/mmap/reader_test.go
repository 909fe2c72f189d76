package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderMapsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	content := []byte("arrow file bytes")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, content, r.Bytes())
	assert.Equal(t, int64(len(content)), r.Size())

	part, err := r.ReadRange(6, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("file"), part)

	_, err = r.ReadRange(100, 1)
	assert.Error(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Nil(t, r.Bytes())
}

func TestOpenRejectsEmptyAndMissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "absent"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Open(empty)
	assert.Error(t, err)
}
