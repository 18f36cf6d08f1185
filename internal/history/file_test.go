package history

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_MissingFile(t *testing.T) {
	storage := NewFileStorage(filepath.Join(t.TempDir(), "pressure.csv"))
	_, err := storage.ReadLines()
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFileStorage_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	storage := NewFileStorage(filepath.Join(dir, "nested", "pressure.csv"))

	require.NoError(t, storage.WriteAll([]byte("a\nb\nc")))
	lines, err := storage.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	require.NoError(t, storage.WriteAll([]byte("d")))
	lines, err = storage.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, lines)
}

func TestFileStorage_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	storage := NewFileStorage(filepath.Join(dir, "pressure.csv"))
	require.NoError(t, storage.WriteAll([]byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pressure.csv", entries[0].Name())
	assert.Equal(t, filepath.Join(dir, "pressure.csv"), storage.Path())
}
