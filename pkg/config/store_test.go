package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDoc struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Stamp float64 `json:"stamp"`
}

func TestNewFileStore(t *testing.T) {
	t.Run("creates store with custom path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "doc.json")
		store, err := NewFileStore(path)
		require.NoError(t, err)
		assert.Equal(t, path, store.Path())
	})

	t.Run("creates store with default path when empty", func(t *testing.T) {
		store, err := NewFileStore("")
		require.NoError(t, err)

		homeDir, _ := os.UserHomeDir()
		assert.Equal(t, filepath.Join(homeDir, ".taskify", "session.json"), store.Path())
	})
}

func TestFileStore_ReadMissing(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	var doc testDoc
	found, err := store.Read(&doc)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStore_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "doc.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(testDoc{Name: "a", Count: 2, Stamp: 1700000000.5}))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	var doc testDoc
	found, err := store.Read(&doc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, testDoc{Name: "a", Count: 2, Stamp: 1700000000.5}, doc)
}

func TestFileStore_Overwrite(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "doc.json"))
	require.NoError(t, err)

	require.NoError(t, store.Write(testDoc{Name: "first"}))
	require.NoError(t, store.Write(testDoc{Name: "second"}))

	var doc testDoc
	_, err = store.Read(&doc)
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Name)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	var doc testDoc
	found, err := store.Read(&doc)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestFileStore_Remove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Write(testDoc{Name: "x"}))
	require.NoError(t, store.Remove())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	assert.NoError(t, store.Remove())
}
