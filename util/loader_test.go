package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirectoryImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "c.txt", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "a.png", files[0].Name)
	assert.Equal(t, "b.jpg", files[1].Name)
	assert.Equal(t, "c.txt", files[2].Name)

	data, err := files[1].Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("b.jpg"), data)

	_, err = LoadDirectoryImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadSubdirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"warrior", "tree", "lotus", ".cache"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), nil, 0o644))

	names, err := LoadSubdirectories(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"lotus", "tree", "warrior"}, names)
}
