package docutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageTempFile(t *testing.T) {
	path, cleanup, err := StageTempFile([]byte("hello"), "docqa-*.png")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "png", Ext(path))

	cleanup()
	assert.False(t, FileExists(path))
}

func TestExt(t *testing.T) {
	assert.Equal(t, "pdf", Ext("Report.PDF"))
	assert.Equal(t, "", Ext("README"))
	assert.Equal(t, "jpeg", Ext("/tmp/a.b/photo.jpeg"))
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.PDF", "sub/c.xlsx", "skip.md"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	files, err := FindFiles(dir, []string{"pdf", ".txt", "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.PDF"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "sub", "c.xlsx"),
	}, files)
}
