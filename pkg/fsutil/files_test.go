package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMove(t *testing.T) {
	t.Run("moves file into existing directory", func(t *testing.T) {
		tempDir := t.TempDir()
		src := filepath.Join(tempDir, "a.bin")
		dst := filepath.Join(tempDir, "b.bin")
		require.NoError(t, os.WriteFile(src, []byte("payload"), FileModeDefault))

		require.NoError(t, Move(src, dst))

		assert.NoFileExists(t, src)
		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("creates destination directory", func(t *testing.T) {
		tempDir := t.TempDir()
		src := filepath.Join(tempDir, "a.bin")
		dst := filepath.Join(tempDir, "items", "some-item", "a.bin")
		require.NoError(t, os.WriteFile(src, []byte("payload"), FileModeDefault))

		require.NoError(t, Move(src, dst))
		assert.FileExists(t, dst)
	})

	t.Run("rejects empty paths", func(t *testing.T) {
		assert.Error(t, Move("", "somewhere"))
		assert.Error(t, Move("somewhere", ""))
	})
}

func TestCopy(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.txt")
	dst := filepath.Join(tempDir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("copy me"), FileModeDefault))

	require.NoError(t, Copy(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "copy me", string(data))
	// Source stays in place.
	assert.FileExists(t, src)
}

func TestMD5File(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), FileModeDefault))

	sum, err := MD5File(path)
	require.NoError(t, err)
	// md5("hello world")
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", sum)

	_, err = MD5File(filepath.Join(tempDir, "missing.bin"))
	assert.Error(t, err)
}
