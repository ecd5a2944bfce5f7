package npy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBuffer(t *testing.T) {
	b := NewInMemoryBuffer(16)
	assert.Len(t, b.Data(), 16)
	copy(b.Data(), []byte("hello"))
	assert.Equal(t, []byte("hello"), b.Data()[:5])
	require.NoError(t, b.Close())
}

func TestMappedBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	content := make([]byte, 8192)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Run("whole file", func(t *testing.T) {
		b, err := NewMappedBuffer(path, 0, len(content))
		require.NoError(t, err)
		assert.Equal(t, content, b.Data())
		require.NoError(t, b.Close())
		require.NoError(t, b.Close()) // idempotent
	})

	t.Run("sub-page offset", func(t *testing.T) {
		// 118 is not page-aligned, so the mapping starts before the
		// requested region and Data must skip the remainder
		b, err := NewMappedBuffer(path, 118, 1000)
		require.NoError(t, err)
		assert.Equal(t, content[118:1118], b.Data())
		require.NoError(t, b.Close())
	})

	t.Run("region past end of file", func(t *testing.T) {
		_, err := NewMappedBuffer(path, 8000, 1000)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewMappedBuffer(filepath.Join(t.TempDir(), "nope"), 0, 8)
		require.Error(t, err)
	})
}
