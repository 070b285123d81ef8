package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		baseDir := filepath.Join(t.TempDir(), "nested", "snapreel")

		s, err := NewLocalStorage(baseDir)
		require.NoError(t, err)
		assert.Equal(t, baseDir, s.Dir())

		info, err := os.Stat(baseDir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		s, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "snapreel"), s.Dir())
	})
}

func TestLocalStorage_PutGet(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	url, err := s.Put(ctx, "videos/run-1.mp4", bytes.NewReader([]byte("mp4 bytes")), "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), "url = %s", url)

	rc, err := s.Get(ctx, "videos/run-1.mp4")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "mp4 bytes", string(data))
}

func TestLocalStorage_Get_NotFound(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.Get(context.Background(), "videos/nope.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_Delete(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "uploads/img.png", strings.NewReader("png bytes"), "image/png")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "uploads/img.png"))

	_, err = s.Get(ctx, "uploads/img.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// Deleting again reports the missing object.
	err = s.Delete(ctx, "uploads/img.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_Delete_CancelledContext(t *testing.T) {
	s := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, s.Delete(ctx, "uploads/img.png"))
}

func TestLocalStorage_Put_RejectsTraversal(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.Put(context.Background(), "../escape", strings.NewReader("x"), "")
	require.Error(t, err)

	_, err = s.Put(context.Background(), "", strings.NewReader("x"), "")
	require.Error(t, err)
}
