package mediasvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalStorageAt(root, "/media")
	ctx := context.Background()

	name, err := storage.Save(ctx, "videos/42/intro.mp4", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "videos/42/intro.mp4", name)
	assert.Equal(t, "/media/videos/42/intro.mp4", storage.URL(name))

	content, err := os.ReadFile(filepath.Join(root, "videos", "42", "intro.mp4"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))

	require.NoError(t, storage.Delete(ctx, name))
	_, err = os.Stat(storage.Path(name))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, storage.Delete(ctx, name), "deleting a missing file is a no-op")
}

func TestLocalStorageStaysInRoot(t *testing.T) {
	root := t.TempDir()
	storage := NewLocalStorageAt(root, "/media/")

	name, err := storage.Save(context.Background(), "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.txt", name)
	assert.Equal(t, filepath.Join(root, "escape.txt"), storage.Path(name))
}
