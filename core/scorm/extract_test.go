package scorm

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mediasvc "github.com/acadamier/backend/services/media"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "package.zip")
	f, err := os.Create(fp)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return fp
}

func TestExtractPackage(t *testing.T) {
	root := t.TempDir()
	media := mediasvc.NewLocalStorageAt(root, "/media/")
	zipPath := writeZip(t, map[string]string{
		"imsmanifest.xml":   manifest12,
		"index.html":        "<html>intro</html>",
		"content/quiz.html": "<html>quiz</html>",
	})

	scos, err := extractPackage(context.Background(), media, zipPath, "pkg-1")
	require.NoError(t, err)
	assert.Len(t, scos, 3)

	content, err := os.ReadFile(filepath.Join(root, "scorm", "pkg-1", "content", "quiz.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html>quiz</html>", string(content))
}

func TestExtractPackageErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "zip slip",
			files:   map[string]string{"imsmanifest.xml": manifest12, "../../evil.sh": "rm -rf /"},
			wantErr: "unsafe path in zip: ../../evil.sh",
		},
		{
			name:    "absolute path",
			files:   map[string]string{"imsmanifest.xml": manifest12, "/etc/passwd": "root"},
			wantErr: "unsafe path in zip: /etc/passwd",
		},
		{
			name:    "manifest missing",
			files:   map[string]string{"index.html": "<html></html>"},
			wantErr: errManifestMissing.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			media := mediasvc.NewLocalStorageAt(root, "/media/")

			_, err := extractPackage(context.Background(), media, writeZip(t, tc.files), "pkg")
			require.Error(t, err)
			assert.Equal(t, tc.wantErr, err.Error())

			_, statErr := os.Stat(filepath.Join(root, "scorm", "pkg"))
			assert.True(t, os.IsNotExist(statErr), "nothing is extracted")
		})
	}
}

func TestIsUnsafePath(t *testing.T) {
	assert.False(t, isUnsafePath("index.html"))
	assert.False(t, isUnsafePath("a/../b.html"))
	assert.False(t, isUnsafePath("..foo/b.html"))
	assert.True(t, isUnsafePath("../b.html"))
	assert.True(t, isUnsafePath("a/../../b.html"))
	assert.True(t, isUnsafePath(`..\b.html`))
	assert.True(t, isUnsafePath("/b.html"))
}
