package mediasvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/acadamier/backend/core"
)

// LocalStorage stores media files on the local filesystem, under conf.Media.Root.
type LocalStorage struct {
	root    string
	baseURL string
}

var _ core.MediaStorage = (*LocalStorage)(nil)

func NewLocalStorage(conf *core.Config) *LocalStorage {
	return NewLocalStorageAt(conf.Media.Root, conf.Media.URL)
}

func NewLocalStorageAt(root, baseURL string) *LocalStorage {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LocalStorage{root: root, baseURL: baseURL}
}

// clean turns name into a slash separated path, relative to the storage root, that cannot escape it.
func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}

func (s *LocalStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	name = clean(name)
	fp := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}

	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", errors.Wrap(err, "writing media file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing media file")
	}
	return name, nil
}

func (s *LocalStorage) Delete(_ context.Context, name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting media file")
	}
	return nil
}

func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean(name)))
}

func (s *LocalStorage) URL(name string) string {
	return s.baseURL + clean(name)
}
