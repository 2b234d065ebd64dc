package core

import (
	"context"
	"io"
)

// MediaStorage stores uploaded files (videos, SCORM packages, ...).
// Names are slash separated and relative to the storage root.
type MediaStorage interface {
	// Save stores the content of r under name, replacing any existing file, and returns the stored name.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	// Path returns the local filesystem path of name.
	Path(name string) string
	// URL returns the public URL of name.
	URL(name string) string
}
