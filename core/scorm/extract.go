package scorm

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/acadamier/backend/core"
)

func extractDir(packageID string) string {
	return path.Join("scorm", packageID)
}

// isUnsafePath reports whether a zip entry name would resolve outside the extraction directory.
func isUnsafePath(name string) bool {
	name = strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(name) {
		return true
	}
	cleaned := path.Clean(name)
	return cleaned == ".." || strings.HasPrefix(cleaned, "../")
}

// extractPackage unzips the archive into the media storage under scorm/<packageID>/ and parses its manifest.
// Nothing is written when any entry is unsafe.
func extractPackage(ctx context.Context, media core.MediaStorage, zipPath, packageID string) ([]Sco, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, pkgerrors.Wrap(err, "opening zip")
	}
	defer zr.Close()

	var manifestFile *zip.File
	for _, f := range zr.File {
		if isUnsafePath(f.Name) {
			return nil, fmt.Errorf("unsafe path in zip: %s", f.Name)
		}
		if path.Clean(f.Name) == manifestName {
			manifestFile = f
		}
	}
	if manifestFile == nil {
		return nil, errManifestMissing
	}

	dir := extractDir(packageID)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err = saveEntry(ctx, media, path.Join(dir, path.Clean(f.Name)), f); err != nil {
			return nil, err
		}
	}

	rc, err := manifestFile.Open()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening manifest")
	}
	defer rc.Close()
	return parseManifest(rc)
}

func saveEntry(ctx context.Context, media core.MediaStorage, name string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return pkgerrors.Wrapf(err, "opening %s", f.Name)
	}
	defer rc.Close()
	if _, err = media.Save(ctx, name, rc); err != nil {
		return pkgerrors.Wrapf(err, "extracting %s", f.Name)
	}
	return nil
}
