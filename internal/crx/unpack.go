package crx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/inox-unpack/internal/logger"
	"github.com/oshokin/inox-unpack/internal/manifest"
)

// MetadataDir holds store signing data that unpacked extensions do not need.
const MetadataDir = "_metadata"

// UnpackError reports a failure to turn a package into an unpacked extension.
type UnpackError struct {
	// Path is the package being unpacked.
	Path string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *UnpackError) Error() string {
	return fmt.Sprintf("unpack %s: %v", filepath.Base(e.Path), e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnpackError) Unwrap() error {
	return e.Err
}

// Unpack extracts the package at archivePath into destDir, removes the store
// metadata and the manifest's update_url, and returns the extension name.
func Unpack(ctx context.Context, archivePath, destDir string) (string, error) {
	name, err := unpack(ctx, archivePath, destDir)
	if err != nil {
		return "", &UnpackError{Path: archivePath, Err: err}
	}

	return name, nil
}

func unpack(ctx context.Context, archivePath, destDir string) (string, error) {
	archive, err := Open(archivePath)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = archive.Close()
	}()

	logger.DebugKV(ctx, "Extracting package",
		"format_version", archive.Header.Version,
		"entries", len(archive.reader.File),
		"destination", destDir)

	if err = archive.Extract(destDir); err != nil {
		return "", err
	}

	if err = os.RemoveAll(filepath.Join(destDir, MetadataDir)); err != nil {
		return "", fmt.Errorf("remove %s: %w", MetadataDir, err)
	}

	m, err := manifest.Load(filepath.Join(destDir, manifest.Filename))
	if err != nil {
		return "", err
	}

	if updateURL, ok := m.UpdateURL(); ok {
		m.RemoveUpdateURL()
		logger.DebugKV(ctx, "Removed update_url from manifest", "update_url", updateURL)
	}

	if err = m.Save(); err != nil {
		return "", err
	}

	return m.Name(), nil
}
