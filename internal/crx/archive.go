package crx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const (
	// dirMode is applied to directories created during extraction.
	dirMode os.FileMode = 0o755
	// fileMode is applied to extracted files.
	fileMode os.FileMode = 0o644
)

var errUnsupportedEntry = errors.New("unsupported archive entry type")

// Archive is an opened package ready for extraction.
type Archive struct {
	// Header is the parsed signing header.
	Header *Header

	file   *os.File
	reader *zip.Reader
}

// Open opens the package at path, skipping an optional signing header.
func Open(path string) (*Archive, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	archive, err := newArchive(file)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	return archive, nil
}

// newArchive parses the header of file and opens its zip payload.
func newArchive(file *os.File) (*Archive, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	header, err := readHeader(file, info.Size())
	if err != nil {
		return nil, err
	}

	payloadSize := info.Size() - header.PayloadOffset
	payload := io.NewSectionReader(file, header.PayloadOffset, payloadSize)

	// Non-local names are still usable: Extract resolves them inside the destination.
	reader, err := zip.NewReader(payload, payloadSize)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open zip payload: %w", err)
	}

	return &Archive{
		Header: header,
		file:   file,
		reader: reader,
	}, nil
}

// Inspect returns the signing header of the package at path.
func Inspect(path string) (*Header, error) {
	archive, err := Open(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = archive.Close()
	}()

	return archive.Header, nil
}

// Extract writes every entry under destDir, creating it if needed.
// Entry names are resolved inside destDir, so "../" cannot escape it.
func (a *Archive) Extract(destDir string) error {
	if err := os.MkdirAll(destDir, dirMode); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	for _, entry := range a.reader.File {
		// CRX packers on Windows may emit backslash separators.
		name := strings.ReplaceAll(entry.Name, `\`, "/")

		target, err := securejoin.SecureJoin(destDir, name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", entry.Name, err)
		}

		mode := entry.Mode()

		switch {
		case mode.IsDir():
			if err = os.MkdirAll(target, dirMode); err != nil {
				return fmt.Errorf("create %s: %w", entry.Name, err)
			}
		case mode.IsRegular():
			if err = extractFile(entry, target); err != nil {
				return fmt.Errorf("extract %s: %w", entry.Name, err)
			}
		default:
			return fmt.Errorf("%s (%s): %w", entry.Name, mode.Type(), errUnsupportedEntry)
		}
	}

	return nil
}

// Close releases the underlying file.
func (a *Archive) Close() error {
	return a.file.Close()
}

// extractFile copies a single zip entry to target.
func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	output, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}

	//nolint:gosec // Package size is bounded by the downloaded file.
	if _, err = io.Copy(output, source); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}
