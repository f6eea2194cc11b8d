package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"

	"github.com/oshokin/inox-unpack/internal/logger"
)

const (
	// dirMode is applied to created directories.
	dirMode os.FileMode = 0o755

	// lockRetryDelay is how often a busy lock is retried.
	lockRetryDelay = 100 * time.Millisecond
)

var (
	// ErrInvalidID is returned for IDs that would not name a single subdirectory.
	ErrInvalidID = errors.New("invalid extension ID")
	// ErrLocked is returned when another install holds the lock until ctx ends.
	ErrLocked = errors.New("extension is being installed by another process")
)

// Repository defines persistence operations for unpacked extensions.
type Repository interface {
	Ensure() error
	Replace(ctx context.Context, id, sourceDir string) (string, error)
}

// DirRepository stores unpacked extensions as subdirectories of root.
type DirRepository struct {
	// root is the base directory holding one subdirectory per extension.
	root string
}

// NewDirRepository creates a repository rooted at root.
func NewDirRepository(root string) *DirRepository {
	return &DirRepository{
		root: filepath.Clean(root),
	}
}

// Path returns where the extension with the given ID lives.
func (r *DirRepository) Path(id string) string {
	return filepath.Join(r.root, id)
}

// Ensure creates the base directory if it does not exist.
func (r *DirRepository) Ensure() error {
	if err := os.MkdirAll(r.root, dirMode); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	return nil
}

// Replace deletes any previous copy of the extension and copies sourceDir in its place.
func (r *DirRepository) Replace(ctx context.Context, id, sourceDir string) (path string, err error) {
	if err = ValidateID(id); err != nil {
		return "", err
	}

	if err = r.Ensure(); err != nil {
		return "", err
	}

	// The lock file stays behind: removing it would let a waiter lock a stale inode.
	lock := flock.New(r.lockPath(id))

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLocked, err)
	}

	if !locked {
		return "", ErrLocked
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			err = multierror.Append(err, fmt.Errorf("release lock: %w", unlockErr)).ErrorOrNil()
		}
	}()

	path = r.Path(id)

	if err = os.RemoveAll(path); err != nil {
		return "", fmt.Errorf("remove previous copy: %w", err)
	}

	logger.DebugKV(ctx, "Copying unpacked extension", "from", sourceDir, "to", path)

	if err = copyDir(sourceDir, path); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", sourceDir, path, err)
	}

	return path, nil
}

// lockPath returns the lock file guarding the extension with the given ID.
func (r *DirRepository) lockPath(id string) string {
	return filepath.Join(r.root, "."+id+".lock")
}

// ValidateID rejects IDs that would escape or collapse the root directory.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}

// copyDir recursively copies src to dst.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			err = copyDir(srcPath, dstPath)
		case entry.Type().IsRegular():
			err = copyFile(srcPath, dstPath)
		default:
			// Extraction only produces directories and regular files.
			continue
		}

		if err != nil {
			return err
		}
	}

	return nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	info, err := source.Stat()
	if err != nil {
		return err
	}

	output, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(output, source); err != nil {
		_ = output.Close()

		return err
	}

	return output.Close()
}
