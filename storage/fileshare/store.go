package fileshare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docqa/storage"
)

// Store implements storage.BlobStore on a local file share.
// Files are stored under a configured root directory, keyed by their
// original name. Writing the same name again overwrites the previous
// content (last write wins).
type Store struct {
	root   string
	logger *slog.Logger
}

var _ storage.BlobStore = (*Store)(nil)

// NewStore creates a file share store rooted at the given directory.
// The directory is created if it doesn't exist.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("file share root is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Store{
		root:   root,
		logger: slog.Default().With("component", "fileshare"),
	}, nil
}

// Write stores the bytes read from r under the given file name.
// The content is written to a temporary file and renamed into place, so a
// concurrent Read never observes a partially written blob.
func (s *Store) Write(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	// Strip any directory components from client-supplied names
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", 0, fmt.Errorf("invalid file name %q", name)
	}

	path := filepath.Join(s.root, name)

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, err
	}

	s.logger.Debug("stored blob", "path", path, "bytes", n)
	return path, n, nil
}

// Read returns the full content stored at path.
func (s *Store) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether content is stored at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Root returns the configured root directory.
func (s *Store) Root() string {
	return s.root
}
