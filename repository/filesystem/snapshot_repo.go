package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/repository"
)

// SnapshotStore keeps catalog documents under a root directory, mirroring
// the object key layout.
type SnapshotStore struct {
	root string
}

// NewSnapshotStore creates the root directory if needed.
func NewSnapshotStore(root string) (*SnapshotStore, error) {
	if root == "" {
		return nil, errors.New("snapshot root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot root: %w", err)
	}
	return &SnapshotStore{root: root}, nil
}

var _ repository.SnapshotRepository = (*SnapshotStore)(nil)

// Put writes through a temp file and rename so readers never see a partial document.
func (s *SnapshotStore) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrSnapshotNotFound
	}
	return body, err
}

// Ping checks that the root directory still exists.
func (s *SnapshotStore) Ping(context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

func (s *SnapshotStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrCodeInvalid, fmt.Sprintf("snapshot key %q escapes root", key), nil)
	}
	return filepath.Join(s.root, clean), nil
}
