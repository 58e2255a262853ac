// Package blob persists raw document bodies on the filesystem, one file
// per document under each collection's documents directory.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
)

// Store writes document bodies as <root>/<collectionDir>/<docID>.json.
// Writes are atomic renames, so readers never observe a partial body.
type Store struct {
	root   string
	logger *zap.Logger
}

var _ core.DocumentBlobStore = (*Store)(nil)

// NewStore creates a blob store rooted at the given directory, creating it
// if needed.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) path(collectionDir, docID string) string {
	return filepath.Join(s.root, filepath.Base(collectionDir), docID+".json")
}

// Put stores one document body.
func (s *Store) Put(ctx context.Context, collectionDir, docID string, data []byte) error {
	p := s.path(collectionDir, docID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	if err := atomic.WriteFile(p, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write document body: %w", err)
	}
	return nil
}

// Get reads one document body, returning core.ErrNotFound when no body
// exists.
func (s *Store) Get(ctx context.Context, collectionDir, docID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(collectionDir, docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read document body: %w", err)
	}
	return data, nil
}

// Delete removes one document body. A missing body is not an error; the
// delete path calls this best-effort while unwinding failed ingests.
func (s *Store) Delete(ctx context.Context, collectionDir, docID string) error {
	if err := os.Remove(s.path(collectionDir, docID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document body: %w", err)
	}
	return nil
}

// DeleteCollection removes a collection's whole documents directory.
func (s *Store) DeleteCollection(ctx context.Context, collectionDir string) error {
	dir := filepath.Join(s.root, filepath.Base(collectionDir))
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete collection directory: %w", err)
	}
	s.logger.Debug("Deleted collection directory", zap.String("dir", dir))
	return nil
}
