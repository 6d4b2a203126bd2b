package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"docrag/internal/util"
)

// FileStore keeps raw uploaded documents on disk under root/<collection>/.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(collectionID, filename string) string {
	return util.SafeJoin(filepath.Join(s.root, collectionID), filename)
}

func (s *FileStore) Write(collectionID, filename string, data []byte) error {
	if err := util.EnsureDir(filepath.Join(s.root, collectionID)); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(collectionID, filename), data, 0o644); err != nil {
		return fmt.Errorf("write raw document: %w", err)
	}
	return nil
}

func (s *FileStore) Read(ctx context.Context, collectionID, filename string) ([]byte, error) {
	_ = ctx
	b, err := os.ReadFile(s.path(collectionID, filename))
	if err != nil {
		return nil, fmt.Errorf("read raw document: %w", err)
	}
	return b, nil
}

func (s *FileStore) Delete(collectionID, filename string) error {
	err := os.Remove(s.path(collectionID, filename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete raw document: %w", err)
	}
	return nil
}
