// Package store persists the catalog as a single pretty-printed JSON
// document. Writes are atomic and can snapshot the previous document first.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"rentcat/internal/catalog"
	"rentcat/internal/fs"
	"rentcat/internal/rentcat"
)

// JSONStore is the file-backed rentcat.CatalogStore.
type JSONStore struct {
	path    string
	backups rentcat.BackupCreator
	logger  rentcat.Logger

	// renameFunc replaces os.Rename in tests.
	renameFunc func(oldpath, newpath string) error
}

// NewJSONStore returns a store for the document at path. backups may be nil,
// in which case writes never snapshot.
func NewJSONStore(path string, backups rentcat.BackupCreator, logger rentcat.Logger) *JSONStore {
	return &JSONStore{
		path:    path,
		backups: backups,
		logger:  logger,
	}
}

func (s *JSONStore) Path() string { return s.path }

// Read loads the document. A missing or blank file is an empty catalog;
// anything that does not decode is ErrStorageCorrupt.
func (s *JSONStore) Read() (catalog.Catalog, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("catalog file missing, starting empty", "path", s.path)
			return catalog.Catalog{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return catalog.Catalog{}, nil
	}

	c, err := catalog.DecodeJSON(raw)
	if err != nil {
		s.logger.Error("catalog file corrupt", "path", s.path, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", rentcat.ErrStorageCorrupt, s.path, err)
	}
	return c, nil
}

// Write replaces the document with c. With withBackup set and an existing
// document, a snapshot is taken first and a failed snapshot aborts the
// write. On any failure the previous document is left as it was.
func (s *JSONStore) Write(c catalog.Catalog, withBackup bool) error {
	if withBackup && s.backups != nil {
		exists, err := fs.Exists(s.path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", rentcat.ErrStorageWriteFailed, s.path, err)
		}
		if exists {
			backupPath, err := s.backups.CreateBackup(s.path)
			if err != nil {
				return fmt.Errorf("%w: backup before write: %w", rentcat.ErrStorageWriteFailed, err)
			}
			s.logger.Debug("catalog backed up", "backup", backupPath)
		}
	}

	raw, err := catalog.EncodeJSON(c)
	if err != nil {
		return fmt.Errorf("%w: %v", rentcat.ErrStorageWriteFailed, err)
	}

	if _, err := fs.WriteFile(s.path, bytes.NewReader(raw), fs.Options{Perm: 0o644, Rename: s.renameFunc}); err != nil {
		s.logger.Error("catalog write failed", "path", s.path, "error", err)
		return fmt.Errorf("%w: %s: %w", rentcat.ErrStorageWriteFailed, s.path, err)
	}

	s.logger.Info("catalog written", "path", s.path, "bytes", len(raw))
	return nil
}

var _ rentcat.CatalogStore = (*JSONStore)(nil)
