package testutil

import (
	"sync"

	"rentcat/internal/catalog"
)

// MemoryStore is an in-memory rentcat.CatalogStore. Every write is kept so
// tests can check what was persisted and whether a backup was requested.
type MemoryStore struct {
	mu       sync.Mutex
	current  catalog.Catalog
	writes   []catalog.Catalog
	backups  int
	ReadErr  error
	WriteErr error
}

// NewMemoryStore returns a store holding a copy of c.
func NewMemoryStore(c catalog.Catalog) *MemoryStore {
	return &MemoryStore{current: c.Clone()}
}

func (s *MemoryStore) Read() (catalog.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	return s.current.Clone(), nil
}

func (s *MemoryStore) Write(c catalog.Catalog, withBackup bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if withBackup {
		s.backups++
	}
	s.current = c.Clone()
	s.writes = append(s.writes, c.Clone())
	return nil
}

func (s *MemoryStore) Path() string { return "memory://catalog.json" }

// Writes returns the number of successful writes.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// Backups returns how many writes asked for a backup.
func (s *MemoryStore) Backups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backups
}

// Current returns a copy of the stored catalog.
func (s *MemoryStore) Current() catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}
