package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"rentcat/internal/rentcat"
)

// MemoryMirror keeps objects in memory. It is safe for concurrent use.
type MemoryMirror struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

func NewMemoryMirror(name string) *MemoryMirror {
	return &MemoryMirror{
		name:    name,
		objects: make(map[string][]byte),
	}
}

// Put stores the object, replacing any previous one with the same name.
func (m *MemoryMirror) Put(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return nil
}

func (m *MemoryMirror) Get(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return fmt.Errorf("object not found: %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// List returns object names in lexical order.
func (m *MemoryMirror) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup always succeeds.
func (m *MemoryMirror) ValidateSetup() error {
	return nil
}

var _ rentcat.Mirror = (*MemoryMirror)(nil)
