package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rentcat/internal/fs"
	"rentcat/internal/rentcat"
)

// FileSystemMirror stores objects as flat files under root, typically a
// mounted network share or a second disk.
type FileSystemMirror struct {
	name string
	root string
}

// NewFileSystemMirror creates root if needed.
func NewFileSystemMirror(name, root string) (*FileSystemMirror, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}
	return &FileSystemMirror{name: name, root: root}, nil
}

// Put writes the object atomically and checks that size bytes arrived.
func (v *FileSystemMirror) Put(name string, r io.Reader, size int64) error {
	dest, err := v.objectPath(name)
	if err != nil {
		return err
	}
	if _, err := fs.WriteFile(dest, &sizedReader{r: r, want: size}, fs.Options{Perm: 0o644}); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// sizedReader fails the copy at EOF unless exactly want bytes were read,
// so a mismatched object never replaces the previous one.
type sizedReader struct {
	r    io.Reader
	want int64
	n    int64
}

func (s *sizedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.n += int64(n)
	if s.n > s.want {
		return n, fmt.Errorf("size mismatch: expected %d bytes, got more", s.want)
	}
	if err == io.EOF && s.n != s.want {
		return n, fmt.Errorf("size mismatch: expected %d bytes, got %d", s.want, s.n)
	}
	return n, err
}

func (v *FileSystemMirror) Get(name string, w io.Writer) error {
	src, err := v.objectPath(name)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("object not found: %s", name)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// List returns regular, non-hidden files under root in lexical order.
func (v *FileSystemMirror) List() ([]string, error) {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list mirror: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ValidateSetup checks that root is a writable directory.
func (v *FileSystemMirror) ValidateSetup() error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mirror root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("mirror root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

func (v *FileSystemMirror) objectPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(v.root, name), nil
}

var _ rentcat.Mirror = (*FileSystemMirror)(nil)
