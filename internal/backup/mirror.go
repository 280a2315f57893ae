package backup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rentcat/internal/catalog"
	"rentcat/internal/fs"
	"rentcat/internal/rentcat"
)

// ErrNoMirror is returned by mirror operations on a Manager built without one.
var ErrNoMirror = errors.New("no backup mirror configured")

func (m *Manager) push(name, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}

	if m.encryptor != nil && m.encryptor.IsConfigured() {
		var buf bytes.Buffer
		if err := m.encryptor.Encrypt(bytes.NewReader(raw), &buf); err != nil {
			return fmt.Errorf("encrypting backup: %w", err)
		}
		raw = buf.Bytes()
		name += encryptedSuffix
	}

	if err := m.mirror.Put(name, bytes.NewReader(raw), int64(len(raw))); err != nil {
		return err
	}
	m.logger.Info("backup mirrored", "name", name, "bytes", len(raw))
	return nil
}

// ListMirrored returns the backup names held by the mirror, newest first.
func (m *Manager) ListMirrored() ([]string, error) {
	if m.mirror == nil {
		return nil, ErrNoMirror
	}
	names, err := m.mirror.List()
	if err != nil {
		return nil, fmt.Errorf("listing mirror: %w", err)
	}

	var out []string
	for _, n := range names {
		if namePattern.MatchString(strings.TrimSuffix(n, encryptedSuffix)) {
			out = append(out, n)
		}
	}
	// The timestamp suffix sorts lexically within one base name.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

// FetchFromMirror downloads a mirrored backup into the local backup
// directory so it can be restored. Encrypted objects need decrypt.
// It returns the local backup name.
func (m *Manager) FetchFromMirror(name string, decrypt rentcat.DecryptionContext) (string, error) {
	if m.mirror == nil {
		return "", ErrNoMirror
	}
	local := strings.TrimSuffix(name, encryptedSuffix)
	if !validName(local) {
		return "", &catalog.NotFoundError{Kind: rentcat.ErrBackupNotFound, Key: name}
	}

	var buf bytes.Buffer
	if err := m.mirror.Get(name, &buf); err != nil {
		return "", fmt.Errorf("fetching %s: %w", name, err)
	}

	raw := buf.Bytes()
	if strings.HasSuffix(name, encryptedSuffix) {
		if decrypt == nil {
			return "", fmt.Errorf("%s is encrypted; unlock the private key first", name)
		}
		var plain bytes.Buffer
		if err := decrypt.Decrypt(bytes.NewReader(raw), &plain); err != nil {
			return "", fmt.Errorf("decrypting %s: %w", name, err)
		}
		raw = plain.Bytes()
	}

	if _, err := decodeBackup(raw); err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if _, err := fs.WriteFile(filepath.Join(m.dir, local), bytes.NewReader(raw), fs.Options{Perm: 0o644}); err != nil {
		return "", fmt.Errorf("saving %s: %w", local, err)
	}
	m.logger.Info("backup fetched from mirror", "name", name, "local", local)
	return local, nil
}
