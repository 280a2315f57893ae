// Package backup keeps timestamped snapshots of the catalog document and
// restores them. Snapshots can also be pushed to an offsite mirror,
// optionally encrypted.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"rentcat/internal/catalog"
	"rentcat/internal/fs"
	"rentcat/internal/rentcat"
)

// timestampLayout is the suffix format: YYYYMMDD-HHMMSS.
const timestampLayout = "20060102-150405"

// encryptedSuffix marks mirrored objects that went through the encryptor.
const encryptedSuffix = ".age"

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+-(\d{8}-\d{6})(?:-(\d+))?\.json$`)

// Info describes one local backup file.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Manager creates, lists and restores backups in a single directory.
type Manager struct {
	dir       string
	clock     rentcat.Clock
	logger    rentcat.Logger
	mirror    rentcat.Mirror
	encryptor rentcat.Encryptor
}

// Option configures a Manager.
type Option func(*Manager)

// WithMirror pushes every new backup to m. When enc is non-nil and
// configured, the pushed copy is encrypted.
func WithMirror(m rentcat.Mirror, enc rentcat.Encryptor) Option {
	return func(mgr *Manager) {
		mgr.mirror = m
		mgr.encryptor = enc
	}
}

func NewManager(dir string, clock rentcat.Clock, logger rentcat.Logger, opts ...Option) *Manager {
	m := &Manager{dir: dir, clock: clock, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Dir() string { return m.dir }

// CreateBackup copies sourcePath to <dir>/<base>-<YYYYMMDD-HHMMSS>.json.
// When that name is taken in the same second, an identical backup is reused
// and different content gets the next -N suffix. Mirror failures are logged
// and do not fail the backup.
func (m *Manager) CreateBackup(sourcePath string) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", sourcePath, err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	stamp := m.clock.Now().Format(timestampLayout)
	var name, dest string
	for seq := 0; ; seq++ {
		name = backupName(base, stamp, seq)
		dest = filepath.Join(m.dir, name)
		existing, err := os.ReadFile(dest)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", dest, err)
		}
		if bytes.Equal(existing, src) {
			m.logger.Debug("backup already exists", "name", name)
			return dest, nil
		}
	}

	size, err := fs.CopyFile(sourcePath, dest, fs.Options{Perm: 0o644})
	if err != nil {
		return "", fmt.Errorf("copying %s to backup: %w", sourcePath, err)
	}
	m.logger.Info("backup created", "name", name, "bytes", size)

	if m.mirror != nil {
		if err := m.push(name, dest); err != nil {
			m.logger.Warn("mirroring backup failed", "name", name, "error", err)
		}
	}
	return dest, nil
}

// ListBackups returns the backups newest first. A missing directory is an
// empty list.
func (m *Manager) ListBackups() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !namePattern.MatchString(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		infos = append(infos, Info{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].ModTime.After(infos[j].ModTime)
		}
		ti, si := nameOrder(infos[i].Name)
		tj, sj := nameOrder(infos[j].Name)
		if ti != tj {
			return ti > tj
		}
		return si > sj
	})
	return infos, nil
}

// Load reads and validates a backup by name.
func (m *Manager) Load(name string) (catalog.Catalog, error) {
	if !validName(name) {
		return nil, &catalog.NotFoundError{Kind: rentcat.ErrBackupNotFound, Key: name}
	}
	raw, err := os.ReadFile(filepath.Join(m.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &catalog.NotFoundError{Kind: rentcat.ErrBackupNotFound, Key: name}
		}
		return nil, fmt.Errorf("reading backup %s: %w", name, err)
	}
	return decodeBackup(raw)
}

// Restore validates the named backup and writes it through dst. dst backs
// up the current document first, so the restore can be undone.
func (m *Manager) Restore(name string, dst rentcat.CatalogWriter) (catalog.Catalog, error) {
	c, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	if err := dst.Write(c, true); err != nil {
		return nil, fmt.Errorf("writing restored catalog: %w", err)
	}
	m.logger.Info("backup restored", "name", name)
	return c, nil
}

func backupName(base, stamp string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s-%s.json", base, stamp)
	}
	return fmt.Sprintf("%s-%s-%d.json", base, stamp, seq)
}

// nameOrder orders backup names by timestamp, then sequence.
func nameOrder(name string) (string, int) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return name, 0
	}
	seq, _ := strconv.Atoi(m[2])
	return m[1], seq
}

func validName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return false
	}
	return namePattern.MatchString(name)
}

func decodeBackup(raw []byte) (catalog.Catalog, error) {
	if errs := catalog.ValidateDocument(raw); len(errs) > 0 {
		return nil, &catalog.ValidationError{Errors: errs}
	}
	c, err := catalog.DecodeJSON(bytes.TrimSpace(raw))
	if err != nil {
		return nil, &catalog.ValidationError{Errors: catalog.FieldErrors{{Message: err.Error()}}}
	}
	return c, nil
}
