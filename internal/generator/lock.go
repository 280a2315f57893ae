package generator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rentcat/internal/fs"
)

// errLocked means another process holds the regeneration lock.
var errLocked = errors.New("regeneration lock held")

// fileLock is an exclusive advisory lock on a file. The lock belongs to the
// open file, so closing it (or the process dying) releases it.
type fileLock struct {
	f *os.File
}

// tryLock takes the lock without waiting. A busy lock returns errLocked.
func tryLock(path string) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	unlockErr := unlockFile(l.f)
	closeErr := l.f.Close()
	return errors.Join(unlockErr, closeErr)
}

// holder names the process running a regeneration. It lives next to the
// lock file so Status can read it without touching the lock.
type holder struct {
	PID   int
	RunID string
}

func holderPath(lockPath string) string { return lockPath + ".holder" }

func writeHolder(path string, h holder) error {
	_, err := fs.WriteFile(path, strings.NewReader(fmt.Sprintf("%d %s\n", h.PID, h.RunID)), fs.Options{})
	return err
}

// readHolder returns false when no holder file exists.
func readHolder(path string) (holder, bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return holder{}, false, nil
	}
	if err != nil {
		return holder{}, false, fmt.Errorf("reading lock holder: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) != 2 {
		return holder{}, false, fmt.Errorf("malformed lock holder %q", strings.TrimSpace(string(raw)))
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return holder{}, false, fmt.Errorf("malformed lock holder pid %q", fields[0])
	}
	return holder{PID: pid, RunID: fields[1]}, true, nil
}
