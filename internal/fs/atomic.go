// Package fs replaces files atomically: data goes to a temp file in the
// target directory which is then renamed over the target. Readers see the
// old file or the new one, never a partial write.
package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Options tunes WriteFile. The zero value writes 0644 files, fsyncs and
// renames with os.Rename.
type Options struct {
	Perm   os.FileMode
	NoSync bool
	// Rename replaces os.Rename; tests use it to simulate a failing rename.
	Rename func(oldpath, newpath string) error
}

// WriteFile copies r into a temp file next to dest and renames it over
// dest. On any failure the temp file is removed and dest is untouched.
// It returns the number of bytes written.
func WriteFile(dest string, r io.Reader, opts Options) (int64, error) {
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	rename := opts.Rename
	if rename == nil {
		rename = os.Rename
	}

	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return written, fmt.Errorf("writing temp file: %w", err)
	}
	if !opts.NoSync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return written, fmt.Errorf("syncing temp file: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return written, fmt.Errorf("setting permissions: %w", err)
	}

	if err := rename(tmpPath, dest); err != nil {
		return written, fmt.Errorf("renaming temp file: %w", err)
	}

	success = true
	return written, nil
}

// CopyFile atomically copies src to dest.
func CopyFile(src, dest string, opts Options) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	return WriteFile(dest, f, opts)
}

// Exists reports whether path exists. Errors other than "not exist" are
// returned as is.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
