package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "catalog.json")

	n, err := WriteFile(dest, strings.NewReader("[]\n"), Options{})
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if n != 3 {
		t.Errorf("WriteFile() wrote %d bytes, want 3", n)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "[]\n" {
		t.Errorf("content = %q, want %q", data, "[]\n")
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestWriteFile_RenameFailureLeavesTargetAndNoTemp(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(dest, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	failing := func(string, string) error { return errors.New("simulated rename failure") }
	_, err := WriteFile(dest, strings.NewReader("replacement"), Options{Rename: failing})
	if err == nil {
		t.Fatal("WriteFile() expected error")
	}

	data, _ := os.ReadFile(dest)
	if string(data) != "original" {
		t.Errorf("target changed to %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the target", len(entries))
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	_, err := WriteFile(filepath.Join(t.TempDir(), "missing", "x.json"), strings.NewReader("x"), Options{})
	if err == nil {
		t.Fatal("WriteFile() expected error for missing directory")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.json")
	dst := filepath.Join(dir, "dst.json")
	if err := os.WriteFile(src, []byte(`[{"name":"x"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := CopyFile(src, dst, Options{}); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != `[{"name":"x"}]` {
		t.Errorf("copy = %q", data)
	}

	if _, err := CopyFile(filepath.Join(dir, "nope"), dst, Options{}); err == nil {
		t.Error("CopyFile() expected error for missing source")
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	ok, err := Exists(dir)
	if err != nil || !ok {
		t.Errorf("Exists(dir) = %v, %v", ok, err)
	}
	ok, err = Exists(filepath.Join(dir, "nope"))
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}
