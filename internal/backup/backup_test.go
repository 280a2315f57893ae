package backup_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcat/internal/backup"
	"rentcat/internal/catalog"
	"rentcat/internal/rentcat"
	"rentcat/internal/store"
	"rentcat/internal/testutil"
)

type fixture struct {
	dir     string
	source  string
	clock   *testutil.StubClock
	manager *backup.Manager
}

func newFixture(t *testing.T, opts ...backup.Option) *fixture {
	t.Helper()
	root := t.TempDir()
	clock := testutil.FixedClock()
	dir := filepath.Join(root, "backups")
	return &fixture{
		dir:     dir,
		source:  testutil.WriteCatalogFile(t, root, "catalog.json", testutil.SampleCatalog()),
		clock:   clock,
		manager: backup.NewManager(dir, clock, rentcat.NewNopLogger(), opts...),
	}
}

func TestManager_CreateBackup(t *testing.T) {
	f := newFixture(t)

	path, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "catalog-20250314-092653.json"), path)

	want, _ := os.ReadFile(f.source)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestManager_CreateBackup_SameSecond(t *testing.T) {
	f := newFixture(t)

	first, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	again, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	assert.Equal(t, first, again, "identical content reuses the backup")

	require.NoError(t, os.WriteFile(f.source, []byte("[]\n"), 0o644))
	second, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "catalog-20250314-092653-1.json"), second)

	got, _ := os.ReadFile(first)
	assert.NotEqual(t, "[]\n", string(got), "existing backup was overwritten")
	got, _ = os.ReadFile(second)
	assert.Equal(t, "[]\n", string(got))

	require.NoError(t, os.WriteFile(f.source, []byte("[ ]\n"), 0o644))
	third, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "catalog-20250314-092653-2.json"), third)

	infos, err := f.manager.ListBackups()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	mt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, i := range infos {
		require.NoError(t, os.Chtimes(filepath.Join(f.dir, i.Name), mt, mt))
	}
	infos, err = f.manager.ListBackups()
	require.NoError(t, err)
	var names []string
	for _, i := range infos {
		names = append(names, i.Name)
	}
	assert.Equal(t, []string{
		"catalog-20250314-092653-2.json",
		"catalog-20250314-092653-1.json",
		"catalog-20250314-092653.json",
	}, names)

	_, err = f.manager.Load("catalog-20250314-092653-1.json")
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	fourth, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "catalog-20250314-092654.json"), fourth)
}

func TestManager_RestoreInSameSecondKeepsUndo(t *testing.T) {
	root := t.TempDir()
	clock := testutil.FixedClock()
	manager := backup.NewManager(filepath.Join(root, "backups"), clock, rentcat.NewNopLogger())
	st := store.NewJSONStore(filepath.Join(root, "catalog.json"), manager, rentcat.NewNopLogger())

	original := testutil.SampleCatalog()
	require.NoError(t, st.Write(original, false))
	snapshot, err := manager.CreateBackup(st.Path())
	require.NoError(t, err)

	edited := catalog.Catalog{}
	require.NoError(t, st.Write(edited, true))

	_, err = manager.Restore(filepath.Base(snapshot), st)
	require.NoError(t, err)

	infos, err := manager.ListBackups()
	require.NoError(t, err)
	var undo []string
	for _, i := range infos {
		c, err := manager.Load(i.Name)
		require.NoError(t, err)
		if len(c) == 0 {
			undo = append(undo, i.Name)
		}
	}
	assert.Len(t, undo, 1, "the edited document must be kept by the restore")
}

func TestManager_CreateBackup_MissingSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateBackup(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestManager_ListBackups(t *testing.T) {
	f := newFixture(t)

	infos, err := f.manager.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, infos, "missing directory lists empty")

	var paths []string
	for i := 0; i < 3; i++ {
		p, err := f.manager.CreateBackup(f.source)
		require.NoError(t, err)
		paths = append(paths, p)
		f.clock.Advance(time.Hour)
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range paths {
		mt := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "old-20240101-000000.json"), 0o755))

	infos, err = f.manager.ListBackups()
	require.NoError(t, err)
	var names []string
	for _, i := range infos {
		names = append(names, i.Name)
		assert.Positive(t, i.Size)
	}
	assert.Equal(t, []string{
		"catalog-20250314-112653.json",
		"catalog-20250314-102653.json",
		"catalog-20250314-092653.json",
	}, names)
}

func TestManager_Load(t *testing.T) {
	f := newFixture(t)
	path, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)

	c, err := f.manager.Load(filepath.Base(path))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(testutil.SampleCatalog(), c))
}

func TestManager_Load_RejectsBadNames(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)

	for _, name := range []string{
		"",
		"../catalog.json",
		"sub/catalog-20250314-092653.json",
		`..\catalog-20250314-092653.json`,
		"catalog.json",
		"catalog-20250314-092654.json",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.manager.Load(name)
			assert.ErrorIs(t, err, rentcat.ErrBackupNotFound)
			assert.ErrorIs(t, err, catalog.ErrNotFound)
		})
	}
}

func TestManager_Load_InvalidContent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	name := "catalog-20250101-000000.json"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(`[{"name":"Ogród"}]`), 0o644))

	_, err := f.manager.Load(name)
	var verr *catalog.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors.Paths(), "categories[0].image")
}

func TestManager_Restore(t *testing.T) {
	f := newFixture(t)
	path, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)

	store := testutil.NewMemoryStore(catalog.Catalog{})
	c, err := f.manager.Restore(filepath.Base(path), store)
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(testutil.SampleCatalog(), c))
	assert.Empty(t, cmp.Diff(testutil.SampleCatalog(), store.Current()))
	assert.Equal(t, 1, store.Backups(), "restore must back up the current document")
}

func TestManager_Restore_InvalidLeavesStoreAlone(t *testing.T) {
	f := newFixture(t)
	store := testutil.NewMemoryStore(testutil.SampleCatalog())

	_, err := f.manager.Restore("catalog-20990101-000000.json", store)
	assert.ErrorIs(t, err, rentcat.ErrBackupNotFound)
	assert.Zero(t, store.Writes())
}

func TestManager_Restore_WriteFailure(t *testing.T) {
	f := newFixture(t)
	path, _ := f.manager.CreateBackup(f.source)
	store := testutil.NewMemoryStore(catalog.Catalog{})
	store.WriteErr = rentcat.ErrStorageWriteFailed

	_, err := f.manager.Restore(filepath.Base(path), store)
	assert.ErrorIs(t, err, rentcat.ErrStorageWriteFailed)
}

func TestManager_Mirror(t *testing.T) {
	mirror := testutil.NewTestMirror()
	f := newFixture(t, backup.WithMirror(mirror, nil))

	_, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)

	names, err := f.manager.ListMirrored()
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog-20250314-092653.json"}, names)

	var buf bytes.Buffer
	require.NoError(t, mirror.Get(names[0], &buf))
	want, _ := os.ReadFile(f.source)
	assert.Equal(t, string(want), buf.String())
}

func TestManager_EncryptedMirrorAndFetch(t *testing.T) {
	mirror := testutil.NewTestMirror()
	enc := testutil.NewTestEncryptor("secret")
	f := newFixture(t, backup.WithMirror(mirror, enc))

	path, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)

	names, err := f.manager.ListMirrored()
	require.NoError(t, err)
	require.Equal(t, []string{"catalog-20250314-092653.json.age"}, names)

	var raw bytes.Buffer
	require.NoError(t, mirror.Get(names[0], &raw))
	assert.False(t, strings.HasPrefix(raw.String(), "["), "mirrored object is not encrypted")

	require.NoError(t, os.Remove(path))

	_, err = f.manager.FetchFromMirror(names[0], nil)
	assert.ErrorContains(t, err, "encrypted")

	dc, err := enc.Unlock("secret")
	require.NoError(t, err)
	local, err := f.manager.FetchFromMirror(names[0], dc)
	require.NoError(t, err)
	assert.Equal(t, "catalog-20250314-092653.json", local)

	c, err := f.manager.Load(local)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(testutil.SampleCatalog(), c))
}

func TestManager_FetchFromMirror_RejectsInvalid(t *testing.T) {
	mirror := testutil.NewTestMirror()
	f := newFixture(t, backup.WithMirror(mirror, nil))
	name := "catalog-20250101-000000.json"
	require.NoError(t, mirror.Put(name, strings.NewReader(`{"not":"a catalog"}`), 19))

	_, err := f.manager.FetchFromMirror(name, nil)
	assert.ErrorIs(t, err, catalog.ErrValidationFailed)

	_, err = os.Stat(filepath.Join(f.dir, name))
	assert.True(t, errors.Is(err, os.ErrNotExist), "invalid backup stored locally")
}

func TestManager_MirrorFailureDoesNotFailBackup(t *testing.T) {
	f := newFixture(t, backup.WithMirror(failingMirror{}, nil))

	path, err := f.manager.CreateBackup(f.source)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestManager_NoMirror(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ListMirrored()
	assert.ErrorIs(t, err, backup.ErrNoMirror)
	_, err = f.manager.FetchFromMirror("catalog-20250101-000000.json", nil)
	assert.ErrorIs(t, err, backup.ErrNoMirror)
}

type failingMirror struct{ rentcat.Mirror }

func (failingMirror) Put(string, io.Reader, int64) error {
	return errors.New("offline")
}
