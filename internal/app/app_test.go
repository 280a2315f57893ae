package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcat/internal/app"
	"rentcat/internal/catalog"
	"rentcat/internal/config"
	"rentcat/internal/rentcat"
	"rentcat/internal/testutil"
)

type fixture struct {
	dir    string
	cfg    *config.Config
	runner *testutil.FakeRunner
	clock  *testutil.StubClock
	app    *app.RentcatApp
}

func testConfig(dir string) *config.Config {
	cfg := config.NewConfig(dir)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Encryption.Type = "test"
	cfg.Mirrors = []config.MirrorConfig{{Type: "memory", Name: "mem"}}
	cfg.Backup.Mirror = "mem"
	cfg.Backup.Encrypt = true
	cfg.Generator.Cooldown = "0s"
	cfg.Generator.Stages = []config.StageConfig{{Name: "render", Command: "render"}}
	return cfg
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	if mutate != nil {
		mutate(cfg)
	}
	f := &fixture{
		dir:    dir,
		cfg:    cfg,
		runner: testutil.NewFakeRunner(),
		clock:  testutil.FixedClock(),
	}
	a, err := app.NewRentcatApp(context.Background(), cfg, "Test",
		app.WithStderr(nil), app.WithClock(f.clock), app.WithRunner(f.runner))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	f.app = a
	return f
}

func (f *fixture) importSample(t *testing.T) {
	t.Helper()
	path := testutil.WriteCatalogFile(t, f.dir, "import.json", testutil.SampleCatalog())
	_, err := f.app.ImportFile(context.Background(), path, "json")
	require.NoError(t, err)
}

func TestRentcatApp_ImportAndEdit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.importSample(t)

	stats, err := f.app.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tools)
	assert.Equal(t, 2, stats.EnabledTools)

	res, err := f.app.Service().BulkToggle(ctx, []string{"elektronarzedzia/wiertarki/wiertarka-2"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, rentcat.OutcomeCompleted, res.Regeneration.Outcome)

	stats, err = f.app.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.EnabledTools)

	assert.Equal(t, []string{"render", "render"}, f.runner.Calls())
}

func TestRentcatApp_BackupsAreMirroredEncrypted(t *testing.T) {
	f := newFixture(t, nil)
	f.importSample(t)

	_, err := f.app.Service().BulkToggle(context.Background(), []string{"ogrod/kosiarki/kosiarka-1"}, false)
	require.NoError(t, err)

	infos, err := f.app.ListBackups()
	require.NoError(t, err)
	require.Len(t, infos, 1, "the import wrote a fresh file, only the toggle backs up")
	assert.Equal(t, "catalog-20250314-092653.json", infos[0].Name)

	mirrored, err := f.app.ListMirrored()
	require.NoError(t, err)
	require.Equal(t, []string{"catalog-20250314-092653.json.age"}, mirrored)
	assert.True(t, app.IsEncrypted(mirrored[0]))

	require.NoError(t, os.Remove(filepath.Join(f.cfg.Backup.Dir, infos[0].Name)))
	local, err := f.app.FetchFromMirror(mirrored[0], "")
	require.NoError(t, err)
	assert.Equal(t, infos[0].Name, local)

	_, err = f.app.FetchFromMirror(mirrored[0], "wrong")
	assert.Error(t, err)
}

func TestRentcatApp_RestoreBackup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.importSample(t)

	_, err := f.app.Service().DeleteCategory(ctx, "ogrod")
	require.NoError(t, err)

	infos, err := f.app.ListBackups()
	require.NoError(t, err)
	require.Len(t, infos, 1)

	_, err = f.app.Service().RestoreBackup(ctx, infos[0].Name)
	require.NoError(t, err)

	stats, err := f.app.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Categories)
}

func TestRentcatApp_History(t *testing.T) {
	f := newFixture(t, nil)
	f.importSample(t)

	_, err := f.app.Service().BulkToggle(context.Background(), []string{"ogrod/kosiarki/kosiarka-1"}, false)
	require.NoError(t, err)

	events, err := f.app.ActivityHistory(0)
	require.NoError(t, err)
	var names []string
	for _, e := range events {
		names = append(names, e.Event)
	}
	assert.Equal(t, []string{
		rentcat.EventRegenerationComplete,
		rentcat.EventToolsToggled,
		rentcat.EventRegenerationComplete,
		rentcat.EventCatalogImported,
	}, names)

	runs, err := f.app.RunHistory(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rentcat.OutcomeCompleted, runs[0].Outcome)
	require.Len(t, runs[0].Stages, 1)
	assert.Equal(t, "render", runs[0].Stages[0].Name)
}

func TestRentcatApp_RegenerationFailureKeepsSave(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.Fail("render", 1, "boom\n")

	path := testutil.WriteCatalogFile(t, f.dir, "import.json", testutil.SampleCatalog())
	res, err := f.app.ImportFile(context.Background(), path, "json")
	require.ErrorIs(t, err, rentcat.ErrGeneratorStageFailed)
	require.NotNil(t, res)
	assert.Equal(t, rentcat.OutcomeFailed, res.Regeneration.Outcome)

	stats, err := f.app.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tools, "catalog saved despite failed regeneration")
}

func TestRentcatApp_RegenerationStatus(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Generator.Cooldown = "1m" })

	res, err := f.app.Regenerate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, rentcat.OutcomeCompleted, res.Outcome)

	st, err := f.app.RegenerationStatus()
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.True(t, st.LastCompleted.Equal(f.clock.Now()))
	assert.Positive(t, st.CooldownLeft)

	res, err = f.app.Regenerate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, rentcat.OutcomeSkippedDebounced, res.Outcome)
}

func TestRentcatApp_Validate(t *testing.T) {
	f := newFixture(t, nil)

	bad := filepath.Join(f.dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"name":"X","subcategories":[]}]`), 0o644))
	errs, err := f.app.Validate(bad)
	require.NoError(t, err)
	assert.Contains(t, errs.Paths(), "categories[0].image")

	good := testutil.WriteCatalogFile(t, f.dir, "good.json", testutil.SampleCatalog())
	errs, err = f.app.Validate(good)
	require.NoError(t, err)
	assert.Empty(t, errs)

	_, err = f.app.Validate("")
	assert.Error(t, err, "no stored catalog yet")
}

func TestRentcatApp_ExportAndAdjustPrice(t *testing.T) {
	f := newFixture(t, nil)
	f.importSample(t)

	res, err := f.app.AdjustPrice(context.Background(), []string{"elektronarzedzia/wiertarki/wiertarka-1"}, "-5.5")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)

	var buf bytes.Buffer
	require.NoError(t, f.app.Export(&buf, "yaml"))
	assert.Contains(t, buf.String(), "34.5")

	_, err = f.app.AdjustPrice(context.Background(), nil, "ten")
	assert.ErrorContains(t, err, "invalid price delta")

	assert.Error(t, f.app.Export(&buf, "xml"))
}

func TestRentcatApp_ImportRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)

	path := filepath.Join(f.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: X\n"), 0o644))
	_, err := f.app.ImportFile(context.Background(), path, "yaml")
	assert.ErrorIs(t, err, catalog.ErrValidationFailed)
	assert.True(t, strings.HasPrefix(rentcat.UserMessage(err), "The catalog was not saved"))

	_, err = os.Stat(f.cfg.CatalogPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRentcatApp_SetupKeys(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.SetupKeys("secret"))

	f.importSample(t)
	_, err := f.app.Service().DeleteCategory(context.Background(), "ogrod")
	require.NoError(t, err)

	mirrored, err := f.app.ListMirrored()
	require.NoError(t, err)
	require.Len(t, mirrored, 1)

	_, err = f.app.FetchFromMirror(mirrored[0], "")
	assert.Error(t, err)
	_, err = f.app.FetchFromMirror(mirrored[0], "secret")
	assert.NoError(t, err)
}

func TestNewRentcatApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Backup.Mirror = "nas"
	_, err := app.NewRentcatApp(context.Background(), cfg, "Test", app.WithStderr(nil))
	assert.ErrorContains(t, err, "invalid config")
}

func TestRentcatApp_LogFile(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.Close())

	data, err := os.ReadFile(filepath.Join(f.cfg.LogDir, "rentcat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "operation finished")
	assert.Contains(t, string(data), "operation=Test")
}
