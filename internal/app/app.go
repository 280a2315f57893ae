package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"rentcat/internal/backup"
	"rentcat/internal/catalog"
	"rentcat/internal/config"
	"rentcat/internal/database"
	"rentcat/internal/encryption"
	"rentcat/internal/generator"
	"rentcat/internal/rentcat"
	"rentcat/internal/store"
	"rentcat/internal/vault"
)

// RentcatApp is the application layer between the CLI and rentcat.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the DB lifecycle on Close.
type RentcatApp struct {
	cfg       *config.Config
	db        database.Database
	store     *store.JSONStore
	backups   *backup.Manager
	encryptor rentcat.Encryptor
	generator *generator.Orchestrator
	service   *rentcat.Service
	clock     rentcat.Clock
	logger    rentcat.Logger
	op        *Operation
	logFile   *os.File
}

// Option customizes NewRentcatApp.
type Option func(*options)

type options struct {
	stderr io.Writer
	clock  rentcat.Clock
	runner generator.Runner
}

// WithStderr sets where log lines are echoed; nil keeps them in the log file only.
func WithStderr(w io.Writer) Option { return func(o *options) { o.stderr = w } }

// WithClock replaces the wall clock.
func WithClock(c rentcat.Clock) Option { return func(o *options) { o.clock = c } }

// WithRunner replaces the process runner of the generator.
func WithRunner(r generator.Runner) Option { return func(o *options) { o.runner = r } }

// NewRentcatApp creates a fully wired RentcatApp from the given config.
// operation identifies the CLI command being run (e.g. "UpsertTool", "Regenerate").
// The caller must call Close when done.
func NewRentcatApp(ctx context.Context, cfg *config.Config, operation string, opts ...Option) (*RentcatApp, error) {
	o := options{stderr: os.Stderr, clock: rentcat.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runner == nil {
		o.runner = &generator.ExecRunner{CatalogPath: cfg.CatalogPath}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cooldown, err := cfg.CooldownDuration()
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, o.clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, cfg.LogLevel, o.stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var backupOpts []backup.Option
	mc, err := cfg.BackupMirror()
	if err != nil {
		logFile.Close()
		return nil, err
	}
	if mc != nil {
		m, err := vault.NewMirrorFromConfig(ctx, *mc)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("creating mirror %s: %w", mc.Name, err)
		}
		var mirrorEnc rentcat.Encryptor
		if cfg.Backup.Encrypt {
			mirrorEnc = enc
		}
		backupOpts = append(backupOpts, backup.WithMirror(m, mirrorEnc))
	}
	backups := backup.NewManager(cfg.Backup.Dir, o.clock, logger, backupOpts...)

	db, err := database.NewDatabaseFromConfig(cfg.Database, o.clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	st := store.NewJSONStore(cfg.CatalogPath, backups, logger)
	gen := generator.New(generator.Options{
		LockPath:  cfg.Generator.LockPath,
		StampPath: cfg.Generator.StampPath,
		Cooldown:  cooldown,
		Stages:    stagesFromConfig(cfg.Generator.Stages),
	}, o.runner, o.clock, rentcat.UUIDGenerator{}, logger, db)

	svc := rentcat.NewService(st, backups, gen, db, logger, o.clock)
	logger.Debug("operation started", "operation", operation)

	return &RentcatApp{
		cfg:       cfg,
		db:        db,
		store:     st,
		backups:   backups,
		encryptor: enc,
		generator: gen,
		service:   svc,
		clock:     o.clock,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

func stagesFromConfig(cfgs []config.StageConfig) []generator.Stage {
	stages := make([]generator.Stage, 0, len(cfgs))
	for _, s := range cfgs {
		stages = append(stages, generator.Stage{
			Name:    s.Name,
			Command: s.Command,
			Args:    s.Args,
			Dir:     s.Dir,
			Env:     s.Env,
		})
	}
	return stages
}

// Service exposes the editing operations.
func (a *RentcatApp) Service() *rentcat.Service { return a.service }

// Fail marks the running operation as failed; Close logs the status.
func (a *RentcatApp) Fail(err error) {
	a.op.Fail()
	a.logger.Error("operation failed", "operation", a.op.Name, "error", err)
}

// Stats summarizes the stored catalog.
func (a *RentcatApp) Stats() (catalog.Stats, error) {
	c, err := a.service.Catalog()
	if err != nil {
		return catalog.Stats{}, err
	}
	return c.Stats(), nil
}

// Validate checks a catalog document without saving it. An empty path
// checks the stored catalog.
func (a *RentcatApp) Validate(path string) (catalog.FieldErrors, error) {
	if path == "" {
		path = a.store.Path()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return catalog.ValidateDocument(raw), nil
}

// ImportFile replaces the catalog with the document at path.
func (a *RentcatApp) ImportFile(ctx context.Context, path, format string) (*rentcat.MutationResult, error) {
	f, err := catalog.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.service.Import(ctx, raw, f)
}

// Export writes the stored catalog to w.
func (a *RentcatApp) Export(w io.Writer, format string) error {
	f, err := catalog.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := a.service.Export(f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// AdjustPrice parses delta as a decimal and adds it to the rates of the selected tools.
func (a *RentcatApp) AdjustPrice(ctx context.Context, keys []string, delta string) (*rentcat.MutationResult, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(delta))
	if err != nil {
		return nil, fmt.Errorf("invalid price delta %q: %w", delta, err)
	}
	return a.service.BulkAdjustPrice(ctx, keys, d)
}

// ListBackups returns the local snapshots, newest first.
func (a *RentcatApp) ListBackups() ([]backup.Info, error) {
	return a.backups.ListBackups()
}

// ListMirrored returns the snapshot names held by the configured mirror.
func (a *RentcatApp) ListMirrored() ([]string, error) {
	return a.backups.ListMirrored()
}

// IsEncrypted reports whether a mirrored object needs a passphrase to fetch.
func IsEncrypted(name string) bool {
	return strings.HasSuffix(name, ".age")
}

// FetchFromMirror copies a mirrored snapshot into the local backup
// directory. passphrase is only used for encrypted objects.
func (a *RentcatApp) FetchFromMirror(name, passphrase string) (string, error) {
	var dc rentcat.DecryptionContext
	if IsEncrypted(name) {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return "", err
		}
	}
	return a.backups.FetchFromMirror(name, dc)
}

// Regenerate runs the generator pipeline.
func (a *RentcatApp) Regenerate(ctx context.Context, force bool) (rentcat.RegenerationResult, error) {
	return a.service.Regenerate(ctx, force)
}

// RegenerationStatus reports the lock and cooldown state of the generator.
func (a *RentcatApp) RegenerationStatus() (generator.Status, error) {
	return a.generator.Status()
}

// ActivityHistory returns the most recent activity events.
func (a *RentcatApp) ActivityHistory(limit int) ([]rentcat.ActivityEvent, error) {
	return a.db.ListActivity(limit)
}

// RunHistory returns the most recent regeneration runs.
func (a *RentcatApp) RunHistory(limit int) ([]rentcat.RegenerationResult, error) {
	return a.db.ListRuns(limit)
}

// SetupKeys generates the encryption key pair for mirrored backups.
func (a *RentcatApp) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return err
	}
	a.logger.Info("encryption keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// Close logs the operation outcome and closes all resources.
func (a *RentcatApp) Close() error {
	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", a.op.Duration(a.clock.Now()))

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
