package rentcat

import (
	"context"
	"io"
	"time"

	"rentcat/internal/catalog"
)

// CatalogWriter persists a full catalog. withBackup asks the writer to
// snapshot the current document before replacing it.
type CatalogWriter interface {
	Write(c catalog.Catalog, withBackup bool) error
}

// CatalogStore is the single persisted catalog document.
type CatalogStore interface {
	CatalogWriter
	Read() (catalog.Catalog, error)
	Path() string
}

// BackupCreator snapshots a file and returns the snapshot path.
type BackupCreator interface {
	CreateBackup(sourcePath string) (string, error)
}

// BackupRestorer validates a named backup and writes it through dst.
type BackupRestorer interface {
	Restore(name string, dst CatalogWriter) (catalog.Catalog, error)
}

// Regenerator rebuilds the public site from the stored catalog.
type Regenerator interface {
	Run(ctx context.Context, force bool) (RegenerationResult, error)
}

// Outcome is the terminal state of one regeneration attempt.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkippedLocked    Outcome = "skipped_locked"
	OutcomeSkippedDebounced Outcome = "skipped_debounced"
)

// Ran reports whether any stage was started.
func (o Outcome) Ran() bool {
	return o == OutcomeCompleted || o == OutcomeFailed
}

// StageResult is what one generator stage produced.
type StageResult struct {
	Name     string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// Err is set when the stage could not be started or was cancelled.
	Err error
}

// OK reports whether the stage exited cleanly.
func (r StageResult) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// RegenerationResult describes one call to Regenerator.Run.
type RegenerationResult struct {
	RunID      string
	Outcome    Outcome
	Forced     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Stages     []StageResult
	// Error is the failure message of a failed run, kept for history.
	Error string
}

// RunRecorder keeps the history of regeneration runs.
type RunRecorder interface {
	RecordRun(run RegenerationResult) error
}

// ActivityEvent is one row of the editor activity log.
type ActivityEvent struct {
	ID        int64
	Event     string
	Details   map[string]any
	CreatedAt time.Time
}

// ActivityRecorder receives an event after every successful mutation.
type ActivityRecorder interface {
	Record(event string, details map[string]any) error
}

// History is the read side of the activity log and run history.
type History interface {
	ListActivity(limit int) ([]ActivityEvent, error)
	ListRuns(limit int) ([]RegenerationResult, error)
}

// NopRecorder drops activity and run records and has no history.
type NopRecorder struct{}

func (NopRecorder) Record(string, map[string]any) error        { return nil }
func (NopRecorder) RecordRun(RegenerationResult) error         { return nil }
func (NopRecorder) ListActivity(int) ([]ActivityEvent, error)  { return nil, nil }
func (NopRecorder) ListRuns(int) ([]RegenerationResult, error) { return nil, nil }
func (NopRecorder) Close() error                               { return nil }

// Mirror is an offsite copy of the backup directory. Objects are flat
// names; the backup manager decides what they hold.
type Mirror interface {
	// Put stores size bytes read from r under name, replacing any previous object.
	Put(name string, r io.Reader, size int64) error
	// Get writes the object called name to w.
	Get(name string, w io.Writer) error
	// List returns every object name.
	List() ([]string, error)
	// ValidateSetup checks that the mirror is reachable and writable.
	ValidateSetup() error
}

// Encryptor encrypts mirrored backups with a public key. Decryption needs
// the passphrase that protects the private key.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error
	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error
	// Unlock decrypts the private key for the current session.
	Unlock(passphrase string) (DecryptionContext, error)
	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
