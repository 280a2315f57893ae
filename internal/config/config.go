package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultCooldown is used when generator.cooldown is empty.
const DefaultCooldown = 10 * time.Second

// Config represents the main configuration for rentcat.
type Config struct {
	BaseDir     string           `toml:"base_dir"`
	CatalogPath string           `toml:"catalog_path"`
	LogDir      string           `toml:"log_dir"`
	LogLevel    string           `toml:"log_level"` // debug, info (default), warn, error
	Backup      BackupConfig     `toml:"backup"`
	Mirrors     []MirrorConfig   `toml:"mirrors"`
	Encryption  EncryptionConfig `toml:"encryption"`
	Database    DatabaseConfig   `toml:"database"`
	Generator   GeneratorConfig  `toml:"generator"`
}

// BackupConfig controls local snapshots and which mirror receives copies.
type BackupConfig struct {
	Dir     string `toml:"dir"`
	Mirror  string `toml:"mirror,omitempty"` // name of an entry in [[mirrors]]; empty disables mirroring
	Encrypt bool   `toml:"encrypt"`
}

// MirrorConfig represents configuration for an offsite backup mirror.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// Encryption types accepted in [encryption] type.
const (
	EncryptionAge  = "age"
	EncryptionTest = "test"
)

// EncryptionConfig holds paths to the age key pair used for mirrored backups.
type EncryptionConfig struct {
	Type           string `toml:"type"` // EncryptionAge (default) or EncryptionTest
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the activity database.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// GeneratorConfig describes the regeneration pipeline.
type GeneratorConfig struct {
	LockPath  string        `toml:"lock_path"`
	StampPath string        `toml:"stamp_path"`
	Cooldown  string        `toml:"cooldown,omitempty"` // time.ParseDuration syntax
	Stages    []StageConfig `toml:"stages"`
}

// StageConfig is one external command of the pipeline.
type StageConfig struct {
	Name    string   `toml:"name"`
	Command string   `toml:"command"`
	Args    []string `toml:"args,omitempty"`
	Dir     string   `toml:"dir,omitempty"`
	Env     []string `toml:"env,omitempty"`
}

// NewConfig creates a Config with every path derived from baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		CatalogPath: filepath.Join(baseDir, "catalog.json"),
		LogDir:      filepath.Join(baseDir, "log"),
		LogLevel:    "info",
		Backup: BackupConfig{
			Dir: filepath.Join(baseDir, "backups"),
		},
		Encryption: EncryptionConfig{
			Type:           EncryptionAge,
			PublicKeyPath:  filepath.Join(baseDir, "keys", "rentcat.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "rentcat.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Generator: GeneratorConfig{
			LockPath:  filepath.Join(baseDir, "regenerate.lock"),
			StampPath: filepath.Join(baseDir, "regenerate.stamp"),
			Cooldown:  DefaultCooldown.String(),
		},
	}
}

// CooldownDuration parses Generator.Cooldown, defaulting to DefaultCooldown.
func (c *Config) CooldownDuration() (time.Duration, error) {
	if c.Generator.Cooldown == "" {
		return DefaultCooldown, nil
	}
	d, err := time.ParseDuration(c.Generator.Cooldown)
	if err != nil {
		return 0, fmt.Errorf("generator.cooldown: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("generator.cooldown must not be negative")
	}
	return d, nil
}

// BackupMirror returns the mirror selected by backup.mirror, or nil when
// mirroring is disabled.
func (c *Config) BackupMirror() (*MirrorConfig, error) {
	if c.Backup.Mirror == "" {
		return nil, nil
	}
	for i := range c.Mirrors {
		if c.Mirrors[i].Name == c.Backup.Mirror {
			return &c.Mirrors[i], nil
		}
	}
	return nil, fmt.Errorf("backup.mirror %q does not name a configured mirror", c.Backup.Mirror)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.CatalogPath == "" {
		errs = append(errs, errors.New("catalog_path is required"))
	}
	if c.Backup.Dir == "" {
		errs = append(errs, errors.New("backup.dir is required"))
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q must be debug, info, warn or error", c.LogLevel))
	}

	names := make(map[string]bool)
	for i, m := range c.Mirrors {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("mirrors[%d]: name is required", i))
		} else if names[m.Name] {
			errs = append(errs, fmt.Errorf("mirrors[%d]: duplicate name %q", i, m.Name))
		}
		names[m.Name] = true
	}
	if _, err := c.BackupMirror(); err != nil {
		errs = append(errs, err)
	}

	if c.Generator.LockPath == "" {
		errs = append(errs, errors.New("generator.lock_path is required"))
	}
	if c.Generator.StampPath == "" {
		errs = append(errs, errors.New("generator.stamp_path is required"))
	}
	if _, err := c.CooldownDuration(); err != nil {
		errs = append(errs, err)
	}
	stages := make(map[string]bool)
	for i, s := range c.Generator.Stages {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("generator.stages[%d]: name is required", i))
		} else if stages[s.Name] {
			errs = append(errs, fmt.Errorf("generator.stages[%d]: duplicate name %q", i, s.Name))
		}
		stages[s.Name] = true
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("generator.stages[%d]: command is required", i))
		}
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
