package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lithammer/dedent"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := NewConfig("/home/user/.local/share/rentcat")
	original.Mirrors = []MirrorConfig{
		{Type: "filesystem", Name: "nas", FSRoot: "/mnt/nas/rentcat"},
	}
	original.Backup.Mirror = "nas"
	original.Generator.Stages = []StageConfig{
		{Name: "render", Command: "php", Args: []string{"bin/render.php"}, Env: []string{"APP_ENV=prod"}},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.CatalogPath != original.CatalogPath {
		t.Errorf("CatalogPath = %q, want %q", got.CatalogPath, original.CatalogPath)
	}
	if got.Backup.Mirror != "nas" {
		t.Errorf("Backup.Mirror = %q, want %q", got.Backup.Mirror, "nas")
	}
	if len(got.Mirrors) != 1 || got.Mirrors[0].FSRoot != "/mnt/nas/rentcat" {
		t.Fatalf("Mirrors = %+v", got.Mirrors)
	}
	if len(got.Generator.Stages) != 1 {
		t.Fatalf("len(Generator.Stages) = %d, want 1", len(got.Generator.Stages))
	}
	stage := got.Generator.Stages[0]
	if stage.Command != "php" || len(stage.Args) != 1 || stage.Env[0] != "APP_ENV=prod" {
		t.Errorf("stage = %+v", stage)
	}
	if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
	}
}

func TestManager_Read_HandWritten(t *testing.T) {
	src := dedent.Dedent(`
		catalog_path = "/srv/site/data/catalog.json"
		log_level = "debug"

		[backup]
		dir = "/srv/site/data/backups"
		mirror = "offsite"
		encrypt = true

		[[mirrors]]
		type = "s3"
		name = "offsite"
		s3_bucket = "rentcat-backups"
		s3_region = "eu-central-1"

		[generator]
		lock_path = "/tmp/rentcat.lock"
		stamp_path = "/tmp/rentcat.stamp"
		cooldown = "30s"

		[[generator.stages]]
		name = "render"
		command = "php"
		args = ["bin/render.php", "--all"]

		[[generator.stages]]
		name = "sitemap"
		command = "php"
		args = ["bin/sitemap.php"]
	`)

	cfg, err := (&Manager{}).Read(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	mirror, err := cfg.BackupMirror()
	if err != nil {
		t.Fatalf("BackupMirror() error = %v", err)
	}
	if mirror.S3Bucket != "rentcat-backups" {
		t.Errorf("S3Bucket = %q", mirror.S3Bucket)
	}
	d, _ := cfg.CooldownDuration()
	if d != 30*time.Second {
		t.Errorf("CooldownDuration() = %v, want 30s", d)
	}
	if names := []string{cfg.Generator.Stages[0].Name, cfg.Generator.Stages[1].Name}; names[0] != "render" || names[1] != "sitemap" {
		t.Errorf("stage order = %v", names)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/rentcat")

	if cfg.CatalogPath != "/data/rentcat/catalog.json" {
		t.Errorf("CatalogPath = %q", cfg.CatalogPath)
	}
	if cfg.LogDir != "/data/rentcat/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/rentcat/log")
	}
	if cfg.Backup.Dir != "/data/rentcat/backups" {
		t.Errorf("Backup.Dir = %q", cfg.Backup.Dir)
	}
	if cfg.Encryption.PublicKeyPath != "/data/rentcat/keys/rentcat.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q", cfg.Encryption.PublicKeyPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing catalog path", func(c *Config) { c.CatalogPath = "" }, "catalog_path is required"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, `log_level "verbose"`},
		{"unknown mirror", func(c *Config) { c.Backup.Mirror = "nas" }, `backup.mirror "nas"`},
		{"duplicate mirror", func(c *Config) {
			c.Mirrors = []MirrorConfig{{Type: "memory", Name: "a"}, {Type: "memory", Name: "a"}}
		}, `mirrors[1]: duplicate name "a"`},
		{"bad cooldown", func(c *Config) { c.Generator.Cooldown = "soon" }, "generator.cooldown"},
		{"negative cooldown", func(c *Config) { c.Generator.Cooldown = "-1s" }, "must not be negative"},
		{"duplicate stage", func(c *Config) {
			c.Generator.Stages = []StageConfig{{Name: "a", Command: "true"}, {Name: "a", Command: "true"}}
		}, `generator.stages[1]: duplicate name "a"`},
		{"stage without command", func(c *Config) {
			c.Generator.Stages = []StageConfig{{Name: "a"}}
		}, "generator.stages[0]: command is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_CooldownDefault(t *testing.T) {
	cfg := &Config{}
	d, err := cfg.CooldownDuration()
	if err != nil || d != DefaultCooldown {
		t.Errorf("CooldownDuration() = %v, %v; want %v", d, err, DefaultCooldown)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "rentcat.toml")

		if err := Init(path, NewConfig(dir)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "rentcat.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "rentcat.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/rentcat.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
