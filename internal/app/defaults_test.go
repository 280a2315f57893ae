package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("RENTCAT_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("RENTCAT_HOME", "/custom/rentcat")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		want := Defaults{
			ConfigPath: "/custom/config.toml",
			BaseDir:    "/custom/rentcat",
			LogDir:     "/custom/rentcat/log",
		}
		if defaults != want {
			t.Errorf("GetDefaults() = %+v, want %+v", defaults, want)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("RENTCAT_CONFIG_PATH", "")
		t.Setenv("RENTCAT_HOME", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "rentcat.toml")
		if defaults.ConfigPath != wantConfig {
			t.Errorf("ConfigPath = %q, want %q", defaults.ConfigPath, wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "rentcat")
		if defaults.BaseDir != wantBase {
			t.Errorf("BaseDir = %q, want %q", defaults.BaseDir, wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults.LogDir != wantLog {
			t.Errorf("LogDir = %q, want %q", defaults.LogDir, wantLog)
		}
	})
}
