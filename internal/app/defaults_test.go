package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("GV_CONFIG_PATH", "/custom/config.toml")
		t.Setenv("GV_HOME", "/custom/gv")
		t.Setenv("GV_API_URL", "https://api.example.org/api")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/gv" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/gv")
		}
		if defaults["log_dir"] != "/custom/gv/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/gv/log")
		}
		if defaults["api_url"] != "https://api.example.org/api" {
			t.Errorf("api_url = %q, want %q", defaults["api_url"], "https://api.example.org/api")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("GV_CONFIG_PATH", "")
		t.Setenv("GV_HOME", "")
		t.Setenv("GV_API_URL", "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "gv.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "gv")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}

		if defaults["api_url"] != defaultAPIURL {
			t.Errorf("api_url = %q, want %q", defaults["api_url"], defaultAPIURL)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	content := "GV_TEST_FROM_ENV=from-file\nGV_TEST_PRESET=from-file\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv("GV_TEST_PRESET", "from-env")
	t.Setenv("GV_TEST_FROM_ENV", "")
	os.Unsetenv("GV_TEST_FROM_ENV")

	LoadEnv(envFile, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("GV_TEST_FROM_ENV"); got != "from-file" {
		t.Errorf("GV_TEST_FROM_ENV = %q, want %q", got, "from-file")
	}
	if got := os.Getenv("GV_TEST_PRESET"); got != "from-env" {
		t.Errorf("GV_TEST_PRESET = %q, want %q (existing env wins)", got, "from-env")
	}
}
