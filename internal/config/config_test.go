package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dipperhq/dippershell/internal/lifecycle"
)

func TestDefaultsAreComplete(t *testing.T) {
	cfg := Default()
	if cfg.Shell.WellKnownPort != lifecycle.DefaultWellKnownPort {
		t.Fatalf("well-known port: got %d", cfg.Shell.WellKnownPort)
	}
	if cfg.Shell.GracePeriod != lifecycle.DefaultGracePeriod {
		t.Fatalf("grace period: got %v", cfg.Shell.GracePeriod)
	}
	if cfg.Backend.Command == "" {
		t.Fatal("backend command empty")
	}
	if !cfg.IPC.Enabled {
		t.Fatal("ipc disabled by default")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell.MaxAttempts != lifecycle.DefaultMaxAttempts {
		t.Fatalf("max attempts: got %d", cfg.Shell.MaxAttempts)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dippershell.toml")
	content := `
[shell]
well_known_port = 9100
poll_interval = "500ms"
max_attempts = 10
data_dir = "/tmp/dipper-test"

[backend]
command = "custom_server"
resource_dir = "/opt/custom"

[journal]
dsn = "sqlite:///tmp/dipper-test/j.db"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shell.WellKnownPort != 9100 {
		t.Fatalf("well-known port: got %d", cfg.Shell.WellKnownPort)
	}
	if cfg.Shell.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll interval: got %v", cfg.Shell.PollInterval)
	}
	// Unset keys keep their defaults.
	if cfg.Shell.GracePeriod != lifecycle.DefaultGracePeriod {
		t.Fatalf("grace period default lost: got %v", cfg.Shell.GracePeriod)
	}
	if cfg.Backend.Command != "custom_server" || cfg.Backend.ResourceDir != "/opt/custom" {
		t.Fatalf("backend section: got %+v", cfg.Backend)
	}
	if cfg.JournalDSN() != "sqlite:///tmp/dipper-test/j.db" {
		t.Fatalf("journal dsn: got %q", cfg.JournalDSN())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestLifecycleMapping(t *testing.T) {
	cfg := Default()
	cfg.Shell.WellKnownPort = 9999
	cfg.Shell.MaxAttempts = 3
	lc := cfg.Lifecycle()
	if lc.WellKnownPort != 9999 || lc.MaxAttempts != 3 {
		t.Fatalf("lifecycle mapping: got %+v", lc)
	}
}

func TestJournalDSNFallsBackToDataDir(t *testing.T) {
	cfg := Default()
	cfg.Journal.DSN = ""
	cfg.Shell.DataDir = "/data/dipper"
	want := filepath.Join("/data/dipper", "lifecycle.db")
	if got := cfg.JournalDSN(); got != want {
		t.Fatalf("journal dsn: got %q want %q", got, want)
	}
	cfg.Shell.DataDir = ""
	if got := cfg.JournalDSN(); got != "" {
		t.Fatalf("journal dsn without data dir: got %q", got)
	}
}
