// Package config loads the shell configuration file. Everything has a
// working default: a bundled app normally ships no config at all, and the
// file exists for developers overriding ports, paths, and timings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/dipperhq/dippershell/internal/backend"
	"github.com/dipperhq/dippershell/internal/health"
	"github.com/dipperhq/dippershell/internal/lifecycle"
)

// ShellConfig tunes probing and readiness polling.
type ShellConfig struct {
	WellKnownPort int           `toml:"well_known_port" mapstructure:"well_known_port"`
	GracePeriod   time.Duration `toml:"grace_period" mapstructure:"grace_period"`
	PollInterval  time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	MaxAttempts   int           `toml:"max_attempts" mapstructure:"max_attempts"`
	ProbeTimeout  time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
	HealthPath    string        `toml:"health_path" mapstructure:"health_path"`
	DataDir       string        `toml:"data_dir" mapstructure:"data_dir"`
}

// IPCConfig configures the loopback server the UI layer talks to.
type IPCConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Addr    string `toml:"addr" mapstructure:"addr"`
}

// JournalConfig configures the lifecycle event journal.
type JournalConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Config is the top-level TOML structure.
type Config struct {
	Shell   ShellConfig   `toml:"shell" mapstructure:"shell"`
	Backend backend.Spec  `toml:"backend" mapstructure:"backend"`
	IPC     IPCConfig     `toml:"ipc" mapstructure:"ipc"`
	Journal JournalConfig `toml:"journal" mapstructure:"journal"`
}

// Default returns the configuration used when no file is present. The data
// directory defaults to the user config dir so the journal and instance
// lock land next to the rest of the app's state.
func Default() Config {
	dataDir := ""
	if d, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(d, "dipper")
	}
	return Config{
		Shell: ShellConfig{
			WellKnownPort: lifecycle.DefaultWellKnownPort,
			GracePeriod:   lifecycle.DefaultGracePeriod,
			PollInterval:  lifecycle.DefaultPollInterval,
			MaxAttempts:   lifecycle.DefaultMaxAttempts,
			ProbeTimeout:  health.DefaultTimeout,
			HealthPath:    health.DefaultPath,
			DataDir:       dataDir,
		},
		Backend: backend.Spec{
			Command: backend.DefaultExecutable,
		},
		IPC: IPCConfig{
			Enabled: true,
			Addr:    "127.0.0.1:0",
		},
	}
}

// Load reads a TOML config file and merges it over Default. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Lifecycle maps the shell section onto the coordinator's config.
func (c Config) Lifecycle() lifecycle.Config {
	return lifecycle.Config{
		WellKnownPort: c.Shell.WellKnownPort,
		GracePeriod:   c.Shell.GracePeriod,
		PollInterval:  c.Shell.PollInterval,
		MaxAttempts:   c.Shell.MaxAttempts,
	}
}

// JournalDSN returns the configured journal DSN, defaulting to a sqlite
// file under the data directory. Empty when no data dir could be resolved.
func (c Config) JournalDSN() string {
	if c.Journal.DSN != "" {
		return c.Journal.DSN
	}
	if c.Shell.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Shell.DataDir, "lifecycle.db")
}
