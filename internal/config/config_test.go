package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.AgentCommand != "claude" {
		t.Errorf("AgentCommand = %q, want 'claude'", cfg.AgentCommand)
	}
	if cfg.SessionPrefix != "td-" {
		t.Errorf("SessionPrefix = %q, want 'td-'", cfg.SessionPrefix)
	}
	if cfg.Timing.BatchInterval != 16*time.Millisecond {
		t.Errorf("BatchInterval = %v, want 16ms", cfg.Timing.BatchInterval)
	}
	if cfg.Timing.StartMaxAttempts != 10 {
		t.Errorf("StartMaxAttempts = %d, want 10", cfg.Timing.StartMaxAttempts)
	}
	if cfg.Keys.NewSession != "ctrl+n" || cfg.Keys.MarkReady != "ctrl+r" {
		t.Errorf("chords = %q/%q, want ctrl+n/ctrl+r", cfg.Keys.NewSession, cfg.Keys.MarkReady)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("TERMDECK_DATA_DIR", "")

	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if dir := defaultDataDir(); dir != "/custom/config/termdeck" {
		t.Errorf("with XDG_CONFIG_HOME: got %q, want '/custom/config/termdeck'", dir)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	if dir := defaultDataDir(); !strings.HasSuffix(dir, ".config/termdeck") {
		t.Errorf("without XDG_CONFIG_HOME: got %q, expected to end with '.config/termdeck'", dir)
	}

	t.Setenv("TERMDECK_DATA_DIR", "/explicit")
	if dir := defaultDataDir(); dir != "/explicit" {
		t.Errorf("with TERMDECK_DATA_DIR: got %q, want '/explicit'", dir)
	}
}

func TestDefaultShellWithEnv(t *testing.T) {
	t.Setenv("SHELL", "/bin/custom-shell")
	if shell := getDefaultShell(); shell != "/bin/custom-shell" {
		t.Errorf("with SHELL env: got %q, want '/bin/custom-shell'", shell)
	}

	t.Setenv("SHELL", "")
	if shell := getDefaultShell(); shell != "/bin/bash" {
		t.Errorf("without SHELL env: got %q, want '/bin/bash'", shell)
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/test/data"}

	if got := cfg.ConfigFile(); got != "/test/data/config.yaml" {
		t.Errorf("ConfigFile() = %q", got)
	}
	if got := cfg.CatalogFile(); got != "/test/data/catalog.db" {
		t.Errorf("CatalogFile() = %q", got)
	}
	if got := cfg.LogFile(); got != "/test/data/termdeck.log" {
		t.Errorf("LogFile() = %q", got)
	}
	cfg.Log.File = "/var/log/td.log"
	if got := cfg.LogFile(); got != "/var/log/td.log" {
		t.Errorf("LogFile() with override = %q", got)
	}
}

func TestEnsureDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "termdeck-test", "data")
	cfg := &Config{DataDir: dataDir}

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error: %v", err)
	}

	info, err := os.Stat(dataDir)
	if err != nil {
		t.Fatalf("data dir does not exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("data dir is not a directory")
	}

	// Should be idempotent
	if err := cfg.EnsureDataDir(); err != nil {
		t.Errorf("second EnsureDataDir() error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty agent command", func(c *Config) { c.AgentCommand = " " }},
		{"no attempts", func(c *Config) { c.Timing.StartMaxAttempts = 0 }},
		{"bad ring color", func(c *Config) { c.Theme.Colors.FocusRing = "chartreuse" }},
		{"plain chord", func(c *Config) { c.Keys.NewSession = "n" }},
		{"duplicate key", func(c *Config) { c.Keys.Delete = "q" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
