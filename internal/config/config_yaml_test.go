package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, want nil", err)
	}

	if cfg.Keys.Quit != "q" {
		t.Errorf("cfg.Keys.Quit = %q, want %q", cfg.Keys.Quit, "q")
	}
	if cfg.Timing != DefaultTiming() {
		t.Errorf("cfg.Timing = %+v, want defaults", cfg.Timing)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `agent_command: "claude --model opus"
resume_args: ["--resume"]
kill_on_exit: true
timing:
  resize_debounce: 250ms
  start_max_attempts: 20
keys:
  quit: "Q"
  mark_ready: "ctrl+t"
theme:
  colors:
    focus_ring: "magenta"
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v, want nil", err)
	}

	if cfg.AgentCommand != "claude --model opus" {
		t.Errorf("AgentCommand = %q", cfg.AgentCommand)
	}
	if !reflect.DeepEqual(cfg.ResumeArgs, []string{"--resume"}) {
		t.Errorf("ResumeArgs = %q", cfg.ResumeArgs)
	}
	if !cfg.KillOnExit {
		t.Error("KillOnExit = false, want true")
	}
	if cfg.Timing.ResizeDebounce != 250*time.Millisecond {
		t.Errorf("ResizeDebounce = %v, want 250ms", cfg.Timing.ResizeDebounce)
	}
	if cfg.Timing.StartMaxAttempts != 20 {
		t.Errorf("StartMaxAttempts = %d, want 20", cfg.Timing.StartMaxAttempts)
	}
	// Defaults are preserved for unset values
	if cfg.Timing.BatchInterval != 16*time.Millisecond {
		t.Errorf("BatchInterval = %v, want default 16ms", cfg.Timing.BatchInterval)
	}
	if cfg.Keys.Quit != "Q" || cfg.Keys.MarkReady != "ctrl+t" {
		t.Errorf("keys = %q/%q", cfg.Keys.Quit, cfg.Keys.MarkReady)
	}
	if cfg.Keys.NavUp != "k" {
		t.Errorf("cfg.Keys.NavUp = %q, want default 'k'", cfg.Keys.NavUp)
	}
	if cfg.Theme.Colors.FocusRing != "magenta" {
		t.Errorf("FocusRing = %q, want magenta", cfg.Theme.Colors.FocusRing)
	}
	if cfg.Theme.Colors.SelectionFg != "white" {
		t.Errorf("SelectionFg = %q, want default 'white'", cfg.Theme.Colors.SelectionFg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "agent_command: from-file\n")
	t.Setenv("TERMDECK_AGENT_COMMAND", "from-env")
	t.Setenv("TERMDECK_LOG_LEVEL", "debug")
	t.Setenv("TERMDECK_TIMING_BATCH_INTERVAL", "5ms")
	t.Setenv("TERMDECK_RESUME_ARGS", "--continue,--verbose")

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.AgentCommand != "from-env" {
		t.Errorf("AgentCommand = %q, want from-env", cfg.AgentCommand)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Timing.BatchInterval != 5*time.Millisecond {
		t.Errorf("BatchInterval = %v, want 5ms", cfg.Timing.BatchInterval)
	}
	if !reflect.DeepEqual(cfg.ResumeArgs, []string{"--continue", "--verbose"}) {
		t.Errorf("ResumeArgs = %q", cfg.ResumeArgs)
	}
}

func TestLoad_DuplicateKeysError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `keys:
  quit: "x"
  delete: "x"
`)

	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() expected error for duplicate keys, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "keys: [\n")

	if _, err := LoadFrom(dir); err == nil {
		t.Error("LoadFrom() expected error for invalid yaml, got nil")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "agent_command: first\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = Watch(ctx, dir, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()
	<-started

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			if cfg.AgentCommand == "second" {
				return
			}
		case <-tick.C:
			// Rewrite until the watcher is registered and sees it.
			writeConfig(t, dir, "agent_command: second\n")
		case <-deadline:
			t.Fatal("Watch did not report the change")
		}
	}
}
