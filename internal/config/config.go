// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (TERMDECK_AGENT_COMMAND, ...).
const EnvPrefix = "TERMDECK"

// Config holds application configuration.
type Config struct {
	// DataDir is the directory for persistent data (catalog, logs, config file)
	DataDir string `yaml:"-" ignored:"true"`

	// SessionPrefix is prepended to tmux session names
	SessionPrefix string `yaml:"session_prefix" envconfig:"SESSION_PREFIX"`

	// AgentCommand starts the agent in top terminals
	AgentCommand string `yaml:"agent_command" envconfig:"AGENT_COMMAND"`

	// ResumeArgs are appended to AgentCommand for named sessions
	ResumeArgs []string `yaml:"resume_args" envconfig:"RESUME_ARGS"`

	// DefaultShell runs in every new terminal
	DefaultShell string `yaml:"default_shell" envconfig:"DEFAULT_SHELL"`

	// KillOnExit kills this app's tmux sessions when it quits
	KillOnExit bool `yaml:"kill_on_exit" envconfig:"KILL_ON_EXIT"`

	// MetricsAddr serves /metrics when set, e.g. "127.0.0.1:9464"
	MetricsAddr string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`

	Timing Timing    `yaml:"timing" envconfig:"TIMING"`
	Log    LogConfig `yaml:"log" envconfig:"LOG"`

	// Keys contains keybinding configuration
	Keys KeyBindings `yaml:"keys" ignored:"true"`

	// Theme contains theme/appearance configuration
	Theme Theme `yaml:"theme" ignored:"true"`
}

// Timing holds the intervals of the terminal workspace.
type Timing struct {
	BatchInterval    time.Duration `yaml:"batch_interval" envconfig:"BATCH_INTERVAL"`
	ResizeDebounce   time.Duration `yaml:"resize_debounce" envconfig:"RESIZE_DEBOUNCE"`
	FitPollInterval  time.Duration `yaml:"fit_poll_interval" envconfig:"FIT_POLL_INTERVAL"`
	StartRetryDelay  time.Duration `yaml:"start_retry_delay" envconfig:"START_RETRY_DELAY"`
	StartMaxAttempts int           `yaml:"start_max_attempts" envconfig:"START_MAX_ATTEMPTS"`
	SnapshotLines    int           `yaml:"snapshot_lines" envconfig:"SNAPSHOT_LINES"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
	// File defaults to termdeck.log in DataDir
	File string `yaml:"file" envconfig:"FILE"`
}

// KeyBindings holds all configurable keybindings.
type KeyBindings struct {
	Quit         string `yaml:"quit"`
	NavDown      string `yaml:"nav_down"`
	NavUp        string `yaml:"nav_up"`
	Select       string `yaml:"select"`
	Orchestrator string `yaml:"orchestrator"`
	Attach       string `yaml:"attach"`
	Detach       string `yaml:"detach"`
	FocusNext    string `yaml:"focus_next"`
	FocusPrev    string `yaml:"focus_prev"`
	NewSession   string `yaml:"new_session"`
	MarkReady    string `yaml:"mark_ready"`
	Delete       string `yaml:"delete"`
}

// Theme holds theme configuration.
type Theme struct {
	Colors ThemeColors `yaml:"colors"`
}

// ThemeColors holds color configuration.
type ThemeColors struct {
	SelectionBg string `yaml:"selection_bg"`
	SelectionFg string `yaml:"selection_fg"`
	StatusBarBg string `yaml:"statusbar_bg"`
	StatusBarFg string `yaml:"statusbar_fg"`
	// FocusRing is the ring color for the orchestrator and uncolored sessions
	FocusRing string `yaml:"focus_ring"`
	Ready     string `yaml:"ready"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir:       defaultDataDir(),
		SessionPrefix: "td-",
		AgentCommand:  "claude",
		ResumeArgs:    []string{"--continue"},
		DefaultShell:  getDefaultShell(),
		Timing:        DefaultTiming(),
		Log:           LogConfig{Level: "info"},
		Keys:          DefaultKeyBindings(),
		Theme:         DefaultTheme(),
	}
}

// DefaultTiming returns the default intervals.
func DefaultTiming() Timing {
	return Timing{
		BatchInterval:    16 * time.Millisecond,
		ResizeDebounce:   150 * time.Millisecond,
		FitPollInterval:  16 * time.Millisecond,
		StartRetryDelay:  150 * time.Millisecond,
		StartMaxAttempts: 10,
		SnapshotLines:    2000,
	}
}

// DefaultKeyBindings returns the default keybindings.
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Quit:         "q",
		NavDown:      "j",
		NavUp:        "k",
		Select:       "enter",
		Orchestrator: "o",
		Attach:       "i",
		Detach:       "ctrl+g",
		FocusNext:    "l",
		FocusPrev:    "h",
		NewSession:   "ctrl+n",
		MarkReady:    "ctrl+r",
		Delete:       "x",
	}
}

// DefaultTheme returns the default theme configuration.
func DefaultTheme() Theme {
	return Theme{
		Colors: ThemeColors{
			SelectionBg: "blue",
			SelectionFg: "white",
			StatusBarBg: "blue",
			StatusBarFg: "white",
			FocusRing:   "cyan",
			Ready:       "green",
		},
	}
}

// Load loads configuration from the default data directory.
func Load() (*Config, error) {
	return LoadFrom(defaultDataDir())
}

// LoadFrom reads config.yaml in dataDir over the defaults, then applies
// environment overrides. A missing file is not an error.
func LoadFrom(dataDir string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir

	data, err := os.ReadFile(cfg.ConfigFile())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		// Parse YAML into a temporary struct to merge with defaults
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.ConfigFile(), err)
		}
		mergeConfig(cfg, &fileCfg)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig merges file configuration into the default configuration.
// Only non-zero values from file are applied.
func mergeConfig(dst, src *Config) {
	if src.SessionPrefix != "" {
		dst.SessionPrefix = src.SessionPrefix
	}
	if src.AgentCommand != "" {
		dst.AgentCommand = src.AgentCommand
	}
	if src.ResumeArgs != nil {
		dst.ResumeArgs = src.ResumeArgs
	}
	if src.DefaultShell != "" {
		dst.DefaultShell = src.DefaultShell
	}
	if src.KillOnExit {
		dst.KillOnExit = true
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}

	mergeTiming(&dst.Timing, &src.Timing)

	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Development {
		dst.Log.Development = true
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}

	mergeKeyBindings(&dst.Keys, &src.Keys)
	mergeTheme(&dst.Theme, &src.Theme)
}

func mergeTiming(dst, src *Timing) {
	if src.BatchInterval > 0 {
		dst.BatchInterval = src.BatchInterval
	}
	if src.ResizeDebounce > 0 {
		dst.ResizeDebounce = src.ResizeDebounce
	}
	if src.FitPollInterval > 0 {
		dst.FitPollInterval = src.FitPollInterval
	}
	if src.StartRetryDelay > 0 {
		dst.StartRetryDelay = src.StartRetryDelay
	}
	if src.StartMaxAttempts > 0 {
		dst.StartMaxAttempts = src.StartMaxAttempts
	}
	if src.SnapshotLines > 0 {
		dst.SnapshotLines = src.SnapshotLines
	}
}

// mergeKeyBindings merges keybindings from src into dst.
func mergeKeyBindings(dst, src *KeyBindings) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.Quit, src.Quit)
	set(&dst.NavDown, src.NavDown)
	set(&dst.NavUp, src.NavUp)
	set(&dst.Select, src.Select)
	set(&dst.Orchestrator, src.Orchestrator)
	set(&dst.Attach, src.Attach)
	set(&dst.Detach, src.Detach)
	set(&dst.FocusNext, src.FocusNext)
	set(&dst.FocusPrev, src.FocusPrev)
	set(&dst.NewSession, src.NewSession)
	set(&dst.MarkReady, src.MarkReady)
	set(&dst.Delete, src.Delete)
}

// mergeTheme merges theme configuration from src into dst.
func mergeTheme(dst, src *Theme) {
	if src.Colors.SelectionBg != "" {
		dst.Colors.SelectionBg = src.Colors.SelectionBg
	}
	if src.Colors.SelectionFg != "" {
		dst.Colors.SelectionFg = src.Colors.SelectionFg
	}
	if src.Colors.StatusBarBg != "" {
		dst.Colors.StatusBarBg = src.Colors.StatusBarBg
	}
	if src.Colors.StatusBarFg != "" {
		dst.Colors.StatusBarFg = src.Colors.StatusBarFg
	}
	if src.Colors.FocusRing != "" {
		dst.Colors.FocusRing = src.Colors.FocusRing
	}
	if src.Colors.Ready != "" {
		dst.Colors.Ready = src.Colors.Ready
	}
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if dir := os.Getenv(EnvPrefix + "_DATA_DIR"); dir != "" {
		return dir
	}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "termdeck")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termdeck"
	}
	return filepath.Join(home, ".config", "termdeck")
}

// getDefaultShell returns the user's default shell.
func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

// ConfigFile returns the path to the config file.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// CatalogFile returns the path to the session catalog database.
func (c *Config) CatalogFile() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// LogFile returns the path logs are written to.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.DataDir, "termdeck.log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
