// Package config loads and validates Quenito configuration from quenito.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Quenito configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Browser configuration
	Browser BrowserConfig `yaml:"browser"`

	// Knowledge store configuration
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Automation loop configuration
	Automation AutomationConfig `yaml:"automation"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures the rod browser session.
type BrowserConfig struct {
	Headless bool `yaml:"headless"`

	// DebugURL connects to a running Chrome instead of launching one.
	DebugURL string `yaml:"debug_url"`

	// NavigationTimeout bounds page loads and element waits.
	NavigationTimeout string `yaml:"navigation_timeout"`

	// SessionsPath is where session metadata is persisted.
	SessionsPath string `yaml:"sessions_path"`

	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
}

// KnowledgeConfig configures the knowledge store paths.
type KnowledgeConfig struct {
	// Path to the JSON knowledge document.
	Path string `yaml:"path"`

	// ArchivePath is the SQLite learning-event archive.
	ArchivePath string `yaml:"archive_path"`

	// WatchExternalEdits enables the fsnotify reload of hand edits.
	WatchExternalEdits bool `yaml:"watch_external_edits"`
}

// AutomationConfig configures the decision loop.
type AutomationConfig struct {
	// MaxIterations caps the run loop before it reports "incomplete".
	MaxIterations int `yaml:"max_iterations"`

	// PageSettle is the wait after navigation before reading the page.
	PageSettle string `yaml:"page_settle"`

	// QuestionSnippetLen truncates question text in learning events.
	QuestionSnippetLen int `yaml:"question_snippet_len"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "quenito",
		Version: "1.0.0",

		Browser: BrowserConfig{
			Headless:          false,
			NavigationTimeout: "30s",
			SessionsPath:      ".quenito/sessions.json",
			ViewportWidth:     1280,
			ViewportHeight:    900,
		},

		Knowledge: KnowledgeConfig{
			Path:               "data/knowledge_base.json",
			ArchivePath:        "data/learning_archive.db",
			WatchExternalEdits: true,
		},

		Automation: AutomationConfig{
			MaxIterations:      300,
			PageSettle:         "2s",
			QuestionSnippetLen: 200,
		},

		Logging: LoggingConfig{
			Level: "info",
			File:  "quenito.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// LoadFromWorkspace walks up from dir looking for quenito.yaml, falling back
// to defaults when no file is found anywhere on the path.
func LoadFromWorkspace(dir string) (*Config, error) {
	for {
		candidate := filepath.Join(dir, "quenito.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("QUENITO_KNOWLEDGE"); path != "" {
		c.Knowledge.Path = path
	}
	if path := os.Getenv("QUENITO_ARCHIVE"); path != "" {
		c.Knowledge.ArchivePath = path
	}
	if v := os.Getenv("QUENITO_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if url := os.Getenv("QUENITO_DEBUG_URL"); url != "" {
		c.Browser.DebugURL = url
	}
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetPageSettle returns the post-navigation settle delay as a duration.
func (c *Config) GetPageSettle() time.Duration {
	d, err := time.ParseDuration(c.Automation.PageSettle)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
