// Package config loads the application settings from
// ~/.config/pageeditor/config.toml with PAGEEDITOR_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"pageeditor/internal/domain"
)

// Editor holds the editor session settings.
type Editor struct {
	DocumentKey  string `toml:"document_key"`
	HistoryLimit int    `toml:"history_limit"`
	// Autosave is a cron spec ("@every 30s", "*/2 * * * *"). Empty disables it.
	Autosave string `toml:"autosave"`
	// ExternalEditor opens element content for editing; empty uses $EDITOR.
	ExternalEditor string `toml:"external_editor"`
}

// Config is the full application configuration.
type Config struct {
	DataDir     string               `toml:"data_dir"`
	Persistence domain.BackendConfig `toml:"persistence"`
	Editor      Editor               `toml:"editor"`
}

// ParseError reports a malformed configuration file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DefaultPath returns ~/.config/pageeditor/config.toml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pageeditor", "config.toml")
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "pageeditor")
	return Config{
		DataDir: dataDir,
		Persistence: domain.BackendConfig{
			Driver: domain.BackendSQLite,
		},
		Editor: Editor{
			DocumentKey:  "default",
			HistoryLimit: 100,
			Autosave:     "@every 30s",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, env func(string) (string, bool)) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ParseError{Path: path, Err: err}
		}
	}

	if err := applyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	cfg.fill()
	return cfg, nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	strs := map[string]*string{
		"PAGEEDITOR_DATA_DIR":     &cfg.DataDir,
		"PAGEEDITOR_DRIVER":       (*string)(&cfg.Persistence.Driver),
		"PAGEEDITOR_DB_PATH":      &cfg.Persistence.Path,
		"PAGEEDITOR_DB_HOST":      &cfg.Persistence.Host,
		"PAGEEDITOR_DB_NAME":      &cfg.Persistence.Database,
		"PAGEEDITOR_DB_USER":      &cfg.Persistence.Username,
		"PAGEEDITOR_DOCUMENT_DIR": &cfg.Persistence.Dir,
		"PAGEEDITOR_DOCUMENT_KEY": &cfg.Editor.DocumentKey,
		"PAGEEDITOR_AUTOSAVE":     &cfg.Editor.Autosave,
		"PAGEEDITOR_EDITOR":       &cfg.Editor.ExternalEditor,
	}
	for name, dst := range strs {
		if v, ok := env(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAGEEDITOR_DB_PORT":       &cfg.Persistence.Port,
		"PAGEEDITOR_HISTORY_LIMIT": &cfg.Editor.HistoryLimit,
	}
	for name, dst := range ints {
		v, ok := env(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

// LocalDBPath is the SQLite file holding app settings and approvals. It is
// also the default document database.
func (c Config) LocalDBPath() string {
	return filepath.Join(c.DataDir, "pageeditor.db")
}

// UsesLocalDB reports whether documents live in the local SQLite file.
func (c Config) UsesLocalDB() bool {
	return c.Persistence.Driver == domain.BackendSQLite && filepath.Clean(c.Persistence.Path) == filepath.Clean(c.LocalDBPath())
}

// fill derives paths that default relative to the data directory.
func (c *Config) fill() {
	if c.Persistence.Driver == "" {
		c.Persistence.Driver = domain.BackendSQLite
	}
	if c.Persistence.Path == "" {
		c.Persistence.Path = c.LocalDBPath()
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = filepath.Join(c.DataDir, "documents")
	}
	if c.Editor.DocumentKey == "" {
		c.Editor.DocumentKey = "default"
	}
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
