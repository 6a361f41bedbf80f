// Package config provides the JSON settings file for the command line tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cell-annotator/internal/errs"
)

const configFile = "config.json"

// Config holds extraction and import settings. Command line flags override
// the values read from a file.
type Config struct {
	// Statistic names computed per channel, e.g. "mean", "median".
	Statistics []string `json:"statistics,omitempty"`
	Strict     bool     `json:"strict"`

	// Pixmap import
	Background uint32 `json:"background"`
	Dilate     int    `json:"dilate"`

	// Outputs
	CSVPath     string `json:"csv,omitempty"`
	SQLitePath  string `json:"sqlite,omitempty"`
	SQLiteTable string `json:"sqlite_table,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Statistics:  []string{"mean", "median"},
		SQLiteTable: "features",
	}
}

// DefaultPath returns ~/.config/cell-annotator/config.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "cell-annotator", configFile)
}

// Load reads settings from path. Fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrFormat, path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadDefault reads the settings at DefaultPath, falling back to Default
// when the file does not exist.
func LoadDefault() (*Config, error) {
	c, err := Load(DefaultPath())
	if err != nil {
		if _, statErr := os.Stat(DefaultPath()); os.IsNotExist(statErr) {
			return Default(), nil
		}
		return nil, err
	}
	return c, nil
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.Dilate < 0 {
		return fmt.Errorf("%w: dilate %d", errs.ErrInvalidArgument, c.Dilate)
	}
	if len(c.Statistics) == 0 {
		return fmt.Errorf("%w: no statistics", errs.ErrInvalidArgument)
	}
	return nil
}

// Save writes the settings to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
