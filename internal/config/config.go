// Package config loads and validates the logkit configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"logkit/internal/logging"
)

//go:embed sample_config.toml
var sampleConfig string

// Logging holds the sink configuration handed to the logging manager.
type Logging struct {
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	Service       string `toml:"service"`
	RotateAt      string `toml:"rotate_at"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	RetentionDays int    `toml:"retention_days"`
	Console       bool   `toml:"console"`
}

// Archive configures the optional SQLite event journal.
type Archive struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the root configuration document.
type Config struct {
	Logging Logging `toml:"logging"`
	Archive Archive `toml:"archive"`
}

// Default returns the built-in configuration used when no file exists.
func Default() Config {
	return Config{
		Logging: Logging{
			Level:         "INFO",
			Dir:           "~/.local/share/logkit/logs",
			Service:       "api",
			RotateAt:      "00:00",
			MaxSizeMB:     0,
			RetentionDays: 7,
			Console:       true,
		},
		Archive: Archive{
			Enabled: false,
			Path:    "~/.local/share/logkit/events.db",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/logkit/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("logkit.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	c.Logging.Level = strings.ToUpper(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	c.Logging.Service = strings.ToLower(strings.TrimSpace(c.Logging.Service))
	if c.Logging.Service == "" {
		c.Logging.Service = "api"
	}
	if strings.TrimSpace(c.Logging.RotateAt) == "" {
		c.Logging.RotateAt = "00:00"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 7
	}

	dir, err := expandPath(c.Logging.Dir)
	if err != nil {
		return err
	}
	c.Logging.Dir = dir

	archivePath, err := expandPath(c.Archive.Path)
	if err != nil {
		return err
	}
	c.Archive.Path = archivePath
	return nil
}

// ManagerOptions maps the configuration onto logging.Options.
func (c *Config) ManagerOptions() logging.Options {
	return logging.Options{
		Level:         c.Logging.Level,
		Dir:           c.Logging.Dir,
		Service:       c.Logging.Service,
		RotateAt:      c.Logging.RotateAt,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		RetentionDays: c.Logging.RetentionDays,
		NoConsole:     !c.Logging.Console,
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path, refusing
// to overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
