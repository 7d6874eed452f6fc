package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "vessellog"
	// DefaultDatabaseFile is the SQLite filename relative to the data directory.
	DefaultDatabaseFile = "vessellog.db"
	// DefaultBusyTimeout bounds waits on locks held by concurrent writers.
	DefaultBusyTimeout = 20 * time.Second
	// DefaultKeyEnvVar holds the base64 master key when KeySourceEnv is used.
	DefaultKeyEnvVar = "VESSELLOG_MASTER_KEY"

	// KeySourceFile keeps the master key in a PEM file under the data directory.
	KeySourceFile = "file"
	// KeySourceEnv reads the master key from an environment variable.
	KeySourceEnv = "env"
	// KeySourceSSM reads the master key from AWS SSM Parameter Store.
	KeySourceSSM = "ssm"

	// configFileName is the persisted configuration file.
	configFileName = "config.yaml"
)

// Config contains persistent store settings.
type Config struct {
	DatabaseFile string        `yaml:"database_file"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	Key          KeyConfig     `yaml:"key"`
}

// KeyConfig selects where the master key comes from.
type KeyConfig struct {
	Source       string `yaml:"source"`
	File         string `yaml:"file,omitempty"`
	EnvVar       string `yaml:"env_var,omitempty"`
	SSMParameter string `yaml:"ssm_parameter,omitempty"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If VESSELLOG_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("VESSELLOG_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.yaml for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// DatabasePath resolves DatabaseFile against the data directory.
func (c *Config) DatabasePath(dataDir string) string {
	if filepath.IsAbs(c.DatabaseFile) {
		return c.DatabaseFile
	}
	return filepath.Join(dataDir, c.DatabaseFile)
}

// KeyFilePath resolves Key.File against the data directory.
func (c *Config) KeyFilePath(dataDir string) string {
	if filepath.IsAbs(c.Key.File) {
		return c.Key.File
	}
	return filepath.Join(dataDir, c.Key.File)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.yaml from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.yaml to disk.
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, then returns the
// effective config, the data directory and the config path.
//
// An empty dataDir resolves through ResolveDataDir. Environment overrides
// are applied to the returned value but never persisted.
func LoadOrCreate(dataDir string) (*Config, string, string, error) {
	if dataDir == "" {
		resolved, err := ResolveDataDir()
		if err != nil {
			return nil, "", "", err
		}
		dataDir = resolved
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = defaultConfig()
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", "", err
		}
	case err != nil:
		return nil, "", "", err
	default:
		if normalizeDefaults(cfg) {
			if err := Save(cfgPath, cfg); err != nil {
				return nil, "", "", err
			}
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", "", err
	}

	return cfg, dataDir, cfgPath, nil
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("busy_timeout must be positive, got %s", c.BusyTimeout)
	}
	switch c.Key.Source {
	case KeySourceFile:
		if c.Key.File == "" {
			return errors.New("key.file is required for the file key source")
		}
	case KeySourceEnv:
		if c.Key.EnvVar == "" {
			return errors.New("key.env_var is required for the env key source")
		}
	case KeySourceSSM:
		if c.Key.SSMParameter == "" {
			return errors.New("key.ssm_parameter is required for the ssm key source")
		}
	default:
		return fmt.Errorf("invalid key.source %q", c.Key.Source)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DatabaseFile: DefaultDatabaseFile,
		BusyTimeout:  DefaultBusyTimeout,
		LogLevel:     "warn",
		LogFormat:    "text",
		Key: KeyConfig{
			Source: KeySourceFile,
			File:   filepath.Join("keys", "master.pem"),
			EnvVar: DefaultKeyEnvVar,
		},
	}
}

func normalizeDefaults(cfg *Config) bool {
	updated := false
	defaults := defaultConfig()

	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = defaults.DatabaseFile
		updated = true
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaults.BusyTimeout
		updated = true
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
		updated = true
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
		updated = true
	}

	source := strings.ToLower(strings.TrimSpace(cfg.Key.Source))
	if source == "" {
		source = defaults.Key.Source
	}
	if cfg.Key.Source != source {
		cfg.Key.Source = source
		updated = true
	}
	if cfg.Key.Source == KeySourceFile && cfg.Key.File == "" {
		cfg.Key.File = defaults.Key.File
		updated = true
	}
	if cfg.Key.Source == KeySourceEnv && cfg.Key.EnvVar == "" {
		cfg.Key.EnvVar = defaults.Key.EnvVar
		updated = true
	}

	return updated
}

func applyEnvOverrides(cfg *Config) {
	if level := strings.TrimSpace(os.Getenv("VESSELLOG_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if source := strings.ToLower(strings.TrimSpace(os.Getenv("VESSELLOG_KEY_SOURCE"))); source != "" {
		cfg.Key.Source = source
		if source == KeySourceEnv && cfg.Key.EnvVar == "" {
			cfg.Key.EnvVar = DefaultKeyEnvVar
		}
		if source == KeySourceFile && cfg.Key.File == "" {
			cfg.Key.File = defaultConfig().Key.File
		}
	}
}
