// Package config loads and validates the workspace configuration file
// (loadboard.yml) that selects the storage backend and tunes the route
// concurrency rules.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const FileName = "loadboard.yml"

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Routes  RoutesConfig  `yaml:"routes"`
	Server  ServerConfig  `yaml:"server"`
	Events  EventsConfig  `yaml:"events"`
}

// StorageConfig picks the repository backend. Exactly one of the backend
// settings is consulted, according to Backend.
type StorageConfig struct {
	// Backend is one of "json", "sqlite", "postgres".
	Backend string `yaml:"backend"`
	// JSONPath is the document-store file, relative to the workspace.
	JSONPath string `yaml:"json_path"`
	// SQLitePath is the database file, relative to the workspace.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is a pgx connection string; may also come from the
	// LOADBOARD_POSTGRES_DSN environment variable.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RoutesConfig declares which route-code prefixes carry concurrency
// restrictions. Prefixes are the first two characters of a route code.
type RoutesConfig struct {
	// ExclusivePrefixes allow at most one active route code at a time.
	ExclusivePrefixes []string `yaml:"exclusive_prefixes"`
	// GroupedPrefixes allow at most one active route_group_id at a time.
	GroupedPrefixes []string `yaml:"grouped_prefixes"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

type EventsConfig struct {
	// Path is the journal file, relative to the workspace.
	Path string `yaml:"path"`
	// MaxSizeMB caps the journal before rotation.
	MaxSizeMB  int `yaml:"max_size_mb"`
	MaxBackups int `yaml:"max_backups"`
}

// Default returns the configuration written into a fresh workspace.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    "sqlite",
			JSONPath:   ".loadboard/loadboard.json",
			SQLitePath: ".loadboard/loadboard.db",
		},
		Routes: RoutesConfig{
			ExclusivePrefixes: []string{"26", "28"},
			GroupedPrefixes:   []string{"23"},
		},
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8844,
			BasePath: "/v0",
		},
		Events: EventsConfig{
			Path:       ".loadboard/events.log",
			MaxSizeMB:  16,
			MaxBackups: 4,
		},
	}
}

// Load reads the workspace config, fills defaults for absent fields, and
// validates the result. A missing file yields the defaults.
func Load(workspace string) (Config, error) {
	cfg := Default()
	path := filepath.Join(workspace, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if dsn := os.Getenv("LOADBOARD_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write persists cfg into the workspace, creating the file.
func Write(workspace string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workspace, FileName), data, 0o644)
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "json":
		if c.Storage.JSONPath == "" {
			return fmt.Errorf("storage.json_path is required for the json backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn (or LOADBOARD_POSTGRES_DSN) is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	for _, p := range append(append([]string{}, c.Routes.ExclusivePrefixes...), c.Routes.GroupedPrefixes...) {
		if len(p) != 2 {
			return fmt.Errorf("route prefix %q must be exactly two characters", p)
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
