// Package config loads engine settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the CLI, the ingestor and the server.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// Corpus is the tag under which a source tree is indexed.
	Corpus string `yaml:"corpus"`
	// Workers bounds the parallel parse stage; 0 means NumCPU.
	Workers int `yaml:"workers"`
	// IgnoreFile overrides the default <root>/.codegraphignore.
	IgnoreFile string `yaml:"ignore_file"`
	// WatchInterval is the base polling interval for watch mode.
	WatchInterval time.Duration `yaml:"-"`
}

// fileConfig mirrors Config for YAML decoding; durations arrive as strings.
type fileConfig struct {
	DBPath        string `yaml:"db_path"`
	Corpus        string `yaml:"corpus"`
	Workers       int    `yaml:"workers"`
	IgnoreFile    string `yaml:"ignore_file"`
	WatchInterval string `yaml:"watch_interval"`
}

// Default returns the built-in defaults.
func Default() Config {
	dbPath := "codegraph.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".cache", "codegraph", "codegraph.db")
	}
	return Config{
		DBPath:        dbPath,
		Corpus:        "default",
		WatchInterval: time.Second,
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist, then applies environment overrides (CODEGRAPH_DB,
// CODEGRAPH_CORPUS, CODEGRAPH_WORKERS).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// missing config file is fine
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
			if fc.DBPath != "" {
				cfg.DBPath = fc.DBPath
			}
			if fc.Corpus != "" {
				cfg.Corpus = fc.Corpus
			}
			if fc.Workers > 0 {
				cfg.Workers = fc.Workers
			}
			if fc.IgnoreFile != "" {
				cfg.IgnoreFile = fc.IgnoreFile
			}
			if fc.WatchInterval != "" {
				d, parseErr := time.ParseDuration(fc.WatchInterval)
				if parseErr != nil {
					return cfg, fmt.Errorf("parse watch_interval: %w", parseErr)
				}
				cfg.WatchInterval = d
			}
		}
	}

	if v := os.Getenv("CODEGRAPH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CODEGRAPH_CORPUS"); v != "" {
		cfg.Corpus = v
	}
	if v := os.Getenv("CODEGRAPH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = time.Second
	}
	return cfg, nil
}
