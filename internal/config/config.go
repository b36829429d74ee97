// Package config drives the serve and eval commands. Relative paths in the
// file are anchored to the config file's own directory at load time, so
// every consumer downstream sees ready-to-use absolute paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ConfigVersion int           `yaml:"configVersion"`
	PolicyDir     string        `yaml:"policyDir"`
	IncludeDir    string        `yaml:"includeDir"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
	Metrics       MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	DecisionLog string `yaml:"decisionLog"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and unmarshals a config file, then anchors policyDir,
// includeDir and the decision log path to the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("locate config directory: %w", err)
	}
	cfg.PolicyDir = anchor(base, cfg.PolicyDir)
	cfg.IncludeDir = anchor(base, cfg.IncludeDir)
	cfg.Logging.DecisionLog = anchor(base, cfg.Logging.DecisionLog)

	return &cfg, nil
}

// anchor makes a relative path absolute under base. Empty stays empty so
// optional paths keep their unset meaning.
func anchor(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
