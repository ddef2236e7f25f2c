package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the default configuration file name.
	DefaultConfigFile = ".calibreport"

	// EnvPrefix prefixes environment variables that override the config file,
	// e.g. CALIBREPORT_BIN_COUNT.
	EnvPrefix = "CALIBREPORT_"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .calibreport configuration file.
// Zero values mean "not set" and leave the default in place.
type File struct {
	BinCount    int    `yaml:"bin_count,omitempty"`
	BinStrategy string `yaml:"bin_strategy,omitempty"`
	Workers     int    `yaml:"workers,omitempty"`
	Format      string `yaml:"format,omitempty"`
	DBDir       string `yaml:"db_dir,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
}

// LoadConfigFile parses a configuration file.
// Unknown keys are rejected. If the file does not exist, it returns
// ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .calibreport in the current directory
// 3. Look for .calibreport in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (NewConfig)
//  2. the YAML file at path, if path is not empty
//  3. environment variables with the CALIBREPORT_ prefix
//
// CLI flags are applied by the caller on top of the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		// strict pass first: koanf ignores keys it cannot map
		if _, err := LoadConfigFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// CALIBREPORT_BIN_COUNT -> bin_count
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := NewConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.ConfigFilePath = path

	return cfg, nil
}
