package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	referenceInside  = "reference-inside"
	referenceOutside = "reference-outside"
)

// Config holds the settings shared by all commands. Command line flags
// override the matching values.
type Config struct {
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`
	InsideModel  string `json:"inside_model"`
	OutsideModel string `json:"outside_model"`
	Stringency   int    `json:"stringency"`
	RandomLength int    `json:"random_length"`
	Workers      int    `json:"workers"`
	Verbose      bool   `json:"verbose"`
}

// DefaultConfig creates a configuration with default values. The default
// models are the built-in chromosome 22 CpG island tables.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		DatabasePath: "./data/islandscan.db",
		InsideModel:  referenceInside,
		OutsideModel: referenceOutside,
		Stringency:   20,
		RandomLength: 1000,
		Workers:      0,
		Verbose:      false,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string, warn io.Writer) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "." {
				_ = os.MkdirAll(dir, 0755)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Commands still run with the defaults.
				fmt.Fprintf(warn, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	switch {
	case c.Stringency < 0:
		return fmt.Errorf("stringency must not be negative, got %d", c.Stringency)
	case c.RandomLength < 1:
		return fmt.Errorf("random_length must be positive, got %d", c.RandomLength)
	case c.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	case c.DatabasePath == "":
		return fmt.Errorf("database_path is required")
	}
	return nil
}

// parseLogLevel maps a config level name to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
