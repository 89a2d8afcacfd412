// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the configuration file.
const EnvironmentVariable = "PIPESPY_CONFIG"

// LogFileName is the default log file name, created next to the module.
const LogFileName = "pipespy.log"

// Config is the master configuration for pipespy.
type Config struct {
	// Log configures the diagnostic log.
	Log LogConfig `yaml:"log"`

	// Capture configures the optional binary capture of pipe traffic.
	Capture CaptureConfig `yaml:"capture"`

	// Hooks configures which primitives are intercepted and how.
	Hooks HooksConfig `yaml:"hooks"`
}

// LogConfig configures the diagnostic log.
type LogConfig struct {
	// Path is the log file. Default: ${PIPESPY_DIR}/pipespy.log
	Path string `yaml:"path"`

	// Level is the minimum level written: trace, debug, info, warn or
	// error. Pipe writes are logged at debug and reads at info.
	// Default: debug
	Level string `yaml:"level"`

	// Format is json or text. Default: json
	Format string `yaml:"format"`
}

// CaptureConfig configures the binary capture file.
type CaptureConfig struct {
	// Path is the capture file. Empty disables capture.
	Path string `yaml:"path"`

	// Compression is none, lz4 or zstd. Default: zstd
	Compression string `yaml:"compression"`

	// MaxPayload truncates the bytes stored per record. The digest is
	// always computed over the full observed payload.
	// Default: 65536
	MaxPayload int `yaml:"max_payload"`
}

// HooksConfig configures hook installation.
type HooksConfig struct {
	// Module is the module whose exports are patched.
	// Default: kernel32.dll
	Module string `yaml:"module"`

	// PollInterval is how often a blocked readiness gate re-checks
	// the hook record. Default: 10ms
	PollInterval string `yaml:"poll_interval"`

	// DuplicateHandle enables the DuplicateHandle hook, which extends
	// classification to duplicated pipe handles. Default: false
	DuplicateHandle bool `yaml:"duplicate_handle"`
}

// Default returns the built-in configuration. Path fields still
// contain unexpanded ${PIPESPY_DIR} references.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Path:   filepath.Join("${PIPESPY_DIR}", LogFileName),
			Level:  "debug",
			Format: "json",
		},
		Capture: CaptureConfig{
			Path:        "",
			Compression: "zstd",
			MaxPayload:  64 * 1024,
		},
		Hooks: HooksConfig{
			Module:          "kernel32.dll",
			PollInterval:    "10ms",
			DuplicateHandle: false,
		},
	}
}

// Load loads configuration from the PIPESPY_CONFIG environment variable.
// There is no fallback: if the variable is unset, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your pipespy.yaml config file", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Paths are
// expanded against the directory containing the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		absolute = path
	}
	cfg.expandVariables(filepath.Dir(absolute))

	return cfg, nil
}

// ForModule returns the configuration for a module loaded from
// modulePath: the PIPESPY_CONFIG file when that variable is set, and
// otherwise the defaults with ${PIPESPY_DIR} set to the module's
// directory.
func ForModule(modulePath string) (*Config, error) {
	moduleDirectory := filepath.Dir(modulePath)

	if configPath := os.Getenv(EnvironmentVariable); configPath != "" {
		cfg := Default()
		if err := cfg.loadFile(configPath); err != nil {
			return nil, err
		}
		cfg.expandVariables(moduleDirectory)
		return cfg, nil
	}

	cfg := Default()
	cfg.expandVariables(moduleDirectory)
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables(moduleDirectory string) {
	vars := map[string]string{
		"PIPESPY_DIR": moduleDirectory,
		"HOME":        os.Getenv("HOME"),
	}

	c.Log.Path = expandVars(c.Log.Path, vars)
	c.Capture.Path = expandVars(c.Capture.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// PollEvery returns the parsed poll interval.
func (c *Config) PollEvery() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Hooks.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("hooks.poll_interval: %w", err)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("hooks.poll_interval must be positive, got %s", interval)
	}
	return interval, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Log.Path == "" {
		errs = append(errs, fmt.Errorf("log.path is required"))
	}

	levels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if !contains(levels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}

	formats := []string{"json", "text"}
	if !contains(formats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	compressions := []string{"none", "lz4", "zstd"}
	if !contains(compressions, c.Capture.Compression) {
		errs = append(errs, fmt.Errorf("capture.compression must be one of: %v", compressions))
	}

	if c.Capture.MaxPayload < 0 {
		errs = append(errs, fmt.Errorf("capture.max_payload must not be negative"))
	}

	if c.Hooks.Module == "" {
		errs = append(errs, fmt.Errorf("hooks.module is required"))
	}

	if _, err := c.PollEvery(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
