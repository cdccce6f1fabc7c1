// Package config loads harness settings from a file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvBase        = "EXPECTER_BASE"
	EnvTerm        = "EXPECTER_TERM"
	EnvTimeout     = "EXPECTER_TIMEOUT"
	EnvStartDelay  = "EXPECTER_START_DELAY"
	EnvLogLevel    = "EXPECTER_LOG_LEVEL"
	EnvLogFormat   = "EXPECTER_LOG_FORMAT"
	EnvMetricsFile = "EXPECTER_METRICS_FILE"
	EnvConfig      = "EXPECTER_CONFIG"
)

// Config holds runtime parameters for a harness run. Durations are kept as
// strings so every file format decodes them the same way; Validate parses
// them.
type Config struct {
	Term           string   `json:"term" yaml:"term" toml:"term"`
	Dir            string   `json:"dir" yaml:"dir" toml:"dir"`
	Env            []string `json:"env" yaml:"env" toml:"env"`
	Timeout        string   `json:"timeout" yaml:"timeout" toml:"timeout"`
	StartDelay     string   `json:"start_delay" yaml:"start_delay" toml:"start_delay"`
	LineTerminator string   `json:"line_terminator" yaml:"line_terminator" toml:"line_terminator"`
	Cols           int      `json:"cols" yaml:"cols" toml:"cols"`
	Rows           int      `json:"rows" yaml:"rows" toml:"rows"`
	BaseDir        string   `json:"base_dir" yaml:"base_dir" toml:"base_dir"`
	LogLevel       string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat      string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	MetricsFile    string   `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Term:           "make term",
		Timeout:        "10s",
		StartDelay:     "0s",
		LineTerminator: "\n",
		Cols:           80,
		Rows:           24,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads a configuration file over the defaults.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := Decode(path, b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode unmarshals data into v using the format implied by path's
// extension.
func Decode(path string, data []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".json":
		return json.Unmarshal(data, v)
	case ".toml":
		return toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported extension: %q", ext)
	}
}

// ApplyEnv overlays EXPECTER_* variables returned by lookup. Unset or empty
// variables leave the current value alone.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvBase, &c.BaseDir)
	str(EnvTerm, &c.Term)
	str(EnvTimeout, &c.Timeout)
	str(EnvStartDelay, &c.StartDelay)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLogFormat, &c.LogFormat)
	str(EnvMetricsFile, &c.MetricsFile)
}

// TimeoutDuration parses Timeout. A bare number is taken as seconds, the way
// RIOT_TEST_TIMEOUT style variables are usually written.
func (c Config) TimeoutDuration() (time.Duration, error) {
	return ParseDuration("timeout", c.Timeout)
}

// StartDelayDuration parses StartDelay.
func (c Config) StartDelayDuration() (time.Duration, error) {
	return ParseDuration("start_delay", c.StartDelay)
}

// Validate checks every field that can be wrong independently of the others.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Term) == "" {
		return fmt.Errorf("term: empty console command")
	}
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout: must be positive, got %v", timeout)
	}
	delay, err := c.StartDelayDuration()
	if err != nil {
		return err
	}
	if delay < 0 {
		return fmt.Errorf("start_delay: must not be negative, got %v", delay)
	}
	if c.Cols < 0 || c.Rows < 0 || c.Cols > 0xffff || c.Rows > 0xffff {
		return fmt.Errorf("size: %dx%d out of range", c.Cols, c.Rows)
	}
	return nil
}

// ParseDuration parses s as a Go duration or a bare number of seconds. An
// empty string is zero. field prefixes the error.
func ParseDuration(field, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
