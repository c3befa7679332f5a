// Package config loads the host configuration from a JSON file with
// environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults. The probe timeout is the hard wall-clock budget for one
// scanner child process.
const (
	DefaultSampleRate     = 44100.0
	DefaultPeriodFrames   = 512
	DefaultProbeTimeoutMs = 5000
)

// Config holds the host configuration.
type Config struct {
	PluginDirs     []string `json:"plugin_dirs"`
	SampleRate     float64  `json:"sample_rate"`
	PeriodFrames   int      `json:"period_frames"`
	ProbeTimeoutMs int      `json:"probe_timeout_ms"`
	Driver         string   `json:"driver"`
	BlacklistPath  string   `json:"blacklist_path"`
	ErrorLogPath   string   `json:"error_log_path"`
	Debug          bool     `json:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	dataDir := dataDir()
	return &Config{
		PluginDirs:     []string{},
		SampleRate:     DefaultSampleRate,
		PeriodFrames:   DefaultPeriodFrames,
		ProbeTimeoutMs: DefaultProbeTimeoutMs,
		Driver:         "default",
		BlacklistPath:  filepath.Join(dataDir, "blacklist.txt"),
		ErrorLogPath:   filepath.Join(dataDir, "host.log"),
	}
}

// Load reads the config file (if present) over the defaults, then
// applies environment overrides. Environment variables win over the
// file; command-line flags are applied above this layer.
func Load() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Path returns the config file location.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rackhost-config.json"
	}
	return filepath.Join(home, ".config", "rackhost", "config.json")
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rackhost")
}

func applyEnv(cfg *Config) {
	if dirs := os.Getenv("RACKHOST_PLUGIN_DIRS"); dirs != "" {
		cfg.PluginDirs = nil
		for _, d := range strings.Split(dirs, string(os.PathListSeparator)) {
			if d = strings.TrimSpace(d); d != "" {
				cfg.PluginDirs = append(cfg.PluginDirs, d)
			}
		}
	}

	if rate := os.Getenv("RACKHOST_SAMPLE_RATE"); rate != "" {
		if v, err := strconv.ParseFloat(rate, 64); err == nil && v > 0 {
			cfg.SampleRate = v
		}
	}

	if frames := os.Getenv("RACKHOST_PERIOD_FRAMES"); frames != "" {
		if v, err := strconv.Atoi(frames); err == nil && v > 0 {
			cfg.PeriodFrames = v
		}
	}

	if timeout := os.Getenv("RACKHOST_PROBE_TIMEOUT_MS"); timeout != "" {
		if v, err := strconv.Atoi(timeout); err == nil && v > 0 {
			cfg.ProbeTimeoutMs = v
		}
	}

	if driver := os.Getenv("RACKHOST_DRIVER"); driver != "" {
		cfg.Driver = driver
	}

	if os.Getenv("RACKHOST_DEBUG") == "true" {
		cfg.Debug = true
	}
}

// Validate clamps out-of-range values back to defaults.
func (c *Config) Validate() {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.PeriodFrames <= 0 {
		c.PeriodFrames = DefaultPeriodFrames
	}
	if c.ProbeTimeoutMs <= 0 {
		c.ProbeTimeoutMs = DefaultProbeTimeoutMs
	}
	if c.Driver == "" {
		c.Driver = "default"
	}
}
