// Package config provides file-based configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone names resolve without system zoneinfo

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Monitored log
	Monitor MonitorConfig `yaml:"monitor" toml:"monitor"`

	// Rendered artifact
	Output OutputConfig `yaml:"output" toml:"output"`

	// Timeline coverage
	Timeline TimelineConfig `yaml:"timeline" toml:"timeline"`

	// File watching
	Watch WatchConfig `yaml:"watch" toml:"watch"`

	// HTTP status server
	Server ServerConfig `yaml:"server" toml:"server"`

	// Run history
	History HistoryConfig `yaml:"history" toml:"history"`

	// Daily availability summary
	Summary SummaryConfig `yaml:"summary" toml:"summary"`
}

// MonitorConfig names the connectivity log and its display zone
type MonitorConfig struct {
	LogFile  string `yaml:"log_file" toml:"log_file"`
	Timezone string `yaml:"timezone" toml:"timezone"`
}

// OutputConfig contains chart output settings
type OutputConfig struct {
	Directory       string  `yaml:"directory" toml:"directory"`
	ImageName       string  `yaml:"image_name" toml:"image_name"`
	Mode            string  `yaml:"mode" toml:"mode"` // "daily" or "strip"
	Title           string  `yaml:"title" toml:"title"`
	WidthInches     float64 `yaml:"width_inches" toml:"width_inches"`
	RowHeightInches float64 `yaml:"row_height_inches" toml:"row_height_inches"`
}

// TimelineConfig controls which days are drawn
type TimelineConfig struct {
	ThroughToday bool `yaml:"through_today" toml:"through_today"`
}

// WatchConfig contains re-render trigger settings
type WatchConfig struct {
	// RefreshIntervalSeconds re-renders periodically so "now" keeps moving; 0 disables.
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds" toml:"refresh_interval_seconds"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Port        int    `yaml:"port" toml:"port"`
	BindAddress string `yaml:"bind_address" toml:"bind_address"`
	EnableCORS  bool   `yaml:"enable_cors" toml:"enable_cors"`
	// EnableRequestLogging logs every HTTP request except health checks
	EnableRequestLogging bool `yaml:"enable_request_logging" toml:"enable_request_logging"`
	ReadTimeout          int  `yaml:"read_timeout_seconds" toml:"read_timeout_seconds"`
	WriteTimeout         int  `yaml:"write_timeout_seconds" toml:"write_timeout_seconds"`
	IdleTimeout          int  `yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds"`
}

// HistoryConfig bounds the in-memory run history
type HistoryConfig struct {
	MaxRuns                int `yaml:"max_runs" toml:"max_runs"`
	RetentionMinutes       int `yaml:"retention_minutes" toml:"retention_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes" toml:"cleanup_interval_minutes"`
}

// SummaryConfig toggles the per-day availability report
type SummaryConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Monitor: MonitorConfig{
			LogFile:  "connection_log.txt",
			Timezone: "America/Denver",
		},
		Output: OutputConfig{
			Directory:       ".",
			ImageName:       "netcheck_timeline.png",
			Mode:            "daily",
			Title:           "Internet Uptime vs. Downtime Timeline",
			WidthInches:     12,
			RowHeightInches: 2,
		},
		Timeline: TimelineConfig{
			ThroughToday: true,
		},
		Watch: WatchConfig{
			RefreshIntervalSeconds: 60,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         8089,
			BindAddress:  "127.0.0.1",
			EnableCORS:   false,
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
		},
		History: HistoryConfig{
			MaxRuns:                50,
			RetentionMinutes:       24 * 60,
			CleanupIntervalMinutes: 5,
		},
		Summary: SummaryConfig{
			Enabled: true,
		},
	}
}

// LoadConfig loads configuration from a YAML (or .toml) file. A missing file is
// created with defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isTOML(configPath) {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to a file, YAML unless the name ends in .toml
func (c *AppConfig) Save(configPath string) error {
	var (
		output []byte
		err    error
	)
	if isTOML(configPath) {
		output, err = toml.Marshal(c)
	} else {
		output, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# linkwatch configuration\n# This file is auto-generated on first run\n\n"
	content := append([]byte(header), output...)
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Monitor.LogFile) == "" {
		return fmt.Errorf("monitor.log_file is empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Output.Mode {
	case "", "daily", "strip":
	default:
		return fmt.Errorf("output.mode %q: must be daily or strip", c.Output.Mode)
	}
	if strings.TrimSpace(c.Output.ImageName) == "" {
		return fmt.Errorf("output.image_name is empty")
	}
	if c.Watch.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("watch.refresh_interval_seconds must not be negative")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if logFile := os.Getenv("LINKWATCH_LOG_FILE"); logFile != "" {
		c.Monitor.LogFile = logFile
	}

	if tz := os.Getenv("LINKWATCH_TIMEZONE"); tz != "" {
		c.Monitor.Timezone = tz
	}

	if dir := os.Getenv("LINKWATCH_OUTPUT_DIR"); dir != "" {
		c.Output.Directory = dir
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if abs, err := filepath.Abs(configDir); err == nil {
		configDir = abs
	}
	if !filepath.IsAbs(c.Monitor.LogFile) {
		c.Monitor.LogFile = filepath.Join(configDir, c.Monitor.LogFile)
	}
	if !filepath.IsAbs(c.Output.Directory) {
		c.Output.Directory = filepath.Join(configDir, c.Output.Directory)
	}
}

// Location resolves the display zone
func (c *AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Monitor.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("monitor.timezone %q: %w", name, err)
	}
	return loc, nil
}

// GetLogPath returns the absolute path of the monitored log
func (c *AppConfig) GetLogPath() string {
	return c.Monitor.LogFile
}

// GetImagePath returns the absolute path of the rendered chart
func (c *AppConfig) GetImagePath() string {
	return filepath.Join(c.Output.Directory, c.Output.ImageName)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// RefreshInterval returns the periodic re-render interval, zero when disabled
func (c *AppConfig) RefreshInterval() time.Duration {
	return time.Duration(c.Watch.RefreshIntervalSeconds) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Output.Directory,
		filepath.Dir(c.Monitor.LogFile),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
