package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LINKWATCH_LOG_FILE", "")
	t.Setenv("LINKWATCH_TIMEZONE", "")
	t.Setenv("LINKWATCH_OUTPUT_DIR", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected default config to be written: %v", err)
	}
	if cfg.Monitor.LogFile != filepath.Join(dir, "connection_log.txt") {
		t.Errorf("Expected log path resolved against config dir, got %s", cfg.Monitor.LogFile)
	}
	if cfg.GetImagePath() != filepath.Join(dir, "netcheck_timeline.png") {
		t.Errorf("Unexpected image path %s", cfg.GetImagePath())
	}
	if cfg.RefreshInterval() != time.Minute {
		t.Errorf("Expected 1m refresh, got %v", cfg.RefreshInterval())
	}

	// Reloading the written file gives the same values.
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if again.Output.Mode != "daily" || again.Server.Port != 8089 {
		t.Errorf("Reloaded config differs: %+v", again)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LINKWATCH_LOG_FILE", "")
	t.Setenv("LINKWATCH_TIMEZONE", "")
	t.Setenv("LINKWATCH_OUTPUT_DIR", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
monitor:
  log_file: /var/log/netcheck/connection_log.txt
  timezone: UTC
output:
  directory: out
  mode: strip
watch:
  refresh_interval_seconds: 0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Monitor.LogFile != "/var/log/netcheck/connection_log.txt" {
		t.Errorf("Absolute log path should be kept, got %s", cfg.Monitor.LogFile)
	}
	if cfg.Output.Directory != filepath.Join(dir, "out") {
		t.Errorf("Expected relative output dir resolved, got %s", cfg.Output.Directory)
	}
	if cfg.Output.Mode != "strip" {
		t.Errorf("Expected strip mode, got %s", cfg.Output.Mode)
	}
	// Unset keys keep their defaults.
	if cfg.Output.ImageName != "netcheck_timeline.png" {
		t.Errorf("Expected default image name, got %s", cfg.Output.ImageName)
	}
	if cfg.RefreshInterval() != 0 {
		t.Errorf("Expected refresh disabled, got %v", cfg.RefreshInterval())
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Expected UTC location, got %v (%v)", loc, err)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LINKWATCH_LOG_FILE", "")
	t.Setenv("LINKWATCH_TIMEZONE", "")
	t.Setenv("LINKWATCH_OUTPUT_DIR", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "linkwatch.toml")
	content := `
[monitor]
timezone = "UTC"

[server]
enabled = false
port = 9100

[timeline]
through_today = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Enabled {
		t.Error("Expected server disabled")
	}
	if cfg.GetServerAddr() != "127.0.0.1:9100" {
		t.Errorf("Unexpected server addr %s", cfg.GetServerAddr())
	}
	if cfg.Timeline.ThroughToday {
		t.Error("Expected through_today false")
	}
}

func TestSave_TOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "linkwatch.toml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[monitor]") {
		t.Errorf("Expected TOML table header, got:\n%s", data)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LINKWATCH_LOG_FILE", "/tmp/other.log")
	t.Setenv("LINKWATCH_TIMEZONE", "UTC")
	t.Setenv("LINKWATCH_OUTPUT_DIR", "/tmp/charts")

	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.LogFile != "/tmp/other.log" {
		t.Errorf("Unexpected log file %s", cfg.Monitor.LogFile)
	}
	if cfg.Monitor.Timezone != "UTC" {
		t.Errorf("Unexpected timezone %s", cfg.Monitor.Timezone)
	}
	if cfg.Output.Directory != "/tmp/charts" {
		t.Errorf("Unexpected output dir %s", cfg.Output.Directory)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{"defaults", func(c *AppConfig) {}, false},
		{"bad mode", func(c *AppConfig) { c.Output.Mode = "weekly" }, true},
		{"bad zone", func(c *AppConfig) { c.Monitor.Timezone = "Mars/Olympus" }, true},
		{"empty log", func(c *AppConfig) { c.Monitor.LogFile = " " }, true},
		{"empty image", func(c *AppConfig) { c.Output.ImageName = "" }, true},
		{"negative refresh", func(c *AppConfig) { c.Watch.RefreshIntervalSeconds = -1 }, true},
		{"local zone", func(c *AppConfig) { c.Monitor.Timezone = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Output.Directory = filepath.Join(dir, "charts")
	cfg.Monitor.LogFile = filepath.Join(dir, "logs", "connection_log.txt")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, d := range []string{cfg.Output.Directory, filepath.Join(dir, "logs")} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("Expected directory %s", d)
		}
	}
}
