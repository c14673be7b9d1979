package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/framepipe/internal/bytesize"
)

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "DEBUG"
  format: "json"

engine:
  chunk_size: 8Ki
  frame_size: 64Ki
  drain_timeout: 30s

metrics:
  enabled: true
  listen_address: "127.0.0.1:9999"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format json, got %q", cfg.Logging.Format)
	}
	if cfg.Engine.ChunkSize != 8*bytesize.KiB {
		t.Errorf("Expected chunk_size 8Ki, got %v", cfg.Engine.ChunkSize)
	}
	if cfg.Engine.FrameSize != 64*bytesize.KiB {
		t.Errorf("Expected frame_size 64Ki, got %v", cfg.Engine.FrameSize)
	}
	if cfg.Engine.DrainTimeout != 30*time.Second {
		t.Errorf("Expected drain_timeout 30s, got %v", cfg.Engine.DrainTimeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected metrics enabled")
	}
	if cfg.Metrics.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("Expected listen address 127.0.0.1:9999, got %q", cfg.Metrics.ListenAddress)
	}

	// Defaults applied for unset fields
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output stderr, got %q", cfg.Logging.Output)
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default telemetry endpoint, got %q", cfg.Telemetry.Endpoint)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config so the CLI
	// works out of the box.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	if cfg.Engine.ChunkSize.Int() != 4096 {
		t.Errorf("Expected default chunk_size 4096, got %d", cfg.Engine.ChunkSize.Int())
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level INFO, got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_NumericByteSize(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Plain numbers are accepted alongside the "4Ki" form.
	configContent := `
engine:
  chunk_size: 4096
  frame_size: 65536
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Engine.ChunkSize.Int() != 4096 {
		t.Errorf("Expected chunk_size 4096, got %d", cfg.Engine.ChunkSize.Int())
	}
	if cfg.Engine.FrameSize.Int() != 65536 {
		t.Errorf("Expected frame_size 65536, got %d", cfg.Engine.FrameSize.Int())
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "VERBOSE"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for bogus log level, got nil")
	}
}

func TestLoad_SampleRateBounds(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
telemetry:
  sample_rate: 1.5
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for sample_rate > 1, got nil")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	original := GetDefaultConfig()
	original.Logging.Level = "DEBUG"
	original.Engine.ChunkSize = 8 * bytesize.KiB

	if err := SaveConfig(original, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected level DEBUG after round trip, got %q", loaded.Logging.Level)
	}
	if loaded.Engine.ChunkSize != 8*bytesize.KiB {
		t.Errorf("Expected chunk_size 8Ki after round trip, got %v", loaded.Engine.ChunkSize)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "WARN"
	cfg.Engine.ChunkSize = 123

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected explicit level preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Engine.ChunkSize != 123 {
		t.Errorf("Expected explicit chunk_size preserved, got %v", cfg.Engine.ChunkSize)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format text, got %q", cfg.Logging.Format)
	}
}
