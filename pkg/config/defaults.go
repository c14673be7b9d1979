package config

import (
	"github.com/marmos91/framepipe/internal/bytesize"
	"github.com/marmos91/framepipe/pkg/bufpool"
	"github.com/marmos91/framepipe/pkg/engine"
)

// ApplyDefaults fills in zero values with working defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = "127.0.0.1:9290"
	}

	if cfg.Engine.ChunkSize == 0 {
		cfg.Engine.ChunkSize = bytesize.ByteSize(engine.DefaultChunkSize)
	}
	if cfg.Engine.FrameSize == 0 {
		cfg.Engine.FrameSize = bytesize.ByteSize(bufpool.DefaultFrameSize)
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
