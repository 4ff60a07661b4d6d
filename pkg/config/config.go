// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration
type Config struct {
	Version  string         `json:"version" yaml:"version"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// EngineConfig configures the engine pool
type EngineConfig struct {
	BinaryPath string   `json:"binaryPath" yaml:"binaryPath"`
	Args       []string `json:"args,omitempty" yaml:"args,omitempty"`
	PoolSize   int      `json:"poolSize" yaml:"poolSize"`
	Threads    int      `json:"threads" yaml:"threads"`
	HashMB     int      `json:"hashMb" yaml:"hashMb"`
}

// AnalysisConfig bounds request parameters
type AnalysisConfig struct {
	MaxTimeLimitMs int `json:"maxTimeLimitMs" yaml:"maxTimeLimitMs"`
	StopGraceMs    int `json:"stopGraceMs" yaml:"stopGraceMs"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}

// MaxTimeLimit returns the request time-limit bound as a duration
func (a AnalysisConfig) MaxTimeLimit() time.Duration {
	return time.Duration(a.MaxTimeLimitMs) * time.Millisecond
}

// StopGrace returns the hard deadline past a cooperative stop
func (a AnalysisConfig) StopGrace() time.Duration {
	return time.Duration(a.StopGraceMs) * time.Millisecond
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Engine: EngineConfig{
			BinaryPath: "stockfish",
			PoolSize:   2,
			Threads:    1,
			HashMB:     64,
		},
		Analysis: AnalysisConfig{
			MaxTimeLimitMs: 30000,
			StopGraceMs:    3000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a file, trying JSON first and YAML as
// a fallback.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(data, &cfg); err == nil {
		return validate(&cfg)
	}

	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return validate(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

func validate(cfg *Config) (*Config, error) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Version != "1.0" {
		return nil, fmt.Errorf("unsupported config version: %s", cfg.Version)
	}

	defaults := Default()
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	if cfg.Engine.BinaryPath == "" {
		cfg.Engine.BinaryPath = defaults.Engine.BinaryPath
	}
	if cfg.Engine.PoolSize == 0 {
		cfg.Engine.PoolSize = defaults.Engine.PoolSize
	}
	if cfg.Engine.PoolSize < 1 || cfg.Engine.PoolSize > 64 {
		return nil, fmt.Errorf("invalid pool size: %d", cfg.Engine.PoolSize)
	}
	if cfg.Engine.Threads == 0 {
		cfg.Engine.Threads = defaults.Engine.Threads
	}
	if cfg.Engine.HashMB == 0 {
		cfg.Engine.HashMB = defaults.Engine.HashMB
	}

	if cfg.Analysis.MaxTimeLimitMs == 0 {
		cfg.Analysis.MaxTimeLimitMs = defaults.Analysis.MaxTimeLimitMs
	}
	if cfg.Analysis.StopGraceMs == 0 {
		cfg.Analysis.StopGraceMs = defaults.Analysis.StopGraceMs
	}
	if cfg.Analysis.MaxTimeLimitMs < 0 || cfg.Analysis.StopGraceMs < 0 {
		return nil, fmt.Errorf("time limits must be non-negative")
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	return cfg, nil
}
