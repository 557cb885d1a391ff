// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig from defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty path skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load applies defaults, then the file, then JOBGATE_* overrides and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("load config file %s: %w", l.configPath, err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// loadFile decodes the YAML file strictly onto cfg. Keys absent from the
// file keep their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if isUnknownFieldError(err) {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}

	cfg.Storage.OutputDir = os.ExpandEnv(cfg.Storage.OutputDir)
	cfg.Storage.LogDir = os.ExpandEnv(cfg.Storage.LogDir)
	cfg.Storage.StateDir = os.ExpandEnv(cfg.Storage.StateDir)
	return nil
}

// mergeEnv applies JOBGATE_* overrides. Environment wins over the file.
func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = ParseString(EnvPrefix+"LOG_SERVICE", cfg.LogService)

	cfg.Server.ListenAddr = ParseString(EnvPrefix+"LISTEN", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = ParseDuration(EnvPrefix+"SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration(EnvPrefix+"SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = ParseDuration(EnvPrefix+"SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.MaxHeaderBytes = ParseInt(EnvPrefix+"SERVER_MAX_HEADER_BYTES", cfg.Server.MaxHeaderBytes)
	cfg.Server.ShutdownTimeout = ParseDuration(EnvPrefix+"SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = ParseList(EnvPrefix+"CORS_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.ListenAddr = BindListenAddr(cfg.Server.ListenAddr, ParseString(EnvPrefix+"BIND", ""))
	cfg.MetricsAddr = ParseString(EnvPrefix+"METRICS_LISTEN", cfg.MetricsAddr)

	cfg.Storage.OutputDir = ParseString(EnvPrefix+"OUTPUT_DIR", cfg.Storage.OutputDir)
	cfg.Storage.LogDir = ParseString(EnvPrefix+"LOG_DIR", cfg.Storage.LogDir)
	cfg.Storage.StateDir = ParseString(EnvPrefix+"STATE_DIR", cfg.Storage.StateDir)

	cfg.Logs.DefaultTailBytes = ParseInt(EnvPrefix+"LOG_TAIL_BYTES", cfg.Logs.DefaultTailBytes)
	cfg.Logs.MaxTailBytes = ParseInt(EnvPrefix+"LOG_MAX_TAIL_BYTES", cfg.Logs.MaxTailBytes)
	cfg.Logs.FollowIdleTimeout = ParseDuration(EnvPrefix+"LOG_FOLLOW_IDLE_TIMEOUT", cfg.Logs.FollowIdleTimeout)
	cfg.Logs.FollowPollInterval = ParseDuration(EnvPrefix+"LOG_FOLLOW_POLL_INTERVAL", cfg.Logs.FollowPollInterval)

	cfg.RateLimit.Enabled = ParseBool(EnvPrefix+"RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = ParseInt(EnvPrefix+"RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)

	cfg.Tracing.Enabled = ParseBool(EnvPrefix+"TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString(EnvPrefix+"TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString(EnvPrefix+"TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat(EnvPrefix+"TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = ParseString(EnvPrefix+"TRACING_ENVIRONMENT", cfg.Tracing.Environment)

	cfg.DefaultProfile = ParseString(EnvPrefix+"DEFAULT_PROFILE", cfg.DefaultProfile)

	// JOBGATE_PYTHON swaps the interpreter of every profile still using the built-in one.
	if python := ParseString(EnvPrefix+"PYTHON", ""); python != "" {
		for name, p := range cfg.Profiles {
			if p.Bin == "python3" {
				p.Bin = python
				cfg.Profiles[name] = p
			}
		}
	}
}

func isUnknownFieldError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "field") && strings.Contains(msg, "not found")
}
