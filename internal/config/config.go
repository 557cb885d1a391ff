// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"sort"
	"time"
)

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`

	Server      ServerSettings `yaml:"server"`
	MetricsAddr string         `yaml:"metricsAddr"`

	Storage   StorageConfig   `yaml:"storage"`
	Logs      LogsConfig      `yaml:"logs"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// DefaultProfile is used when a submission does not name a profile.
	DefaultProfile string                   `yaml:"defaultProfile"`
	Profiles       map[string]ProfileConfig `yaml:"profiles"`
}

// ServerSettings holds the YAML view of the HTTP server settings.
type ServerSettings struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxHeaderBytes  int           `yaml:"maxHeaderBytes"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins enables CORS for the listed origins. Empty disables it.
	CORSOrigins []string `yaml:"corsOrigins,omitempty"`
}

// StorageConfig names the directories jobgate owns.
type StorageConfig struct {
	OutputDir string `yaml:"outputDir"`
	LogDir    string `yaml:"logDir"`
	// StateDir holds the gate lease file.
	StateDir string `yaml:"stateDir"`
}

// LogsConfig controls tail reads and follow streams.
type LogsConfig struct {
	DefaultTailBytes   int           `yaml:"defaultTailBytes"`
	MaxTailBytes       int           `yaml:"maxTailBytes"`
	FollowIdleTimeout  time.Duration `yaml:"followIdleTimeout"`
	FollowPollInterval time.Duration `yaml:"followPollInterval"`
}

// RateLimitConfig configures the per-IP API limiter.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// ProfileConfig describes how a job turns into an argv for one external command.
type ProfileConfig struct {
	Bin string `yaml:"bin"`
	// Args may contain the placeholders {input}, {output} and {id}.
	Args []string `yaml:"args"`
	// Parameters lists the accepted parameter names with their default values.
	// They are forwarded as "--<name> <value>" in name order.
	Parameters map[string]string `yaml:"parameters"`
	Dir        string            `yaml:"dir"`
	Env        []string          `yaml:"env"`
	// InputKinds optionally restricts accepted input extensions.
	InputKinds []string `yaml:"inputKinds"`
}

const (
	defaultListenAddr      = ":8000"
	defaultMetricsAddr     = ":8088"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 0 // 0 = no timeout (log follow streams)
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20
	defaultShutdownTimeout = 15 * time.Second

	// DefaultTailBytes matches the historical 5000 character log preview.
	DefaultTailBytes  = 5000
	defaultMaxTail    = 1 << 20
	defaultFollowIdle = 60 * time.Second
	defaultFollowPoll = 500 * time.Millisecond

	ProfileChromaKey    = "chromakey"
	ProfileInfiniteTalk = "infinitetalk"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "jobgate",
		Server: ServerSettings{
			ListenAddr:      defaultListenAddr,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			MaxHeaderBytes:  defaultMaxHeaderBytes,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		MetricsAddr: defaultMetricsAddr,
		Storage: StorageConfig{
			OutputDir: "output",
			LogDir:    "logs",
			StateDir:  "state",
		},
		Logs: LogsConfig{
			DefaultTailBytes:   DefaultTailBytes,
			MaxTailBytes:       defaultMaxTail,
			FollowIdleTimeout:  defaultFollowIdle,
			FollowPollInterval: defaultFollowPoll,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		DefaultProfile: ProfileChromaKey,
		Profiles:       DefaultProfiles("python3"),
	}
}

// DefaultProfiles returns the two built-in command profiles, invoking scripts with python.
func DefaultProfiles(python string) map[string]ProfileConfig {
	return map[string]ProfileConfig{
		ProfileChromaKey: {
			Bin:  python,
			Args: []string{"remove_green_background.py", "--input", "{input}", "--output", "{output}"},
			Parameters: map[string]string{
				"similarity":     "0.35",
				"blend":          "0.1",
				"despill-mix":    "0.9",
				"despill-expand": "0.1",
			},
			InputKinds: []string{"mp4", "mov", "mkv", "avi", "webm"},
		},
		ProfileInfiniteTalk: {
			Bin: python,
			Args: []string{
				"generate_infinitetalk.py",
				"--ckpt_dir", "weights/Wan2.1-I2V-14B-480P",
				"--wav2vec_dir", "weights/chinese-wav2vec2-base",
				"--infinitetalk_dir", "weights/InfiniteTalk/single/infinitetalk.safetensors",
				"--input_json", "{input}",
				"--save_file", "{output}",
			},
			Parameters: map[string]string{
				"size":                        "infinitetalk-480",
				"mode":                        "streaming",
				"motion_frame":                "9",
				"sample_steps":                "8",
				"sample_shift":                "2",
				"sample_text_guide_scale":     "1.0",
				"sample_audio_guide_scale":    "2.0",
				"num_persistent_param_in_dit": "0",
			},
			InputKinds: []string{"json"},
		},
	}
}

// ProfileNames returns the configured profile names in sorted order.
func (c AppConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
