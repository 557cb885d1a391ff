// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"

	"github.com/ManuGH/jobgate/internal/validate"
)

// Validate checks a resolved configuration. All problems are reported together.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", err.Error(), cfg.LogLevel)
	}

	v.ListenAddr("Server.ListenAddr", cfg.Server.ListenAddr)
	if cfg.MetricsAddr != "" {
		v.ListenAddr("MetricsAddr", cfg.MetricsAddr)
	}
	v.NonNegative("Server.ReadTimeout", int64(cfg.Server.ReadTimeout))
	v.NonNegative("Server.WriteTimeout", int64(cfg.Server.WriteTimeout))
	v.NonNegative("Server.IdleTimeout", int64(cfg.Server.IdleTimeout))
	v.Positive("Server.MaxHeaderBytes", cfg.Server.MaxHeaderBytes)
	v.Positive("Server.ShutdownTimeout", int(cfg.Server.ShutdownTimeout.Milliseconds()))

	v.NotEmpty("Storage.OutputDir", cfg.Storage.OutputDir)
	v.NotEmpty("Storage.LogDir", cfg.Storage.LogDir)
	v.NotEmpty("Storage.StateDir", cfg.Storage.StateDir)

	v.Positive("Logs.DefaultTailBytes", cfg.Logs.DefaultTailBytes)
	v.Positive("Logs.MaxTailBytes", cfg.Logs.MaxTailBytes)
	if cfg.Logs.DefaultTailBytes > cfg.Logs.MaxTailBytes {
		v.AddError("Logs.DefaultTailBytes", "must not exceed Logs.MaxTailBytes", cfg.Logs.DefaultTailBytes)
	}
	v.Positive("Logs.FollowIdleTimeout", int(cfg.Logs.FollowIdleTimeout.Milliseconds()))
	v.Positive("Logs.FollowPollInterval", int(cfg.Logs.FollowPollInterval.Milliseconds()))

	if cfg.RateLimit.Enabled {
		v.Positive("RateLimit.RequestsPerMinute", cfg.RateLimit.RequestsPerMinute)
	}

	if cfg.Tracing.Enabled {
		if _, err := validate.ParseExporter(cfg.Tracing.Exporter); err != nil {
			v.AddError("Tracing.Exporter", err.Error(), cfg.Tracing.Exporter)
		}
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			v.AddError("Tracing.SamplingRate", "must be between 0.0 and 1.0", cfg.Tracing.SamplingRate)
		}
	}

	if len(cfg.Profiles) == 0 {
		v.AddError("Profiles", "at least one profile is required", nil)
	}
	for _, name := range cfg.ProfileNames() {
		validateProfile(v, name, cfg.Profiles[name])
	}
	if _, ok := cfg.Profiles[cfg.DefaultProfile]; !ok {
		v.AddError("DefaultProfile", ErrUnknownDefaultProfile.Error(), cfg.DefaultProfile)
	}

	return v.Err()
}

func validateProfile(v *validate.Validator, name string, p ProfileConfig) {
	field := fmt.Sprintf("Profiles[%s]", name)
	v.NotEmpty(field+".Bin", p.Bin)

	var hasInput, hasOutput bool
	for _, arg := range p.Args {
		hasInput = hasInput || strings.Contains(arg, "{input}")
		hasOutput = hasOutput || strings.Contains(arg, "{output}")
	}
	if !hasInput {
		v.AddError(field+".Args", "must reference {input}", p.Args)
	}
	if !hasOutput {
		v.AddError(field+".Args", "must reference {output}", p.Args)
	}
	for param := range p.Parameters {
		if param == "" || strings.HasPrefix(param, "-") || strings.ContainsAny(param, " \t=") {
			v.AddError(field+".Parameters", "invalid parameter name", param)
		}
	}
}
