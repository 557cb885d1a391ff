// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/validate"
)

// PerformStartupChecks fails fast when a storage directory cannot be created
// or written. Missing profile binaries only warn: readiness reports them.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup")

	v := validate.New()
	v.WritableDirectory("Storage.OutputDir", cfg.Storage.OutputDir, false)
	v.WritableDirectory("Storage.LogDir", cfg.Storage.LogDir, false)
	v.WritableDirectory("Storage.StateDir", cfg.Storage.StateDir, false)
	if err := v.Err(); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	for _, name := range cfg.ProfileNames() {
		p := cfg.Profiles[name]
		if res := NewBinaryChecker(name, p.Bin).Check(context.Background()); res.Status != StatusHealthy {
			logger.Warn().
				Str(log.FieldEvent, "startup.binary_missing").
				Str(log.FieldProfile, name).
				Str("bin", p.Bin).
				Msg("profile command not found")
		}
	}

	logger.Info().Str(log.FieldEvent, "startup.checks_passed").Msg("startup checks passed")
	return nil
}
