// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the jobgate components and owns the process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/jobgate/internal/api"
	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/health"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/launcher"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/logstore"
	"github.com/ManuGH/jobgate/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// leaseWatchInterval is how often an adopted job's pid is checked.
	leaseWatchInterval = 2 * time.Second
	// longJobAge marks the gate degraded in readiness output.
	longJobAge = 24 * time.Hour
)

// Runtime is the fully wired daemon.
type Runtime struct {
	Config      config.AppConfig
	Gate        *admission.Gate
	Launcher    *launcher.Launcher
	Logs        *logstore.Store
	Coordinator *jobs.Coordinator
	Health      *health.Manager
	API         *api.Server
	Telemetry   *telemetry.Provider
}

// Bootstrap builds every component from cfg. It fails when a storage
// directory is unusable; missing profile binaries only degrade readiness.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Gate:      admission.NewGate(admission.NewLeaseFile(cfg.Storage.StateDir)),
		Launcher:  launcher.New(),
		Telemetry: tp,
		Logs: logstore.New(logstore.Config{
			Dir:          cfg.Storage.LogDir,
			DefaultTail:  cfg.Logs.DefaultTailBytes,
			MaxTail:      cfg.Logs.MaxTailBytes,
			IdleTimeout:  cfg.Logs.FollowIdleTimeout,
			PollInterval: cfg.Logs.FollowPollInterval,
		}),
	}

	rt.Coordinator = jobs.NewCoordinator(jobs.Config{
		Resolver:       jobs.NewResolver(cfg.Storage.OutputDir, cfg.Storage.LogDir),
		Gate:           rt.Gate,
		Launcher:       rt.Launcher,
		Logs:           rt.Logs,
		Profiles:       jobs.ProfilesFromConfig(cfg.Profiles),
		DefaultProfile: cfg.DefaultProfile,
	})

	rt.Health = health.NewManager(cfg.Version)
	rt.Health.RegisterChecker(health.NewDirChecker("output_dir", cfg.Storage.OutputDir))
	rt.Health.RegisterChecker(health.NewDirChecker("log_dir", cfg.Storage.LogDir))
	rt.Health.RegisterChecker(health.NewDirChecker("state_dir", cfg.Storage.StateDir))
	for _, name := range cfg.ProfileNames() {
		rt.Health.RegisterChecker(health.NewBinaryChecker("profile_"+name, cfg.Profiles[name].Bin))
	}
	rt.Health.RegisterChecker(health.NewGateChecker(rt.Gate, longJobAge))

	rt.API = api.New(cfg, api.Deps{
		Coordinator: rt.Coordinator,
		Logs:        rt.Logs,
		Health:      rt.Health,
	})

	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "daemon.bootstrapped").
		Strs("profiles", cfg.ProfileNames()).
		Str("default_profile", cfg.DefaultProfile).
		Str("output_dir", cfg.Storage.OutputDir).
		Str("log_dir", cfg.Storage.LogDir).
		Msg("components wired")
	return rt, nil
}

// NewManager builds the listener manager for rt and registers its hooks.
func (rt *Runtime) NewManager() (Manager, error) {
	mgr, err := NewManager(rt.Config.ServerConfig(), Deps{
		Logger:         log.WithComponent("daemon"),
		APIHandler:     rt.API.Handler(),
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    rt.Config.MetricsAddr,
	})
	if err != nil {
		return nil, err
	}
	mgr.RegisterShutdownHook("telemetry", rt.Telemetry.Shutdown)
	return mgr, nil
}
