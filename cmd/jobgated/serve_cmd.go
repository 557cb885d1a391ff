// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/daemon"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/version"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.ParseString(config.EnvPrefix+"CONFIG", ""), "path to config file (YAML)")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	log.Configure(log.Config{Level: "info", Service: "jobgate", Version: version.Version})

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		return err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: version.Version})

	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "daemon.starting").
		Str("commit", version.Commit).
		Str("listen", cfg.Server.ListenAddr).
		Strs("profiles", cfg.ProfileNames()).
		Msg("starting jobgate")

	rt, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	if err := daemon.Run(ctx, rt); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("jobgate stopped")
	return nil
}
