// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/rs/zerolog"
)

// LeaseRecoverer adopts a job left running by a previous daemon.
type LeaseRecoverer interface {
	RecoverLease(ctx context.Context, interval time.Duration) (<-chan struct{}, error)
}

// App owns the runtime lifecycle: lease recovery and the listeners.
type App struct {
	logger    zerolog.Logger
	manager   Manager
	recoverer LeaseRecoverer
}

// NewApp creates a new App orchestrator. recoverer may be nil.
func NewApp(manager Manager, recoverer LeaseRecoverer) *App {
	return &App{
		logger:    log.WithComponent("app"),
		manager:   manager,
		recoverer: recoverer,
	}
}

// Run recovers the gate lease, then serves until ctx is cancelled or a
// listener fails.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Recovery happens before the listeners accept submissions.
	if a.recoverer != nil {
		adopted, err := a.recoverer.RecoverLease(ctx, leaseWatchInterval)
		if err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "lease.recover_failed").Msg("discarded unreadable gate lease")
		}
		if adopted != nil {
			g.Go(func() error {
				select {
				case <-adopted:
					a.logger.Info().Str(log.FieldEvent, "lease.adopted_exited").Msg("adopted job exited, gate released")
				case <-ctx.Done():
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		return a.manager.Start(ctx)
	})

	return g.Wait()
}

// Run serves rt until ctx is done.
func Run(ctx context.Context, rt *Runtime) error {
	mgr, err := rt.NewManager()
	if err != nil {
		return err
	}
	return NewApp(mgr, rt.Coordinator).Run(ctx)
}
