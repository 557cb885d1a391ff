// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/metrics"
	"github.com/ManuGH/jobgate/internal/procgroup"
	"github.com/google/renameio/v2"
)

// LeaseFileName is the name of the lease inside the state directory.
const LeaseFileName = "gate.lease.json"

// LeaseFile persists the gate holder so a restarted daemon keeps honouring a
// job whose process outlived the previous daemon.
type LeaseFile struct {
	path string
}

// NewLeaseFile returns a lease stored in stateDir.
func NewLeaseFile(stateDir string) *LeaseFile {
	return &LeaseFile{path: filepath.Join(stateDir, LeaseFileName)}
}

// Path returns the lease file location.
func (l *LeaseFile) Path() string {
	return l.path
}

// Write replaces the lease atomically (fsync + rename).
func (l *LeaseFile) Write(h Holder) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gate lease: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(l.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending gate lease: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write gate lease: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace gate lease: %w", err)
	}
	return nil
}

// Read loads the lease. ok is false when no lease exists.
func (l *LeaseFile) Read() (h Holder, ok bool, err error) {
	// #nosec G304 -- path is derived from the configured state directory
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return Holder{}, false, nil
	}
	if err != nil {
		return Holder{}, false, fmt.Errorf("read gate lease: %w", err)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return Holder{}, false, fmt.Errorf("decode gate lease %s: %w", l.path, err)
	}
	return h, true, nil
}

// Remove deletes the lease. A missing lease is not an error.
func (l *LeaseFile) Remove() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Recover inspects a lease left by a previous daemon.
//
// If the recorded process is still alive the gate is re-occupied and a
// goroutine polls every interval until it disappears; onExit is then called
// and the gate released. A stale lease (process gone) calls onExit at once and
// is removed. The returned channel is closed once recovery is finished; it is
// nil when there was nothing to recover. Cancelling ctx stops polling and
// leaves the gate and the lease untouched.
func (g *Gate) Recover(ctx context.Context, interval time.Duration, onExit func(Holder)) (<-chan struct{}, error) {
	if g.lease == nil {
		return nil, nil
	}
	h, ok, err := g.lease.Read()
	if err != nil {
		// An unreadable lease cannot be trusted; drop it so the gate is usable.
		_ = g.lease.Remove()
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	logger := log.WithComponent("admission").With().
		Str(log.FieldJobID, h.JobID).
		Int(log.FieldPID, h.PID).
		Logger()

	if !procgroup.Alive(h.PID) {
		metrics.RecordGateRecovery("stale")
		logger.Info().Str(log.FieldEvent, "gate.lease_stale").Msg("previous job ended while daemon was down")
		if onExit != nil {
			onExit(h)
		}
		if err := g.lease.Remove(); err != nil {
			return nil, fmt.Errorf("remove stale gate lease: %w", err)
		}
		return nil, nil
	}

	g.mu.Lock()
	if g.holder != nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("recover gate lease: gate already held by %s", g.holder.JobID)
	}
	g.holder = &h
	g.mu.Unlock()
	metrics.SetGateHeld(true)
	metrics.RecordGateRecovery("adopted")
	logger.Info().Str(log.FieldEvent, "gate.lease_adopted").Msg("re-occupied gate for running job")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if procgroup.Alive(h.PID) {
					continue
				}
				logger.Info().Str(log.FieldEvent, "job.exited").Msg("recovered job exited")
				if onExit != nil {
					onExit(h)
				}
				g.Release()
				return
			}
		}
	}()
	return done, nil
}
