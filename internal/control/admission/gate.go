// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission implements the single-slot admission gate that keeps at
// most one external job running system-wide.
package admission

import (
	"sync"
	"time"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/metrics"
)

// Holder describes the job currently occupying the gate.
type Holder struct {
	JobID      string `json:"jobId"`
	Profile    string `json:"profile,omitempty"`
	PID        int    `json:"pid,omitempty"`
	InputPath  string `json:"inputPath,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
	// PartialPath is where the command writes until its output is published.
	PartialPath string    `json:"partialPath,omitempty"`
	LogPath     string    `json:"logPath,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// Gate is a non-blocking mutex with capacity 1. It never queues.
//
// Release must be called exactly once per successful TryAcquire; extra calls
// are no-ops. Release is owned by whoever observes the backing process end,
// never by the HTTP caller.
type Gate struct {
	mu     sync.Mutex
	holder *Holder
	lease  *LeaseFile
}

// NewGate returns an idle gate. lease may be nil for an in-memory gate.
func NewGate(lease *LeaseFile) *Gate {
	metrics.SetGateHeld(false)
	return &Gate{lease: lease}
}

// TryAcquire occupies the gate for owner if it is idle.
// It returns false without side effects when the gate is held.
func (g *Gate) TryAcquire(owner Holder) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != nil {
		metrics.RecordGateRejection()
		logger := log.WithComponent("admission")
		logger.Info().
			Str(log.FieldEvent, "gate.busy").
			Str(log.FieldJobID, owner.JobID).
			Str("holder", g.holder.JobID).
			Msg("admission rejected, gate held")
		return false
	}
	if owner.StartedAt.IsZero() {
		owner.StartedAt = time.Now().UTC()
	}
	g.holder = &owner
	g.persistLocked()
	metrics.SetGateHeld(true)
	return true
}

// Attach records the pid of the process backing the current holder.
// It does nothing when the gate is idle or held for another job.
func (g *Gate) Attach(jobID string, pid int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == nil || g.holder.JobID != jobID {
		return
	}
	g.holder.PID = pid
	g.persistLocked()
}

// Release frees the gate. Calling it on an idle gate is a no-op.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == nil {
		return
	}
	logger := log.WithComponent("admission")
	logger.Debug().
		Str(log.FieldEvent, "gate.released").
		Str(log.FieldJobID, g.holder.JobID).
		Msg("admission gate released")
	g.holder = nil
	if g.lease != nil {
		if err := g.lease.Remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove gate lease")
		}
	}
	metrics.SetGateHeld(false)
}

// Holder returns a copy of the current holder.
func (g *Gate) Holder() (Holder, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == nil {
		return Holder{}, false
	}
	return *g.holder, true
}

// Busy reports whether the gate is held.
func (g *Gate) Busy() bool {
	_, held := g.Holder()
	return held
}

func (g *Gate) persistLocked() {
	if g.lease == nil {
		return
	}
	if err := g.lease.Write(*g.holder); err != nil {
		// Exclusivity within this process does not depend on the lease.
		logger := log.WithComponent("admission")
		logger.Warn().Err(err).
			Str(log.FieldJobID, g.holder.JobID).
			Msg("failed to persist gate lease")
	}
}
