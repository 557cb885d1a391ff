// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/ManuGH/jobgate/internal/control/admission"
)

// DirChecker verifies a directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a writable-directory checker.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.path}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "not a directory", Message: c.path}
	}
	tmp, err := os.CreateTemp(c.path, ".jobgate-ready-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "not writable: " + err.Error(), Message: c.path}
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// BinaryChecker verifies a profile's command can be resolved.
type BinaryChecker struct {
	name string
	bin  string
}

// NewBinaryChecker creates a checker for the executable bin.
func NewBinaryChecker(name, bin string) *BinaryChecker {
	return &BinaryChecker{name: name, bin: bin}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(context.Context) CheckResult {
	path, err := exec.LookPath(c.bin)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.bin}
	}
	return CheckResult{Status: StatusHealthy, Message: path}
}

// GateChecker reports the admission gate. A running job is healthy; a job
// running far longer than expected is flagged as degraded.
type GateChecker struct {
	gate    *admission.Gate
	maxAge  time.Duration
	nowFunc func() time.Time
}

// NewGateChecker creates a gate checker. maxAge <= 0 disables the age check.
func NewGateChecker(gate *admission.Gate, maxAge time.Duration) *GateChecker {
	return &GateChecker{gate: gate, maxAge: maxAge, nowFunc: time.Now}
}

func (c *GateChecker) Name() string { return "admission_gate" }

func (c *GateChecker) Check(context.Context) CheckResult {
	h, held := c.gate.Holder()
	if !held {
		return CheckResult{Status: StatusHealthy, Message: "idle"}
	}
	msg := "running " + h.JobID
	if c.maxAge > 0 && !h.StartedAt.IsZero() && c.nowFunc().Sub(h.StartedAt) > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: msg, Error: "job running longer than " + c.maxAge.String()}
	}
	return CheckResult{Status: StatusHealthy, Message: msg}
}
