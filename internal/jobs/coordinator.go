// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs accepts job submissions and drives them through output
// resolution, admission and launch. At most one job runs at a time; every
// other submission is answered immediately.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/fsutil"
	"github.com/ManuGH/jobgate/internal/launcher"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/logstore"
	"github.com/ManuGH/jobgate/internal/metrics"
	"github.com/ManuGH/jobgate/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// State is the lifecycle state of a job as reported to callers.
type State string

const (
	StateSkipped   State = "skipped"
	StateStarted   State = "started"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// stateTailBytes is how much of a log is scanned for the last exit marker.
const stateTailBytes = 8 * 1024

// Request is one submission.
type Request struct {
	InputPath  string
	OutputKind string
	// Profile selects the command; empty means the default profile.
	Profile    string
	Parameters map[string]string
}

// Result is the immediate answer to a submission.
type Result struct {
	State      State     `json:"state"`
	ID         string    `json:"id"`
	Profile    string    `json:"profile"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath"`
	LogPath    string    `json:"logPath"`
	PID        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
}

// Status is a reconstructed view of a job.
type Status struct {
	ID         string `json:"id"`
	OutputKind string `json:"outputKind"`
	State      State  `json:"state"`
	OutputPath string `json:"outputPath"`
	LogPath    string `json:"logPath"`
	PID        int    `json:"pid,omitempty"`
	ExitCode   *int   `json:"exitCode,omitempty"`
}

// Launcher starts external commands.
type Launcher interface {
	Launch(ctx context.Context, cmd launcher.Command) (*launcher.Process, error)
}

// Config wires a Coordinator.
type Config struct {
	Resolver       *Resolver
	Gate           *admission.Gate
	Launcher       Launcher
	Logs           *logstore.Store
	Profiles       map[string]Profile
	DefaultProfile string
}

// Coordinator is the submission entry point.
type Coordinator struct {
	resolver       *Resolver
	gate           *admission.Gate
	launcher       Launcher
	logs           *logstore.Store
	profiles       map[string]Profile
	defaultProfile string
	now            func() time.Time
}

// NewCoordinator returns a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	return &Coordinator{
		resolver:       cfg.Resolver,
		gate:           cfg.Gate,
		launcher:       cfg.Launcher,
		logs:           cfg.Logs,
		profiles:       cfg.Profiles,
		defaultProfile: cfg.DefaultProfile,
		now:            time.Now,
	}
}

// Submit evaluates, in order: input existence, format, profile and
// parameters, existing output (skipped, gate untouched), admission (ErrBusy)
// and launch. It never waits for the job to finish.
func (c *Coordinator) Submit(ctx context.Context, req Request) (Result, error) {
	ctx, span := telemetry.Tracer("jobgate/jobs").Start(ctx, "jobs.submit")
	defer span.End()

	profileName := req.Profile
	if profileName == "" {
		profileName = c.defaultProfile
	}
	span.SetAttributes(telemetry.JobAttributes("", profileName, NormalizeKind(req.OutputKind))...)

	res, err := c.submit(ctx, profileName, req)
	outcome := outcomeOf(res, err)
	metrics.RecordSubmission(profileLabel(c.profiles, profileName), outcome)
	if err != nil && !errors.Is(err, ErrBusy) {
		span.SetAttributes(telemetry.ErrorAttributes(outcome)...)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (c *Coordinator) submit(ctx context.Context, profileName string, req Request) (Result, error) {
	res, err := c.resolver.Resolve(req.InputPath, req.OutputKind)
	if err != nil {
		return Result{}, err
	}

	profile, ok := c.profiles[profileName]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownProfile, profileName)
	}
	if err := profile.CheckParameters(req.Parameters); err != nil {
		return Result{}, err
	}
	if !profile.AcceptsInput(res.InputKind) {
		return Result{}, fmt.Errorf("%w: profile %s does not accept %q inputs", ErrInvalidFormat, profile.Name, res.InputKind)
	}

	ctx = log.ContextWithJobID(ctx, res.ID)
	logger := log.WithComponentFromContext(ctx, "jobs").With().Str(log.FieldProfile, profile.Name).Logger()

	out := Result{
		ID:         res.ID,
		Profile:    profile.Name,
		InputPath:  res.InputPath,
		OutputPath: res.OutputPath,
		LogPath:    res.LogPath,
	}

	if res.AlreadyDone {
		out.State = StateSkipped
		logger.Info().Str(log.FieldEvent, "job.skipped").Str(log.FieldOutputPath, res.OutputPath).Msg("output exists, skipping")
		return out, nil
	}

	owner := admission.Holder{
		JobID:       res.ID,
		Profile:     profile.Name,
		InputPath:   res.InputPath,
		OutputPath:  res.OutputPath,
		PartialPath: res.PartialPath,
		LogPath:     res.LogPath,
		StartedAt:   c.now().UTC(),
	}
	if !c.gate.TryAcquire(owner) {
		return Result{}, ErrBusy
	}

	cmd, err := profile.Command(res, req.Parameters)
	if err != nil {
		c.gate.Release()
		return Result{}, err
	}
	// A partial file can only be left over from an interrupted run.
	if err := os.Remove(res.PartialPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Str(log.FieldPath, res.PartialPath).Msg("failed to remove stale partial output")
	}
	cmd.OnStart = func(pid int) { c.gate.Attach(res.ID, pid) }
	cmd.Finalize = func(launcher.Result) error { return publishOutput(res) }
	cmd.OnExit = func(r launcher.Result) { c.finish(profile.Name, res, r) }

	// The child must outlive the request.
	proc, err := c.launcher.Launch(context.WithoutCancel(ctx), cmd)
	if err != nil {
		c.gate.Release()
		var lerr *launcher.LaunchError
		if errors.As(err, &lerr) {
			return Result{}, err
		}
		return Result{}, &launcher.LaunchError{Reason: "launch", Err: err}
	}

	out.State = StateStarted
	out.PID = proc.PID()
	out.StartedAt = proc.StartedAt().UTC()
	logger.Info().
		Str(log.FieldEvent, "job.accepted").
		Int(log.FieldPID, out.PID).
		Str(log.FieldInputPath, res.InputPath).
		Str(log.FieldOutputPath, res.OutputPath).
		Msg("job started")
	return out, nil
}

// finish runs once per launched job, after its exit marker is written.
func (c *Coordinator) finish(profile string, res Resolution, r launcher.Result) {
	result := string(StateCompleted)
	if !r.Success() {
		result = string(StateFailed)
		_ = os.Remove(res.PartialPath)
	}
	metrics.RecordJobExit(profile, result, r.Duration().Seconds())
	c.gate.Release()
}

// publishOutput moves the finished partial output into place.
func publishOutput(res Resolution) error {
	if err := os.Rename(res.PartialPath, res.OutputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("command exited 0 without producing output")
		}
		return fmt.Errorf("publish output: %w", err)
	}
	return nil
}

// Status returns the job currently holding the gate.
func (c *Coordinator) Status() (admission.Holder, bool) {
	return c.gate.Holder()
}

// JobState reconstructs a job's state from the gate, the output file and the
// last exit marker in its log.
func (c *Coordinator) JobState(id, kind string) (Status, error) {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	kind = NormalizeKind(kind)
	if err := checkKind(kind); err != nil {
		return Status{}, err
	}

	res := c.resolver.Paths(id, kind)
	st := Status{
		ID:         id,
		OutputKind: kind,
		State:      StateUnknown,
		OutputPath: res.OutputPath,
		LogPath:    res.LogPath,
	}

	if h, ok := c.gate.Holder(); ok && h.JobID == id {
		st.State = StateRunning
		st.PID = h.PID
		return st, nil
	}
	if fsutil.Exists(res.OutputPath) {
		st.State = StateCompleted
		return st, nil
	}

	tail, err := c.logs.TailPath(res.LogPath, stateTailBytes)
	if err != nil {
		if errors.Is(err, logstore.ErrLogNotFound) {
			return st, nil
		}
		return Status{}, err
	}
	if exit, ok := launcher.FindExit(tail); ok && launcher.Finished(tail) && !exit.Completed {
		st.State = StateFailed
		code := exit.Code
		st.ExitCode = &code
	}
	return st, nil
}

// RecoverLease adopts a job left running by a previous daemon. When it ends,
// its partial output is published and an exit marker with unknown status is
// appended to its log.
func (c *Coordinator) RecoverLease(ctx context.Context, interval time.Duration) (<-chan struct{}, error) {
	return c.gate.Recover(ctx, interval, func(h admission.Holder) {
		logger := log.WithComponent("jobs").With().Str(log.FieldJobID, h.JobID).Logger()
		if h.LogPath == "" {
			return
		}
		if tail, err := c.logs.TailPath(h.LogPath, stateTailBytes); err == nil && launcher.Finished(tail) {
			return
		}
		if err := c.publishAdopted(h); err != nil {
			logger.Warn().Err(err).Str(log.FieldPath, h.PartialPath).Msg("failed to publish adopted output")
		}
		if err := launcher.AppendLine(h.LogPath, launcher.ExitMarker(c.now(), launcher.ExitUnknown, "")); err != nil {
			logger.Warn().Err(err).Msg("failed to append exit marker")
		}
		metrics.RecordJobExit(profileLabel(c.profiles, h.Profile), string(StateUnknown), -1)
	})
}

// publishAdopted moves the partial output of an adopted job into place. Its
// exit status is unobservable, so an existing partial file counts as the
// result. Paths that do not match the resolver's layout are left alone.
func (c *Coordinator) publishAdopted(h admission.Holder) error {
	if h.PartialPath == "" || h.OutputPath == "" {
		return nil
	}
	want := c.resolver.Paths(h.JobID, NormalizeKind(filepath.Ext(h.OutputPath)))
	if want.PartialPath != h.PartialPath || want.OutputPath != h.OutputPath {
		return fmt.Errorf("lease paths outside output dir: %s", h.PartialPath)
	}
	if !fsutil.Exists(h.PartialPath) || fsutil.Exists(h.OutputPath) {
		return nil
	}
	if err := os.Rename(h.PartialPath, h.OutputPath); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	logger := log.WithComponent("jobs")
	logger.Info().
		Str(log.FieldEvent, "job.output_recovered").
		Str(log.FieldJobID, h.JobID).
		Str(log.FieldOutputPath, h.OutputPath).
		Msg("published output of adopted job")
	return nil
}

func outcomeOf(res Result, err error) string {
	var lerr *launcher.LaunchError
	switch {
	case err == nil && res.State == StateSkipped:
		return metrics.OutcomeSkipped
	case err == nil:
		return metrics.OutcomeStarted
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	case errors.Is(err, ErrInputNotFound):
		return metrics.OutcomeInputNotFound
	case errors.Is(err, ErrInvalidFormat):
		return metrics.OutcomeInvalidFormat
	case errors.As(err, &lerr):
		return metrics.OutcomeLaunchFailed
	default:
		return metrics.OutcomeInvalidRequest
	}
}

// profileLabel keeps metric labels bounded to configured profile names.
func profileLabel(profiles map[string]Profile, name string) string {
	if _, ok := profiles[name]; ok {
		return name
	}
	return "unknown"
}
