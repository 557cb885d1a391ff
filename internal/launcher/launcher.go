// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package launcher starts detached external commands whose output goes
// straight into an append-only log file.
//
// A launched child runs in its own process group and is not bound to the
// caller's context: the HTTP request that started it may end long before the
// child does. A watcher goroutine owns the process handle, records the exit
// status in the log and reports it through Command.OnExit exactly once.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/procgroup"
	"github.com/ManuGH/jobgate/internal/telemetry"
	"go.opentelemetry.io/otel/codes"
)

// Command is one external invocation.
type Command struct {
	JobID string
	Bin   string
	Args  []string
	Dir   string
	// Env entries are appended to the daemon's environment.
	Env     []string
	LogPath string

	// OnStart is called synchronously with the pid once the child runs,
	// before the watcher can observe its exit.
	OnStart func(pid int)
	// Finalize runs after the process exits and before the exit marker is
	// written. A non-nil error turns a zero exit into a failure.
	Finalize func(Result) error
	// OnExit is called exactly once after the exit marker is written.
	OnExit func(Result)
}

// Result is the observed outcome of a process.
type Result struct {
	JobID     string
	PID       int
	ExitCode  int
	StartedAt time.Time
	ExitedAt  time.Time
	// Err carries wait or finalize failures.
	Err error
}

// Success reports a zero exit without finalize errors.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Duration returns the wall-clock runtime.
func (r Result) Duration() time.Duration {
	return r.ExitedAt.Sub(r.StartedAt)
}

// LaunchError is returned when a command could not be started. Nothing is
// left running when it is returned.
type LaunchError struct {
	Reason string
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return "launch failed: " + e.Reason
	}
	return fmt.Sprintf("launch failed: %s: %v", e.Reason, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Process is a handle to a running command. The watcher goroutine owns the
// underlying *exec.Cmd; Process only observes it.
type Process struct {
	pid       int
	startedAt time.Time
	done      chan struct{}

	mu     sync.Mutex
	result Result
}

// PID returns the process id (also the process group id).
func (p *Process) PID() int { return p.pid }

// StartedAt returns the spawn time.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed after the exit marker is written and OnExit returned.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process has exited and returns its result.
func (p *Process) Wait() Result {
	<-p.done
	return p.resultLocked()
}

// Result returns the result once available.
func (p *Process) Result() (Result, bool) {
	select {
	case <-p.done:
		return p.resultLocked(), true
	default:
		return Result{}, false
	}
}

func (p *Process) resultLocked() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Launcher starts commands.
type Launcher struct {
	now func() time.Time
	wg  sync.WaitGroup
}

// New returns a Launcher.
func New() *Launcher {
	return &Launcher{now: time.Now}
}

// Launch starts cmd and returns as soon as the child is running.
//
// ctx only scopes tracing and logging; cancelling it does not affect the child.
func (l *Launcher) Launch(ctx context.Context, cmd Command) (*Process, error) {
	ctx, span := telemetry.Tracer("jobgate/launcher").Start(ctx, "launcher.launch")
	span.SetAttributes(telemetry.JobAttributes(cmd.JobID, "", "")...)
	defer span.End()

	if log.JobIDFromContext(ctx) == "" {
		ctx = log.ContextWithJobID(ctx, cmd.JobID)
	}
	logger := log.WithComponentFromContext(ctx, "launcher").With().
		Str(log.FieldLogPath, cmd.LogPath).
		Logger()

	if cmd.Bin == "" {
		return nil, &LaunchError{Reason: "empty command"}
	}

	logFile, err := openLog(cmd.LogPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open log")
		return nil, &LaunchError{Reason: "open log file", Err: err}
	}
	defer func() { _ = logFile.Close() }()

	startedAt := l.now()
	if _, err := logFile.WriteString(Marker(startedAt, "started job=%s cmd=%s", cmd.JobID, commandLine(cmd))); err != nil {
		return nil, &LaunchError{Reason: "write log", Err: err}
	}

	// #nosec G204 -- argv comes from operator-configured profiles, no shell involved
	c := exec.Command(cmd.Bin, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = nil
	c.Stdout = logFile
	c.Stderr = logFile
	procgroup.Set(c)

	if err := c.Start(); err != nil {
		reason := startFailureReason(err)
		_, _ = logFile.WriteString(Marker(l.now(), "launch failed: %s: %v", reason, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		logger.Error().Err(err).Str(log.FieldEvent, "job.launch_failed").Str("reason", reason).Msg("failed to start command")
		return nil, &LaunchError{Reason: reason, Err: err}
	}

	p := &Process{
		pid:       c.Process.Pid,
		startedAt: startedAt,
		done:      make(chan struct{}),
	}
	logger.Info().
		Str(log.FieldEvent, "job.started").
		Int(log.FieldPID, p.pid).
		Str("bin", cmd.Bin).
		Msg("job process started")

	if cmd.OnStart != nil {
		cmd.OnStart(p.pid)
	}

	l.wg.Add(1)
	go l.watch(c, cmd, p)
	return p, nil
}

// Wait blocks until every watcher started by l has finished.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

func (l *Launcher) watch(c *exec.Cmd, cmd Command, p *Process) {
	defer l.wg.Done()
	defer close(p.done)

	waitErr := c.Wait()
	res := Result{
		JobID:     cmd.JobID,
		PID:       p.pid,
		ExitCode:  exitCode(c, waitErr),
		StartedAt: p.startedAt,
		ExitedAt:  l.now(),
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		res.Err = waitErr
	}

	detail := ""
	if sig := signalName(c); sig != "" {
		detail = "terminated by " + sig
	}
	if res.Success() && cmd.Finalize != nil {
		if err := cmd.Finalize(res); err != nil {
			res.Err = err
			detail = err.Error()
		}
	}

	logger := log.WithComponent("launcher").With().
		Str(log.FieldJobID, cmd.JobID).
		Int(log.FieldPID, p.pid).
		Int(log.FieldExitCode, res.ExitCode).
		Logger()

	if err := AppendLine(cmd.LogPath, ExitMarker(res.ExitedAt, res.ExitCode, detail)); err != nil {
		logger.Error().Err(err).Msg("failed to append exit marker")
	}

	evt := logger.Info()
	if !res.Success() {
		evt = logger.Warn().AnErr("reason", res.Err)
	}
	evt.Str(log.FieldEvent, "job.exited").Dur("duration", res.Duration()).Msg("job process exited")

	p.mu.Lock()
	p.result = res
	p.mu.Unlock()

	if cmd.OnExit != nil {
		cmd.OnExit(res)
	}
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	// #nosec G304 -- log paths are resolved by the job resolver
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func commandLine(cmd Command) string {
	parts := append([]string{cmd.Bin}, cmd.Args...)
	return strings.Join(parts, " ")
}

func startFailureReason(err error) string {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return "binary not found"
	case errors.Is(err, os.ErrPermission):
		return "permission denied"
	default:
		return "start failed"
	}
}

func exitCode(c *exec.Cmd, waitErr error) int {
	if c.ProcessState != nil {
		if code := c.ProcessState.ExitCode(); code >= 0 {
			return code
		}
		return ExitUnknown
	}
	if waitErr != nil {
		return ExitUnknown
	}
	return 0
}

func signalName(c *exec.Cmd) string {
	if c.ProcessState == nil {
		return ""
	}
	ws, ok := c.ProcessState.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
