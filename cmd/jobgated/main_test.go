// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/jobgate/internal/api"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"similarity=0.4", "blend=", " mode =streaming"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"similarity": "0.4", "blend": "", "mode": "streaming"}, got)

	got, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestSubmitCommand(t *testing.T) {
	var got api.SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(jobs.Result{State: jobs.StateStarted, ID: "clip", PID: 9})
	}))
	defer srv.Close()

	out, _, err := execute(t, "--server", srv.URL, "submit", "clip.mp4",
		"--profile", "chromakey", "--param", "similarity=0.4")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "started"`)
	assert.Equal(t, "clip.mp4", got.Input)
	assert.Equal(t, "mov", got.OutputKind)
	assert.Equal(t, "chromakey", got.Profile)
	assert.Equal(t, map[string]string{"similarity": "0.4"}, got.Parameters)
}

func TestSubmitCommand_BusyRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"status":409,"code":"JOB_GATE_BUSY","title":"Job Gate Busy","detail":"job other is running"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(jobs.Result{State: jobs.StateSkipped, ID: "clip"})
	}))
	defer srv.Close()

	_, _, err := execute(t, "--server", srv.URL, "submit", "clip.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), admission.CodeGateBusy)

	out, errOut, err := execute(t, "--server", srv.URL, "submit", "clip.mp4", "--retry-busy", "--retry-interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "skipped"`)
	assert.Empty(t, errOut)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubmitCommand_BadParam(t *testing.T) {
	_, _, err := execute(t, "--server", "http://127.0.0.1:1", "submit", "clip.mp4", "--param", "oops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key=value")
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs/current":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v1/jobs/clip":
			_ = json.NewEncoder(w).Encode(jobs.Status{ID: "clip", OutputKind: "mov", State: jobs.StateRunning})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, _, err := execute(t, "--server", srv.URL, "status")
	require.NoError(t, err)
	assert.Equal(t, "idle\n", out)

	out, _, err = execute(t, "--server", srv.URL, "status", "clip")
	require.NoError(t, err)
	assert.Contains(t, out, `"state": "running"`)
}

func TestLogsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("follow") == "true" {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte("data: frame=1\n\nevent: end\ndata: idle\n\n"))
			return
		}
		_, _ = w.Write([]byte("tail\n"))
	}))
	defer srv.Close()

	out, _, err := execute(t, "--server", srv.URL, "logs", "clip.log", "--bytes", "10")
	require.NoError(t, err)
	assert.Equal(t, "tail\n", out)

	out, errOut, err := execute(t, "--server", srv.URL, "logs", "clip.log", "-f")
	require.NoError(t, err)
	assert.Equal(t, "frame=1\n", out)
	assert.Equal(t, "stream ended: idle\n", errOut)

	_, _, err = execute(t, "--server", srv.URL, "logs", "clip.log", "--bytes", "-1")
	assert.Error(t, err)
}

func TestHealthcheckCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out, _, err := execute(t, "--server", srv.URL, "healthcheck", "--mode", "live")
	require.NoError(t, err)
	assert.Equal(t, "Healthcheck successful (live)\n", out)

	_, _, err = execute(t, "--server", srv.URL, "healthcheck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "healthcheck failed")

	_, _, err = execute(t, "--server", srv.URL, "healthcheck", "--mode", "sideways")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nstorage:\n  outputDir: /srv/out\n"), 0o600))

	out, _, err := execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, "config is valid\n", out)

	out, _, err = execute(t, "config", "dump", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "logLevel: debug")
	assert.Contains(t, out, "outputDir: /srv/out")

	out, _, err = execute(t, "config", "dump", "-f", path, "--format", "json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("nope: true\n"), 0o600))
	_, _, err = execute(t, "config", "validate", "-f", bad)
	assert.Error(t, err)
}

func TestServe_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o600))

	err := serve(context.Background(), path)
	assert.Error(t, err)
}

func TestSubmitCommand_RetryIntervalMustBePositive(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	for _, interval := range []string{"0s", "-1s"} {
		_, _, err := execute(t, "--server", srv.URL, "submit", "clip.mp4", "--retry-busy", "--retry-interval="+interval)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--retry-interval must be positive")
	}
	assert.Zero(t, calls.Load())
}
