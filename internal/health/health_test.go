// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: m.status}
}

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "ok", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "slow", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_Ready(t *testing.T) {
	m := NewManager("v1")
	assert.True(t, m.Ready(context.Background()).Ready, "no checkers means ready")

	m.RegisterChecker(&mockChecker{name: "slow", status: StatusDegraded})
	assert.True(t, m.Ready(context.Background()).Ready)

	m.RegisterChecker(&mockChecker{name: "dead", status: StatusUnhealthy})
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(&mockChecker{name: "dead", status: StatusUnhealthy})

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores component state")
}

func TestServeLegacy(t *testing.T) {
	rec := httptest.NewRecorder()
	NewManager("v1").ServeLegacy(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "ok"}, body)
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, StatusHealthy, NewDirChecker("logs", dir).Check(context.Background()).Status)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Equal(t, StatusUnhealthy, NewDirChecker("logs", file).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewDirChecker("logs", filepath.Join(dir, "missing")).Check(context.Background()).Status)
}

func TestBinaryChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewBinaryChecker("sh", "sh").Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewBinaryChecker("nope", "definitely-not-a-binary-xyz").Check(context.Background()).Status)
}

func TestGateChecker(t *testing.T) {
	gate := admission.NewGate(nil)
	c := NewGateChecker(gate, time.Hour)
	assert.Equal(t, "idle", c.Check(context.Background()).Message)

	require.True(t, gate.TryAcquire(admission.Holder{JobID: "clip", StartedAt: time.Now().Add(-2 * time.Hour)}))
	defer gate.Release()
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "running clip", res.Message)
}

func TestPerformStartupChecks(t *testing.T) {
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.Storage.OutputDir = filepath.Join(root, "out")
	cfg.Storage.LogDir = filepath.Join(root, "logs")
	cfg.Storage.StateDir = filepath.Join(root, "state")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	assert.DirExists(t, cfg.Storage.LogDir)

	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.Storage.StateDir = blocker
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))
}
