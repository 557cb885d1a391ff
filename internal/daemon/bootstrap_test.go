// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package daemon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.Storage = config.StorageConfig{
		OutputDir: filepath.Join(root, "out"),
		LogDir:    filepath.Join(root, "logs"),
		StateDir:  filepath.Join(root, "state"),
	}
	cfg.Profiles = map[string]config.ProfileConfig{
		"copy": {Bin: "/bin/cp", Args: []string{"{input}", "{output}"}},
	}
	cfg.DefaultProfile = "copy"
	return cfg
}

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestBootstrap_ServesAndRecoversStaleLease(t *testing.T) {
	cfg := testAppConfig(t)

	logPath := filepath.Join(cfg.Storage.LogDir, "old.log")
	require.NoError(t, os.MkdirAll(cfg.Storage.LogDir, 0o750))
	require.NoError(t, os.WriteFile(logPath, []byte("half done\n"), 0o600))
	require.NoError(t, admission.NewLeaseFile(cfg.Storage.StateDir).Write(admission.Holder{
		JobID:     "old",
		PID:       deadPID(t),
		LogPath:   logPath,
		StartedAt: time.Now().Add(-time.Minute),
	}))

	rt, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	mgr, err := rt.NewManager()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewApp(mgr, rt.Coordinator).Run(ctx) }()
	waitReady(t, mgr)

	assert.False(t, rt.Gate.Busy())
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "job finished (exit=unknown)")
	_, err = os.Stat(filepath.Join(cfg.Storage.StateDir, admission.LeaseFileName))
	assert.ErrorIs(t, err, os.ErrNotExist)

	base := "http://" + mgr.APIAddr()
	assert.JSONEq(t, `{"status":"ok"}`, get(t, base+"/health"))
	assert.True(t, strings.Contains(get(t, base+"/readyz"), `"ready":true`))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestBootstrap_UnusableStorage(t *testing.T) {
	cfg := testAppConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	cfg.Storage.LogDir = blocker

	_, err := Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}
