// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package admission

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/ManuGH/jobgate/internal/procgroup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLeaseFile_WriteReadRemove(t *testing.T) {
	lease := NewLeaseFile(t.TempDir())

	_, ok, err := lease.Read()
	require.NoError(t, err)
	assert.False(t, ok)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, lease.Write(Holder{JobID: "clip", PID: 123, LogPath: "/logs/clip.log", StartedAt: started}))

	h, ok, err := lease.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "clip", h.JobID)
	assert.Equal(t, 123, h.PID)
	assert.True(t, started.Equal(h.StartedAt))

	require.NoError(t, lease.Remove())
	require.NoError(t, lease.Remove(), "removing a missing lease is fine")
}

func TestGate_PersistsLease(t *testing.T) {
	lease := NewLeaseFile(t.TempDir())
	g := NewGate(lease)

	require.True(t, g.TryAcquire(Holder{JobID: "clip"}))
	g.Attach("clip", 99)

	h, ok, err := lease.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 99, h.PID)

	g.Release()
	_, err = os.Stat(lease.Path())
	assert.True(t, os.IsNotExist(err), "release removes the lease")
}

func TestGate_RecoverStaleLease(t *testing.T) {
	lease := NewLeaseFile(t.TempDir())
	require.NoError(t, lease.Write(Holder{JobID: "gone", PID: 0}))

	var exited []string
	g := NewGate(lease)
	done, err := g.Recover(context.Background(), 10*time.Millisecond, func(h Holder) {
		exited = append(exited, h.JobID)
	})
	require.NoError(t, err)
	assert.Nil(t, done)
	assert.Equal(t, []string{"gone"}, exited)
	assert.False(t, g.Busy())

	_, ok, _ := lease.Read()
	assert.False(t, ok)
}

func TestGate_RecoverAdoptsLiveProcess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cmd := exec.Command("sleep", "10")
	procgroup.Set(cmd)
	require.NoError(t, cmd.Start())
	reaped := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(reaped)
	}()

	lease := NewLeaseFile(t.TempDir())
	require.NoError(t, lease.Write(Holder{JobID: "clip", PID: cmd.Process.Pid}))

	exited := make(chan Holder, 1)
	g := NewGate(lease)
	done, err := g.Recover(context.Background(), 10*time.Millisecond, func(h Holder) { exited <- h })
	require.NoError(t, err)
	require.NotNil(t, done)

	assert.True(t, g.Busy(), "gate re-occupied while the process lives")
	assert.False(t, g.TryAcquire(Holder{JobID: "next"}))

	require.NoError(t, cmd.Process.Kill())
	<-reaped

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("recovery did not finish")
	}
	h := <-exited
	assert.Equal(t, "clip", h.JobID)
	assert.False(t, g.Busy())
}

func TestGate_RecoverStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	lease := NewLeaseFile(t.TempDir())
	// Our own pid is alive for the whole test.
	require.NoError(t, lease.Write(Holder{JobID: "self", PID: os.Getpid()}))

	ctx, cancel := context.WithCancel(context.Background())
	g := NewGate(lease)
	done, err := g.Recover(ctx, 10*time.Millisecond, nil)
	require.NoError(t, err)
	cancel()
	<-done

	assert.True(t, g.Busy(), "cancel leaves the gate held")
}

func TestGate_RecoverCorruptLease(t *testing.T) {
	lease := NewLeaseFile(t.TempDir())
	require.NoError(t, os.WriteFile(lease.Path(), []byte("{not json"), 0o600))

	g := NewGate(lease)
	_, err := g.Recover(context.Background(), time.Second, nil)
	require.Error(t, err)
	assert.False(t, g.Busy())
	_, statErr := os.Stat(lease.Path())
	assert.True(t, os.IsNotExist(statErr))
}
