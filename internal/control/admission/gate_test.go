// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AcquireRelease(t *testing.T) {
	g := NewGate(nil)

	require.True(t, g.TryAcquire(Holder{JobID: "clip"}))
	h, ok := g.Holder()
	require.True(t, ok)
	assert.Equal(t, "clip", h.JobID)
	assert.False(t, h.StartedAt.IsZero(), "start time is stamped on acquire")

	assert.False(t, g.TryAcquire(Holder{JobID: "other"}), "second acquire must be rejected")

	g.Release()
	assert.False(t, g.Busy())
	assert.True(t, g.TryAcquire(Holder{JobID: "other"}))
}

func TestGate_ReleaseIdempotent(t *testing.T) {
	g := NewGate(nil)
	g.Release()

	require.True(t, g.TryAcquire(Holder{JobID: "a"}))
	g.Release()
	g.Release()
	assert.False(t, g.Busy())
}

func TestGate_AttachOnlyCurrentHolder(t *testing.T) {
	g := NewGate(nil)
	g.Attach("clip", 42)
	assert.False(t, g.Busy())

	require.True(t, g.TryAcquire(Holder{JobID: "clip"}))
	g.Attach("other", 7)
	g.Attach("clip", 42)

	h, _ := g.Holder()
	assert.Equal(t, 42, h.PID)
}

func TestGate_ConcurrentAcquireExactlyOneWins(t *testing.T) {
	g := NewGate(nil)

	const n = 64
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire(Holder{JobID: "job"}) {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
