// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/jobgate/internal/api"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBusy(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", "30")
	w.WriteHeader(http.StatusConflict)
	_, _ = w.Write([]byte(`{"type":"jobs/busy","title":"Job Gate Busy","status":409,"code":"JOB_GATE_BUSY","detail":"job clip is running"}`))
}

func TestSubmit_Started(t *testing.T) {
	var got api.SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(jobs.Result{State: jobs.StateStarted, ID: "clip", PID: 42})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", Options{})
	res, err := c.Submit(context.Background(), api.SubmitRequest{Input: "clip.mp4", OutputKind: "mov"})
	require.NoError(t, err)
	assert.Equal(t, jobs.StateStarted, res.State)
	assert.Equal(t, 42, res.PID)
	assert.Equal(t, "clip.mp4", got.Input)
	assert.Equal(t, "mov", got.OutputKind)
}

func TestSubmit_Busy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeBusy(w)
	}))
	defer srv.Close()

	_, err := New(srv.URL, Options{}).Submit(context.Background(), api.SubmitRequest{Input: "clip.mp4", OutputKind: "mov"})
	require.Error(t, err)
	assert.True(t, IsBusy(err))

	var pe *ProblemError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusConflict, pe.Status)
	assert.Equal(t, admission.CodeGateBusy, pe.Code)
	assert.Equal(t, 30*time.Second, pe.RetryAfter)
	assert.Contains(t, pe.Error(), "job clip is running")
}

func TestSubmit_PlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, Options{}).Submit(context.Background(), api.SubmitRequest{Input: "x", OutputKind: "mov"})
	var pe *ProblemError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "HTTP_502", pe.Code)
	assert.Equal(t, "boom", pe.Detail)
	assert.False(t, IsBusy(err))
}

func TestSubmitRetryBusy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeBusy(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jobs.Result{State: jobs.StateSkipped, ID: "clip"})
	}))
	defer srv.Close()

	var busy int
	res, err := New(srv.URL, Options{}).SubmitRetryBusy(context.Background(),
		api.SubmitRequest{Input: "clip.mp4", OutputKind: "mov"}, 10*time.Millisecond,
		func(pe *ProblemError) {
			busy++
			assert.Equal(t, admission.CodeGateBusy, pe.Code)
		})
	require.NoError(t, err)
	assert.Equal(t, jobs.StateSkipped, res.State)
	assert.Equal(t, 2, busy)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSubmitRetryBusy_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeBusy(w)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, Options{}).SubmitRetryBusy(ctx,
		api.SubmitRequest{Input: "clip.mp4", OutputKind: "mov"}, 20*time.Millisecond, nil)
	require.Error(t, err)
	assert.False(t, IsBusy(err))
}

func TestCurrent(t *testing.T) {
	var running atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/current", r.URL.Path)
		if !running.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(admission.Holder{JobID: "clip", PID: 7})
	}))
	defer srv.Close()
	c := New(srv.URL, Options{})

	_, ok, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	running.Store(true)
	h, ok, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "clip", h.JobID)
	assert.Equal(t, 7, h.PID)
}

func TestJobState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs/clip", r.URL.Path)
		assert.Equal(t, "mov", r.URL.Query().Get("kind"))
		_ = json.NewEncoder(w).Encode(jobs.Status{ID: "clip", OutputKind: "mov", State: jobs.StateCompleted})
	}))
	defer srv.Close()

	st, err := New(srv.URL, Options{}).JobState(context.Background(), "clip", "mov")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, st.State)
}

func TestTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/logs/clip.log", r.URL.Path)
		assert.Equal(t, "64", r.URL.Query().Get("bytes"))
		_, _ = w.Write([]byte("frame=10\n"))
	}))
	defer srv.Close()

	text, err := New(srv.URL, Options{}).Tail(context.Background(), "clip.log", 64)
	require.NoError(t, err)
	assert.Equal(t, "frame=10\n", text)
}

func TestFollow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("follow"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: frame=1\n\ndata: frame=2\ndata: done\n\nevent: end\ndata: completed\n\n"))
	}))
	defer srv.Close()

	var out strings.Builder
	reason, err := New(srv.URL, Options{}).Follow(context.Background(), "clip.log", &out)
	require.NoError(t, err)
	assert.Equal(t, "completed", reason)
	assert.Equal(t, "frame=1\nframe=2\ndone\n", out.String())
}

func TestFollow_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":404,"code":"LOG_NOT_FOUND","title":"Log Not Found"}`))
	}))
	defer srv.Close()

	var out strings.Builder
	_, err := New(srv.URL, Options{}).Follow(context.Background(), "nope.log", &out)
	var pe *ProblemError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "LOG_NOT_FOUND", pe.Code)
	assert.Empty(t, out.String())
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	c := New(srv.URL, Options{Timeout: time.Second})

	assert.NoError(t, c.Health(context.Background(), false))
	err := c.Health(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSubmitRetryBusy_RejectsNonPositiveInterval(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeBusy(w)
	}))
	defer srv.Close()

	for _, every := range []time.Duration{0, -time.Second} {
		_, err := New(srv.URL, Options{}).SubmitRetryBusy(context.Background(),
			api.SubmitRequest{Input: "clip.mp4", OutputKind: "mov"}, every, nil)
		assert.ErrorIs(t, err, ErrInvalidInterval)
	}
	assert.Zero(t, calls.Load())
}
