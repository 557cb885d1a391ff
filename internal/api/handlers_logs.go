// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/jobgate/internal/fsutil"
	"github.com/ManuGH/jobgate/internal/launcher"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/logstore"
	"github.com/ManuGH/jobgate/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// handleLogs serves a log tail, or an SSE stream with ?follow=true.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	maxBytes := 0
	if raw := q.Get("bytes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeProblem(w, r, http.StatusBadRequest, "logs/invalid-request", "Invalid Request", CodeInvalidRequest, "bytes must be a non-negative integer")
			return
		}
		maxBytes = n
	}

	if follow, _ := strconv.ParseBool(q.Get("follow")); follow {
		s.streamLog(w, r, name)
		return
	}
	s.writeTail(w, r, name, maxBytes)
}

// handleLegacyLogs returns the log as plain text, capped at the maximum tail.
func (s *Server) handleLegacyLogs(w http.ResponseWriter, r *http.Request) {
	s.writeTail(w, r, chi.URLParam(r, "name"), math.MaxInt)
}

func (s *Server) writeTail(w http.ResponseWriter, r *http.Request, name string, maxBytes int) {
	text, err := s.logs.Tail(name, maxBytes)
	if err != nil {
		s.writeLogError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// streamLog follows a log as server-sent events. Each log line becomes a data
// line; the stream ends with an "end" event naming the stop reason.
func (s *Server) streamLog(w http.ResponseWriter, r *http.Request, name string) {
	path, err := s.logs.Resolve(name)
	if err != nil {
		s.writeLogError(w, r, err)
		return
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		s.writeLogError(w, r, fmt.Errorf("%w: %s", logstore.ErrLogNotFound, filepath.Base(path)))
		return
	}

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	metrics.LogFollowStreams.Inc()
	defer metrics.LogFollowStreams.Dec()

	logger := log.WithComponentFromContext(r.Context(), "api").With().Str(log.FieldLogPath, path).Logger()
	logger.Debug().Str(log.FieldEvent, "logs.follow_start").Msg("log follow started")

	reason, err := s.logs.Follow(r.Context(), name, logstore.FromTail, launcher.Finished, func(chunk string) error {
		if _, err := w.Write([]byte(sseData(chunk))); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil {
		// The client is gone or the file vanished; headers are already out.
		logger.Debug().Err(err).Str(log.FieldEvent, "logs.follow_error").Msg("log follow ended with error")
		return
	}
	if reason != logstore.StopCanceled {
		_, _ = fmt.Fprintf(w, "event: end\ndata: %s\n\n", reason)
		_ = rc.Flush()
	}
	logger.Debug().Str(log.FieldEvent, "logs.follow_stop").Str("reason", string(reason)).Msg("log follow stopped")
}

// sseData frames text as one SSE event with a data line per log line.
func sseData(text string) string {
	text = strings.TrimSuffix(text, "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// handleLogDownload serves the whole log file as an attachment.
func (s *Server) handleLogDownload(w http.ResponseWriter, r *http.Request) {
	path, err := s.logs.Resolve(chi.URLParam(r, "name"))
	if err != nil {
		s.writeLogError(w, r, err)
		return
	}
	// #nosec G304 -- path is confined to the log directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", logstore.ErrLogNotFound, filepath.Base(path))
		}
		s.writeLogError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.writeLogError(w, r, fmt.Errorf("%w: %s", logstore.ErrLogNotFound, filepath.Base(path)))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name()))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
