// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ManuGH/jobgate/internal/config"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/go-chi/chi/v5"
)

// SubmitRequest is the body of POST /api/v1/jobs.
type SubmitRequest struct {
	Input      string            `json:"input"`
	OutputKind string            `json:"outputKind"`
	Profile    string            `json:"profile,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ConvertRequest is the body of the legacy POST /convert.
type ConvertRequest struct {
	Input        string `json:"input"`
	OutputFormat string `json:"output_format"`
}

// ConvertResponse is the legacy /convert answer.
type ConvertResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	OutputPath string `json:"output_path,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads one JSON object. Trailing data is an error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-request", "Invalid Request", CodeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-request", "Invalid Request", CodeInvalidRequest, "input is required")
		return
	}

	res, err := s.submit(r, jobs.Request{
		InputPath:  body.Input,
		OutputKind: body.OutputKind,
		Profile:    body.Profile,
		Parameters: body.Parameters,
	})
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}

	code := http.StatusAccepted
	if res.State == jobs.StateSkipped {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

// handleConvert serves the original green-screen endpoint: both skipped and
// started answer 200 with a status word.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body ConvertRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-request", "Invalid Request", CodeInvalidRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Input) == "" || strings.TrimSpace(body.OutputFormat) == "" {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-request", "Invalid Request", CodeInvalidRequest, "input and output_format are required")
		return
	}

	res, err := s.submit(r, jobs.Request{
		InputPath:  body.Input,
		OutputKind: body.OutputFormat,
		Profile:    config.ProfileChromaKey,
	})
	if err != nil {
		s.writeSubmitError(w, r, err)
		return
	}

	resp := ConvertResponse{OutputPath: res.OutputPath, LogPath: res.LogPath}
	if res.State == jobs.StateSkipped {
		resp.Status = "success"
		resp.Message = "output already exists, conversion skipped"
	} else {
		resp.Status = "started"
		resp.Message = fmt.Sprintf("conversion started, pid %d", res.PID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submit(r *http.Request, req jobs.Request) (jobs.Result, error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	res, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		logger.Info().Err(err).
			Str(log.FieldEvent, "jobs.rejected").
			Str(log.FieldInputPath, req.InputPath).
			Str(log.FieldProfile, req.Profile).
			Msg("submission rejected")
		return res, err
	}
	logger.Info().
		Str(log.FieldEvent, "jobs.accepted").
		Str(log.FieldJobID, res.ID).
		Str("state", string(res.State)).
		Int(log.FieldPID, res.PID).
		Msg("submission accepted")
	return res, nil
}

// handleCurrent returns the gate holder, or 204 when no job runs.
func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	holder, ok := s.jobs.Status()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, holder)
}

func (s *Server) handleJobState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-request", "Invalid Request", CodeInvalidRequest, "query parameter kind is required")
		return
	}

	st, err := s.jobs.JobState(id, kind)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, jobs.ErrInvalidJobID):
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-id", "Invalid Job ID", CodeInvalidJobID, err.Error())
	case errors.Is(err, jobs.ErrInvalidFormat):
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-format", "Invalid Output Format", CodeInvalidFormat, err.Error())
	default:
		s.writeInternal(w, r, "jobs.state_failed", err)
	}
}
