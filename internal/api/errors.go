// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/control/http/problem"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/launcher"
	"github.com/ManuGH/jobgate/internal/log"
	"github.com/ManuGH/jobgate/internal/logstore"
)

// Stable problem codes. Clients branch on these, never on titles.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInputNotFound    = "INPUT_NOT_FOUND"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeUnknownProfile   = "UNKNOWN_PROFILE"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInvalidJobID     = "INVALID_JOB_ID"
	CodeLaunchFailed     = "LAUNCH_FAILED"
	CodeLogNotFound      = "LOG_NOT_FOUND"
	CodeInvalidLogName   = "INVALID_LOG_NAME"
	CodeInternal         = "INTERNAL_ERROR"
)

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string) {
	problem.Write(w, r, status, problemType, title, code, detail, nil)
}

// writeSubmitError maps a submission error to its problem response.
func (s *Server) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var launchErr *launcher.LaunchError
	switch {
	case errors.Is(err, jobs.ErrBusy):
		holder, _ := s.jobs.Status()
		admission.WriteProblem(w, r, admission.NewGateBusy(holder, s.retryAfter))
	case errors.Is(err, jobs.ErrInputNotFound):
		writeProblem(w, r, http.StatusNotFound, "jobs/input-not-found", "Input Not Found", CodeInputNotFound, err.Error())
	case errors.Is(err, jobs.ErrInvalidFormat):
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-format", "Invalid Output Format", CodeInvalidFormat, err.Error())
	case errors.Is(err, jobs.ErrUnknownProfile):
		writeProblem(w, r, http.StatusBadRequest, "jobs/unknown-profile", "Unknown Profile", CodeUnknownProfile, err.Error())
	case errors.Is(err, jobs.ErrInvalidParameter):
		writeProblem(w, r, http.StatusBadRequest, "jobs/invalid-parameter", "Invalid Parameter", CodeInvalidParameter, err.Error())
	case errors.As(err, &launchErr):
		writeProblem(w, r, http.StatusInternalServerError, "jobs/launch-failed", "Launch Failed", CodeLaunchFailed, launchErr.Error())
	default:
		s.writeInternal(w, r, "jobs.submit_failed", err)
	}
}

func (s *Server) writeLogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, logstore.ErrLogNotFound):
		writeProblem(w, r, http.StatusNotFound, "logs/not-found", "Log Not Found", CodeLogNotFound, err.Error())
	case errors.Is(err, logstore.ErrInvalidLogName):
		writeProblem(w, r, http.StatusBadRequest, "logs/invalid-name", "Invalid Log Name", CodeInvalidLogName, err.Error())
	default:
		s.writeInternal(w, r, "logs.read_failed", err)
	}
}

func (s *Server) writeInternal(w http.ResponseWriter, r *http.Request, event string, err error) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).Str(log.FieldEvent, event).Msg("request failed")
	writeProblem(w, r, http.StatusInternalServerError, "server/internal", "Internal Server Error", CodeInternal, "An unexpected error occurred.")
}
