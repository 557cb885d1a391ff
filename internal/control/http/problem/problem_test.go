// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusConflict, "jobs/busy", "Job already running", "JOB_GATE_BUSY", "another job holds the gate",
		map[string]any{"holder": "clip", "status": 999})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "jobs/busy", body["type"])
	assert.Equal(t, "JOB_GATE_BUSY", body["code"])
	assert.Equal(t, float64(http.StatusConflict), body["status"], "reserved extras must not override status")
	assert.Equal(t, "clip", body["holder"])
	assert.Equal(t, "/api/v1/jobs", body["instance"])
	assert.Equal(t, "req-1", body[JSONKeyRequestID])
}

func TestWrite_RequestIDFromResponseHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	rec.Header().Set(HeaderRequestID, "hdr-7")

	Write(rec, req, http.StatusNotFound, "logs/not-found", "Not Found", "LOG_NOT_FOUND", "", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hdr-7", body[JSONKeyRequestID])
	_, hasDetail := body["detail"]
	assert.False(t, hasDetail)
}
