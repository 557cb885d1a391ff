// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/jobgate/internal/control/http/problem"
)

// CodeGateBusy is the stable problem code for a rejected admission.
const CodeGateBusy = "JOB_GATE_BUSY"

// DefaultRetryAfter is the hint sent to callers rejected by a busy gate.
const DefaultRetryAfter = 30 * time.Second

// Problem is a lightweight wrapper around RFC 7807 data for internal passing.
// The transport layer converts it with WriteProblem.
type Problem struct {
	Status     int
	Type       string
	Title      string
	Code       string
	Detail     string
	Extra      map[string]any
	RetryAfter time.Duration
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%s] %s: %s", p.Code, p.Title, p.Detail)
}

// NewGateBusy returns the 409 problem for a submission rejected while holder runs.
func NewGateBusy(holder Holder, retryAfter time.Duration) *Problem {
	extra := map[string]any{
		"holder": holder.JobID,
	}
	if !holder.StartedAt.IsZero() {
		extra["startedAt"] = holder.StartedAt.UTC().Format(time.RFC3339)
	}
	return &Problem{
		Status:     http.StatusConflict,
		Type:       "admission/gate-busy",
		Title:      "Job already running",
		Code:       CodeGateBusy,
		Detail:     "Another job is running; retry after it finishes.",
		Extra:      extra,
		RetryAfter: retryAfter,
	}
}

// WriteProblem writes p as an RFC 7807 response, adding Retry-After when set.
func WriteProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	if p.RetryAfter > 0 {
		secs := int((p.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	problem.Write(w, r, p.Status, p.Type, p.Title, p.Code, p.Detail, p.Extra)
}
