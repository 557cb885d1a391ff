// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for jobgate.
// Labels stay low-cardinality: no job ids, paths or request ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Submission outcomes.
const (
	OutcomeStarted        = "started"
	OutcomeSkipped        = "skipped"
	OutcomeBusy           = "busy"
	OutcomeInputNotFound  = "input_not_found"
	OutcomeInvalidFormat  = "invalid_format"
	OutcomeInvalidRequest = "invalid_request"
	OutcomeLaunchFailed   = "launch_failed"
)

var (
	// JobSubmissionsTotal counts submissions by profile and outcome.
	JobSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobgate_job_submissions_total",
		Help: "Total number of job submissions, by profile and outcome.",
	}, []string{"profile", "outcome"})

	// JobExitsTotal counts observed process exits by result (completed/failed/unknown).
	JobExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobgate_job_exits_total",
		Help: "Total number of job process exits, by profile and result.",
	}, []string{"profile", "result"})

	// JobDurationSeconds observes wall-clock job runtime.
	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobgate_job_duration_seconds",
		Help:    "Wall-clock runtime of job processes.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200, 14400},
	}, []string{"profile", "result"})
)

// RecordSubmission increments the submission counter.
func RecordSubmission(profile, outcome string) {
	JobSubmissionsTotal.WithLabelValues(profile, outcome).Inc()
}

// RecordJobExit records a finished job.
func RecordJobExit(profile, result string, seconds float64) {
	JobExitsTotal.WithLabelValues(profile, result).Inc()
	if seconds >= 0 {
		JobDurationSeconds.WithLabelValues(profile, result).Observe(seconds)
	}
}

// GetSubmissions returns the current counter value (for testing).
func GetSubmissions(profile, outcome string) float64 {
	return counterValue(JobSubmissionsTotal.WithLabelValues(profile, outcome))
}

// GetJobExits returns the current counter value (for testing).
func GetJobExits(profile, result string) float64 {
	return counterValue(JobExitsTotal.WithLabelValues(profile, result))
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
