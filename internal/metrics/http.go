// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobgate_http_requests_total",
		Help: "Total number of HTTP requests, by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobgate_http_request_duration_seconds",
		Help:    "HTTP request latency, by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	// LogFollowStreams tracks open log follow streams.
	LogFollowStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jobgate_log_follow_streams",
		Help: "Current number of open log follow streams.",
	})
)

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(route, method string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// GetHTTPRequests returns the current counter value (for testing).
func GetHTTPRequests(route, method string, status int) float64 {
	return counterValue(HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)))
}

// GetLogFollowStreams returns the current gauge value (for testing).
func GetLogFollowStreams() float64 {
	return gaugeValue(LogFollowStreams)
}
