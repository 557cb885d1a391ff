// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by jobgate spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	JobIDKey       = "job.id"
	JobProfileKey  = "job.profile"
	JobStateKey    = "job.state"
	JobPIDKey      = "job.pid"
	JobExitCodeKey = "job.exit_code"
	JobOutputKind  = "job.output_kind"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// JobAttributes describes a submission. Empty values are omitted.
func JobAttributes(id, profile, outputKind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if id != "" {
		attrs = append(attrs, attribute.String(JobIDKey, id))
	}
	if profile != "" {
		attrs = append(attrs, attribute.String(JobProfileKey, profile))
	}
	if outputKind != "" {
		attrs = append(attrs, attribute.String(JobOutputKind, outputKind))
	}
	return attrs
}

// ExitAttributes describes a finished job process.
func ExitAttributes(pid, exitCode int, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(JobPIDKey, pid),
		attribute.Int(JobExitCodeKey, exitCode),
		attribute.String(JobStateKey, state),
	}
}

// ErrorAttributes marks a span as failed with a coarse error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
