// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import "errors"

var (
	// ErrInputNotFound is returned when the input path does not name a regular file.
	ErrInputNotFound = errors.New("input not found")
	// ErrInvalidFormat is returned when the output kind is unusable or equals the input kind.
	ErrInvalidFormat = errors.New("invalid output format")
	// ErrBusy is returned when another job holds the admission gate. It is the
	// only retryable submission error.
	ErrBusy = errors.New("job already running")
	// ErrUnknownProfile is returned for submissions naming no configured profile.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrInvalidParameter is returned for parameters the profile does not accept.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidJobID is returned by state lookups for ids that are not plain names.
	ErrInvalidJobID = errors.New("invalid job id")
)
