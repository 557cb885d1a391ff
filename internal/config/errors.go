// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "errors"

var (
	// ErrUnknownConfigField is returned when the config file contains a key jobgate does not know.
	ErrUnknownConfigField = errors.New("config: unknown field")
	// ErrMultipleDocuments is returned when a config file holds more than one YAML document.
	ErrMultipleDocuments = errors.New("config: multiple YAML documents are not supported")
	// ErrUnknownDefaultProfile is returned when defaultProfile names no configured profile.
	ErrUnknownDefaultProfile = errors.New("config: default profile is not configured")
)
