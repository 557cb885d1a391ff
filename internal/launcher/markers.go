// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// MarkerTag prefixes every line jobgate itself writes into a job log.
const MarkerTag = "jobgate:"

// ExitUnknown is reported when a job ended while no watcher observed it.
const ExitUnknown = -1

var (
	terminalMarker = regexp.MustCompile(`jobgate: (?:job (completed|failed|finished) \(exit=(-?\d+|unknown)\)|launch failed)`)
	anyMarker      = regexp.MustCompile(`jobgate: (?:started job=|job (?:completed|failed|finished) \(exit=|launch failed)`)
)

// Marker formats one marker line with an RFC 3339 UTC timestamp.
func Marker(now time.Time, format string, args ...any) string {
	return fmt.Sprintf("[%s] %s %s\n", now.UTC().Format(time.RFC3339), MarkerTag, fmt.Sprintf(format, args...))
}

// ExitMarker formats the terminal line for a finished job.
func ExitMarker(now time.Time, exitCode int, detail string) string {
	var line string
	switch {
	case exitCode == 0 && detail == "":
		line = "job completed (exit=0)"
	case exitCode == ExitUnknown && detail == "":
		line = "job finished (exit=unknown)"
	default:
		line = fmt.Sprintf("job failed (exit=%d)", exitCode)
		if detail != "" {
			line += ": " + detail
		}
	}
	return Marker(now, "%s", line)
}

// AppendLine appends text to the log at path, creating it and its directory if needed.
func AppendLine(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	// #nosec G304 -- log paths are resolved by the job resolver
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("append log: %w", err)
	}
	return f.Close()
}

// Exit describes the last terminal marker found in a log excerpt.
type Exit struct {
	// Completed is true only for a zero exit without a post-exit failure.
	Completed bool
	// Code is the exit status, or ExitUnknown.
	Code int
	// LaunchFailed is set when the command never started.
	LaunchFailed bool
}

// FindExit returns the last terminal marker in text.
func FindExit(text string) (Exit, bool) {
	matches := terminalMarker.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Exit{}, false
	}
	m := matches[len(matches)-1]
	if m[1] == "" {
		return Exit{Code: ExitUnknown, LaunchFailed: true}, true
	}
	code := ExitUnknown
	if m[2] != "unknown" {
		if n, err := strconv.Atoi(m[2]); err == nil {
			code = n
		}
	}
	return Exit{Completed: m[1] == "completed", Code: code}, true
}

// Finished reports whether the most recent marker in text is terminal, i.e.
// no run was started after the last recorded exit.
func Finished(text string) bool {
	locs := anyMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return false
	}
	last := locs[len(locs)-1]
	return terminalMarker.MatchString(text[last[0]:])
}
