// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts commands in their own process group. A job
// started this way outlives the HTTP request and the daemon that launched it.
package procgroup

import "os/exec"

// Set configures the command to start in a new process group.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Alive reports whether a process with the given pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return alive(pid)
}
