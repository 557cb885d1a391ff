// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix

package procgroup

import (
	"os"
	"os/exec"
)

func set(*exec.Cmd) {}

func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
