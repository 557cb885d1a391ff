// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil holds filesystem helpers shared by the job and log stores.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEscapesRoot is returned when a name resolves outside its root directory.
	ErrEscapesRoot = errors.New("fsutil: path escapes root")
	// ErrNotRegular is returned for directories, devices and other non-regular files.
	ErrNotRegular = errors.New("fsutil: not a regular file")
)

// ConfineRelPath joins root and relTarget and verifies the result stays
// physically underneath root after symlink resolution. Backslashes, absolute
// targets and leading ".." segments are rejected before touching the disk.
func ConfineRelPath(root, relTarget string) (string, error) {
	if relTarget == "" || strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("%w: %q", ErrEscapesRoot, relTarget)
	}
	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrEscapesRoot, relTarget)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}

	full := filepath.Join(realRoot, cleanRel)
	real := full
	if rp, err := filepath.EvalSymlinks(full); err == nil {
		real = rp
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve %s: %w", full, err)
	} else if rp, err := filepath.EvalSymlinks(filepath.Dir(full)); err == nil {
		real = filepath.Join(rp, filepath.Base(full))
	}

	rel, err := filepath.Rel(realRoot, real)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrEscapesRoot, relTarget)
	}
	return real, nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return abs, nil
	}
	return real, nil
}

// IsRegularFile returns nil if path exists and is a regular file.
func IsRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return nil
}

// Exists reports whether path exists, following symlinks.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// StripExt returns the base name of path without its final extension.
// "dir/clip.mp4" yields "clip"; "archive.tar.gz" yields "archive.tar".
func StripExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
