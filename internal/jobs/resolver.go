// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/jobgate/internal/fsutil"
	"github.com/ManuGH/jobgate/internal/logstore"
)

// Resolution holds the paths derived from one input and output kind.
type Resolution struct {
	// ID is the input's base name without extension; it is the idempotency key.
	ID         string
	InputPath  string
	InputKind  string
	OutputKind string
	OutputPath string
	// PartialPath is where the command writes; it is renamed onto OutputPath
	// only after a zero exit.
	PartialPath string
	LogPath     string
	// AlreadyDone is set when OutputPath exists at resolution time.
	AlreadyDone bool
}

// Resolver derives output and log locations. It is a pure function of its
// inputs apart from the existence checks.
type Resolver struct {
	outputDir string
	logDir    string
}

// NewResolver returns a Resolver writing into outputDir and logDir. Both are
// made absolute so commands running in a profile's own dir see the same files.
func NewResolver(outputDir, logDir string) *Resolver {
	return &Resolver{outputDir: absPath(outputDir), logDir: absPath(logDir)}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// NormalizeKind strips a leading dot and lower-cases an output kind (".MOV" -> "mov").
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(kind), "."))
}

// Resolve checks inputPath exists, then that outputKind is usable, and
// returns the derived paths. All returned paths are absolute. Output and log
// directories are created if absent.
func (r *Resolver) Resolve(inputPath, outputKind string) (Resolution, error) {
	if err := fsutil.IsRegularFile(inputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, fsutil.ErrNotRegular) {
			return Resolution{}, fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
		}
		return Resolution{}, fmt.Errorf("%w: %s: %v", ErrInputNotFound, inputPath, err)
	}

	kind := NormalizeKind(outputKind)
	if err := checkKind(kind); err != nil {
		return Resolution{}, err
	}
	inputKind := NormalizeKind(filepath.Ext(inputPath))
	if kind == inputKind {
		return Resolution{}, fmt.Errorf("%w: output kind %q equals input kind", ErrInvalidFormat, kind)
	}

	id := fsutil.StripExt(inputPath)
	if id == "" {
		return Resolution{}, fmt.Errorf("%w: input %s has no base name", ErrInvalidFormat, inputPath)
	}

	for _, dir := range []string{r.outputDir, r.logDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Resolution{}, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	res := r.Paths(id, kind)
	res.InputPath = absPath(inputPath)
	res.InputKind = inputKind
	res.AlreadyDone = fsutil.Exists(res.OutputPath)
	return res, nil
}

// Paths returns the output, partial and log locations for id and a normalized kind.
func (r *Resolver) Paths(id, kind string) Resolution {
	return Resolution{
		ID:          id,
		OutputKind:  kind,
		OutputPath:  filepath.Join(r.outputDir, id+"."+kind),
		PartialPath: filepath.Join(r.outputDir, "."+id+".partial."+kind),
		LogPath:     filepath.Join(r.logDir, id+logstore.LogExt),
	}
}

func checkKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("%w: output kind is empty", ErrInvalidFormat)
	}
	if strings.ContainsAny(kind, `/\ `) || strings.Contains(kind, "..") || strings.ContainsRune(kind, 0) {
		return fmt.Errorf("%w: output kind %q", ErrInvalidFormat, kind)
	}
	return nil
}
