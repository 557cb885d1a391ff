// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package logstore reads job logs while their external process may still be
// appending to them. Reads take no locks; a read racing a write sees a prefix
// of the final content.
package logstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ManuGH/jobgate/internal/fsutil"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrLogNotFound is returned when no log exists for the name.
	ErrLogNotFound = errors.New("logstore: log not found")
	// ErrInvalidLogName is returned for names that could address files outside the log directory.
	ErrInvalidLogName = errors.New("logstore: invalid log name")
)

// LogExt is appended to bare job ids.
const LogExt = ".log"

// Config configures a Store.
type Config struct {
	Dir string
	// DefaultTail is used when a caller asks for a non-positive window.
	DefaultTail int
	// MaxTail caps any requested window.
	MaxTail int
	// IdleTimeout ends a follow stream that saw no new data for this long.
	IdleTimeout time.Duration
	// PollInterval is the fallback re-read cadence when no fs events arrive.
	PollInterval time.Duration
}

// Store serves tail and follow reads from a log directory.
type Store struct {
	cfg Config
}

// New returns a Store, filling zero config values with defaults.
func New(cfg Config) *Store {
	if cfg.DefaultTail <= 0 {
		cfg.DefaultTail = 5000
	}
	if cfg.MaxTail <= 0 {
		cfg.MaxTail = 1 << 20
	}
	if cfg.DefaultTail > cfg.MaxTail {
		cfg.DefaultTail = cfg.MaxTail
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Store{cfg: cfg}
}

// Dir returns the log directory.
func (s *Store) Dir() string {
	return s.cfg.Dir
}

// Resolve maps a log name to its path. "clip" and "clip.log" both address
// <dir>/clip.log. Names containing "..", "/" or "\" are rejected.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLogName, name)
	}
	if !strings.HasSuffix(name, LogExt) {
		name += LogExt
	}
	path, err := fsutil.ConfineRelPath(s.cfg.Dir, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLogNotFound, name)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidLogName, err)
	}
	return path, nil
}

// Tail returns up to maxBytes from the end of the named log, decoded as UTF-8
// with invalid sequences replaced by U+FFFD.
func (s *Store) Tail(name string, maxBytes int) (string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	return s.TailPath(path, maxBytes)
}

// TailPath is Tail for an already resolved path.
func (s *Store) TailPath(path string, maxBytes int) (string, error) {
	data, _, err := readTail(path, s.window(maxBytes))
	if err != nil {
		return "", err
	}
	return decode(data), nil
}

func (s *Store) window(maxBytes int) int {
	if maxBytes <= 0 {
		return s.cfg.DefaultTail
	}
	if maxBytes > s.cfg.MaxTail {
		return s.cfg.MaxTail
	}
	return maxBytes
}

// readTail returns the last n bytes of path and the offset they start at.
func readTail(path string, n int) ([]byte, int64, error) {
	// #nosec G304 -- path is confined to the log directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrLogNotFound
		}
		return nil, 0, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, ErrLogNotFound
	}

	start := info.Size() - int64(n)
	if start < 0 {
		start = 0
	}
	buf := make([]byte, info.Size()-start)
	read, err := f.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, fmt.Errorf("read log: %w", err)
	}
	return buf[:read], start, nil
}

// decode never fails: malformed bytes, including a rune cut by the window
// start, become U+FFFD.
func decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// splitIncomplete holds back a trailing partial rune so it can be completed by
// the next read.
func splitIncomplete(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}
