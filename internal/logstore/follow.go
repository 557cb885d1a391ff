// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package logstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/jobgate/internal/log"
	"github.com/fsnotify/fsnotify"
)

// StopReason tells why Follow returned without error.
type StopReason string

const (
	StopCompleted StopReason = "completed"
	StopIdle      StopReason = "idle"
	StopCanceled  StopReason = "canceled"
)

// FollowFrom selects where a follow stream starts.
type FollowFrom int64

// FromTail starts with the default tail window.
const FromTail FollowFrom = -1

// Follow streams the named log to fn as it grows, starting at offset
// (FromTail for the default tail window). It returns when done reports true
// for the data seen so far, when no data arrived for the idle timeout, or
// when ctx is cancelled. An error from fn ends the stream with that error.
func (s *Store) Follow(ctx context.Context, name string, offset FollowFrom, done func(string) bool, fn func(chunk string) error) (StopReason, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}

	// #nosec G304 -- path is confined to the log directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrLogNotFound
		}
		return "", fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	pos := int64(offset)
	if offset < 0 {
		info, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("stat log: %w", err)
		}
		pos = info.Size() - int64(s.cfg.DefaultTail)
		if pos < 0 {
			pos = 0
		}
	}

	logger := log.WithComponentFromContext(ctx, "logstore").With().Str(log.FieldLogPath, path).Logger()

	events, closeWatch := s.watch(path)
	defer closeWatch()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	var (
		pending []byte
		carry   string
		buf     = make([]byte, 32*1024)
	)
	for {
		// Drain everything appended since the last read.
		for {
			n, err := f.ReadAt(buf, pos)
			if n > 0 {
				pos += int64(n)
				chunk, rest := splitIncomplete(append(pending, buf[:n]...))
				pending = append([]byte(nil), rest...)
				if len(chunk) > 0 {
					text := decode(chunk)
					if err := fn(text); err != nil {
						return "", err
					}
					if done != nil && done(carry+text) {
						return StopCompleted, nil
					}
					carry = lastLine(carry + text)
					resetTimer(idle, s.cfg.IdleTimeout)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return "", fmt.Errorf("read log: %w", err)
				}
				break
			}
		}

		select {
		case <-ctx.Done():
			return StopCanceled, nil
		case <-idle.C:
			logger.Debug().Dur("idle", s.cfg.IdleTimeout).Msg("log follow idle timeout")
			return StopIdle, nil
		case <-poll.C:
		case <-events:
		}
	}
}

// watch subscribes to write events on path. The returned channel is nil when
// fsnotify is unavailable, leaving the poll ticker in charge.
func (s *Store) watch(path string) (<-chan fsnotify.Event, func()) {
	logger := log.WithComponent("logstore")
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug().Err(err).Msg("fsnotify unavailable, polling")
		return nil, func() {}
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		logger.Debug().Err(err).Msg("fsnotify watch failed, polling")
		return nil, func() {}
	}

	out := make(chan fsnotify.Event, 1)
	stop := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) {
					continue
				}
				// Coalesce bursts; the reader drains to EOF anyway.
				select {
				case out <- ev:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, func() {
		close(stop)
		_ = w.Close()
		<-finished
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
