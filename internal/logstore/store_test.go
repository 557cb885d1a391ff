// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(Config{Dir: dir, DefaultTail: 16, MaxTail: 64}), dir
}

func TestResolve(t *testing.T) {
	s, dir := newStore(t)
	realDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "bare id", in: "clip", want: filepath.Join(realDir, "clip.log")},
		{name: "with extension", in: "clip.log", want: filepath.Join(realDir, "clip.log")},
		{name: "parent traversal", in: "../secret", wantErr: ErrInvalidLogName},
		{name: "dot dot inside", in: "a..b", wantErr: ErrInvalidLogName},
		{name: "slash", in: "sub/clip", wantErr: ErrInvalidLogName},
		{name: "backslash", in: `sub\clip`, wantErr: ErrInvalidLogName},
		{name: "empty", in: "", wantErr: ErrInvalidLogName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTail(t *testing.T) {
	s, dir := newStore(t)
	content := strings.Repeat("0123456789", 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.log"), []byte(content), 0o600))

	got, err := s.Tail("clip", 5)
	require.NoError(t, err)
	assert.Equal(t, "56789", got)

	got, err = s.Tail("clip.log", 0)
	require.NoError(t, err)
	assert.Equal(t, content[len(content)-16:], got, "non-positive window uses the default")

	got, err = s.Tail("clip", 1000)
	require.NoError(t, err)
	assert.Len(t, got, 64, "window is capped")
}

func TestTail_WholeFileWhenSmaller(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.log"), []byte("short\n"), 0o600))

	got, err := s.Tail("a", 50)
	require.NoError(t, err)
	assert.Equal(t, "short\n", got)
}

func TestTail_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Tail("missing", 10)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestTail_MissingDirIsNotFound(t *testing.T) {
	s := New(Config{Dir: filepath.Join(t.TempDir(), "absent")})
	_, err := s.Tail("clip", 10)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestTail_InvalidBytesReplaced(t *testing.T) {
	s, dir := newStore(t)
	// "é" is 0xC3 0xA9; a 3-byte window cuts it in half.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.log"), []byte("xé\xffok"), 0o600))

	got, err := s.Tail("u", 4)
	require.NoError(t, err)
	assert.Equal(t, "��ok", got)

	got, err = s.Tail("u", 64)
	require.NoError(t, err)
	assert.Equal(t, "xé�ok", got)
}

func TestTail_Monotonic(t *testing.T) {
	s, dir := newStore(t)
	path := filepath.Join(dir, "grow.log")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o600))

	first, err := s.Tail("grow", 64)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("line2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	second, err := s.Tail("grow", 64)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(second, first), "earlier read must be a prefix of a later one")
}

func TestSplitIncomplete(t *testing.T) {
	complete, rest := splitIncomplete([]byte("ab\xe2\x82"))
	assert.Equal(t, []byte("ab"), complete)
	assert.Equal(t, []byte("\xe2\x82"), rest)

	complete, rest = splitIncomplete([]byte("ab€"))
	assert.Equal(t, []byte("ab€"), complete)
	assert.Nil(t, rest)

	complete, rest = splitIncomplete([]byte("ab\xff"))
	assert.Equal(t, []byte("ab\xff"), complete)
	assert.Nil(t, rest)
}
