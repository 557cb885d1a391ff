// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginGuard(t *testing.T) {
	guard := OriginGuard([]string{"https://ui.example.com"})(http.HandlerFunc(okHandler))

	tests := []struct {
		name    string
		method  string
		headers map[string]string
		want    int
	}{
		{name: "cli without origin", method: http.MethodPost, want: http.StatusOK},
		{name: "safe method foreign origin", method: http.MethodGet, headers: map[string]string{"Origin": "https://evil.test"}, want: http.StatusOK},
		{name: "same origin", method: http.MethodPost, headers: map[string]string{"Origin": "http://jobgate.local:8000"}, want: http.StatusOK},
		{name: "allowed origin", method: http.MethodPost, headers: map[string]string{"Origin": "https://UI.example.com:443"}, want: http.StatusOK},
		{name: "foreign origin", method: http.MethodPost, headers: map[string]string{"Origin": "https://evil.test"}, want: http.StatusForbidden},
		{name: "foreign referer", method: http.MethodPost, headers: map[string]string{"Referer": "https://evil.test/page"}, want: http.StatusForbidden},
		{name: "same origin referer", method: http.MethodPost, headers: map[string]string{"Referer": "http://jobgate.local:8000/ui"}, want: http.StatusOK},
		{name: "malformed origin", method: http.MethodPost, headers: map[string]string{"Origin": "javascript:alert(1)"}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/jobs", nil)
			req.Host = "jobgate.local:8000"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, serve(guard, req).Code)
		})
	}
}

func TestNormalizeOrigin(t *testing.T) {
	tests := map[string]string{
		"HTTP://Example.COM:80":    "http://example.com",
		"https://example.com:8443": "https://example.com:8443",
		"http://[::1]:8000":        "http://[::1]:8000",
		"http://[::1]":             "http://[::1]",
	}
	for in, want := range tests {
		got, ok := normalizeOrigin(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "example.com", "ftp://example.com", "http://example.com:99999"} {
		_, ok := normalizeOrigin(bad)
		assert.False(t, ok, bad)
	}
}
