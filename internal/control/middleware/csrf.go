// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ManuGH/jobgate/internal/control/http/problem"
)

// OriginGuard rejects state-changing requests sent by a browser from a foreign
// origin. Requests without Origin or Referer come from non-browser clients
// such as the jobgate CLI and pass unchanged.
func OriginGuard(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			allowed["*"] = true
		} else if normalized, ok := normalizeOrigin(origin); ok {
			allowed[normalized] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin, present := requestOrigin(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}
			if origin == "" {
				writeOriginProblem(w, r, "malformed origin or referer header")
				return
			}
			if allowed["*"] || allowed[origin] || origin == sameOrigin(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeOriginProblem(w, r, "origin not trusted")
		})
	}
}

func writeOriginProblem(w http.ResponseWriter, r *http.Request, detail string) {
	problem.Write(w, r, http.StatusForbidden, "server/origin", "Forbidden", "ORIGIN_FORBIDDEN", detail, nil)
}

// requestOrigin reports the normalized browser origin and whether the request
// carried one at all. An unparsable header yields ("", true).
func requestOrigin(r *http.Request) (string, bool) {
	if raw := r.Header.Get("Origin"); raw != "" {
		origin, _ := normalizeOrigin(raw)
		return origin, true
	}
	raw := r.Header.Get("Referer")
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", true
	}
	origin, _ := normalizeOrigin(u.Scheme + "://" + u.Host)
	return origin, true
}

// sameOrigin is derived from the Host header and the connection only.
// Forwarding headers are ignored.
func sameOrigin(r *http.Request) string {
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	origin, _ := normalizeOrigin(scheme + "://" + r.Host)
	return origin
}

func normalizeOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || strings.ContainsAny(host, " \t\r\n/@\\") {
		return "", false
	}

	port := u.Port()
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", false
		}
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	authority := host
	if strings.Contains(host, ":") && net.ParseIP(host) != nil {
		authority = "[" + host + "]"
	}
	if port != "" {
		authority = net.JoinHostPort(host, port)
	}
	return scheme + "://" + authority, true
}
