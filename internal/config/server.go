// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net"
	"time"
)

// ServerConfig holds the http.Server settings for the API listener.
type ServerConfig struct {
	ListenAddr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes bounds request header size.
	MaxHeaderBytes int

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout time.Duration

	CORSOrigins []string
}

// ServerConfig converts the YAML view into the runtime server settings.
func (c AppConfig) ServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      c.Server.ListenAddr,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		MaxHeaderBytes:  c.Server.MaxHeaderBytes,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		CORSOrigins:     c.Server.CORSOrigins,
	}
}

// BindListenAddr replaces the host part of a listen address of the form
// ":PORT". Explicit host:port values are left untouched.
func BindListenAddr(listenAddr, bind string) string {
	if bind == "" {
		return listenAddr
	}
	if listenAddr == "" {
		return net.JoinHostPort(bind, "0")
	}
	if listenAddr[0] != ':' {
		return listenAddr
	}
	return net.JoinHostPort(bind, listenAddr[1:])
}
