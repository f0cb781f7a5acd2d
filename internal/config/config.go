// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

// Package config provides layered configuration for the Tasklane realtime
// backend using Koanf v2.
//
// Configuration Loading Order (highest priority wins):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Client    ClientConfig    `koanf:"client"`
	NATS      NATSConfig      `koanf:"nats"`
	Store     StoreConfig     `koanf:"store"`
	Push      PushConfig      `koanf:"push"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SecurityConfig holds authentication and rate limiting settings.
//
// JWTSecret signs the bearer tokens presented on the socket upgrade URL.
// The REST layer that mints those tokens shares the same secret.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// WebSocketConfig holds socket transport tuning.
type WebSocketConfig struct {
	ReadBufferSize   int           `koanf:"read_buffer_size"`
	WriteBufferSize  int           `koanf:"write_buffer_size"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteWait        time.Duration `koanf:"write_wait"`
	PongWait         time.Duration `koanf:"pong_wait"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendBuffer       int           `koanf:"send_buffer"`
}

// PingPeriod derives the ping interval from PongWait. Must be shorter
// than PongWait or the peer times out between pings.
func (c WebSocketConfig) PingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// ClientConfig holds the client-side connection manager settings.
type ClientConfig struct {
	URL           string        `koanf:"url"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxRetries    int           `koanf:"max_retries"`
}

// NATSConfig holds settings for the multi-node notification bridge.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Subject        string `koanf:"subject"`
}

// StoreConfig holds BadgerDB notification store settings.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// PushConfig holds mobile push fallback settings.
type PushConfig struct {
	Enabled       bool          `koanf:"enabled"`
	GatewayURL    string        `koanf:"gateway_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks required fields and value ranges. Called by Load();
// exported so tests and embedding applications can validate hand-built
// configs.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.WebSocket.PongWait <= 0 {
		return fmt.Errorf("websocket.pong_wait must be positive")
	}
	if c.WebSocket.WriteWait <= 0 {
		return fmt.Errorf("websocket.write_wait must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket.max_message_size must be positive")
	}
	if c.Client.RetryInterval <= 0 {
		return fmt.Errorf("client.retry_interval must be positive")
	}
	if c.Client.MaxRetries < 0 {
		return fmt.Errorf("client.max_retries must not be negative")
	}
	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled without the embedded server")
	}
	if c.Push.Enabled && !strings.HasPrefix(c.Push.GatewayURL, "http") {
		return fmt.Errorf("push.gateway_url must be an http(s) URL when push is enabled")
	}
	return nil
}
