// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	checks := []struct {
		name  string
		check bool
	}{
		{"server port", cfg.Server.Port == 4180},
		{"pong wait", cfg.WebSocket.PongWait == 60*time.Second},
		{"ping period shorter than pong wait", cfg.WebSocket.PingPeriod() < cfg.WebSocket.PongWait},
		{"retry interval", cfg.Client.RetryInterval == 5*time.Second},
		{"max retries", cfg.Client.MaxRetries == 5},
		{"nats disabled", !cfg.NATS.Enabled},
		{"notify subject", cfg.NATS.Subject == "tasklane.notify"},
		{"send buffer", cfg.WebSocket.SendBuffer == 256},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("default config: %s check failed", c.name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "jwt_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero pong wait", func(c *Config) { c.WebSocket.PongWait = 0 }, "pong_wait"},
		{"zero retry interval", func(c *Config) { c.Client.RetryInterval = 0 }, "retry_interval"},
		{"negative max retries", func(c *Config) { c.Client.MaxRetries = -1 }, "max_retries"},
		{"nats without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.EmbeddedServer = false
			c.NATS.URL = ""
		}, "nats.url"},
		{"push without gateway", func(c *Config) {
			c.Push.Enabled = true
			c.Push.GatewayURL = "not-a-url"
		}, "push.gateway_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TASKLANE_SECURITY_JWT_SECRET", testSecret)
	t.Setenv("TASKLANE_SERVER_PORT", "5001")
	t.Setenv("TASKLANE_CLIENT_MAX_RETRIES", "9")
	t.Setenv("TASKLANE_SECURITY_CORS_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 5001 {
		t.Errorf("expected env port 5001, got %d", cfg.Server.Port)
	}
	if cfg.Client.MaxRetries != 9 {
		t.Errorf("expected env max retries 9, got %d", cfg.Client.MaxRetries)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("expected comma-split CORS origins, got %v", cfg.Security.CORSOrigins)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error without a JWT secret")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TASKLANE_SERVER_PORT", "server.port"},
		{"TASKLANE_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"TASKLANE_NATS_EMBEDDED_SERVER", "nats.embedded_server"},
		{"TASKLANE_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
