// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Point CONFIG_PATH at an empty file so a config.yaml in the working
	// directory can never leak into the test.
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write empty config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "connect.sid" {
		t.Errorf("Session.CookieName = %q, want connect.sid", cfg.Session.CookieName)
	}
	if cfg.Session.TTL != 7*24*time.Hour {
		t.Errorf("Session.TTL = %v, want 168h", cfg.Session.TTL)
	}
	if cfg.Chat.SendBuffer != 256 || cfg.Chat.DeliveryBuffer != 256 {
		t.Errorf("chat buffers = %d/%d, want 256/256", cfg.Chat.SendBuffer, cfg.Chat.DeliveryBuffer)
	}
	if cfg.Chat.MaxMessageSize != 64*1024 {
		t.Errorf("Chat.MaxMessageSize = %d, want 65536", cfg.Chat.MaxMessageSize)
	}
	if cfg.API.RateLimit != 300 || cfg.API.AuthRateLimit != 30 {
		t.Errorf("rate limits = %d/%d, want 300/30", cfg.API.RateLimit, cfg.API.AuthRateLimit)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8080
  environment: production
session:
  cookie_name: circle.sid
chat:
  send_buffer: 64
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Environment != "production" {
		t.Errorf("Server.Environment = %q, want production", cfg.Server.Environment)
	}
	if cfg.Session.CookieName != "circle.sid" {
		t.Errorf("Session.CookieName = %q, want circle.sid", cfg.Session.CookieName)
	}
	if cfg.Chat.SendBuffer != 64 {
		t.Errorf("Chat.SendBuffer = %d, want 64", cfg.Chat.SendBuffer)
	}
	// Untouched sections keep their defaults.
	if cfg.Chat.DeliveryBuffer != 256 {
		t.Errorf("Chat.DeliveryBuffer = %d, want default 256", cfg.Chat.DeliveryBuffer)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CIRCLE_SERVER_PORT", "9090")
	t.Setenv("CIRCLE_SESSION_COOKIE_NAME", "env.sid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Session.CookieName != "env.sid" {
		t.Errorf("Session.CookieName = %q, want env.sid", cfg.Session.CookieName)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CIRCLE_SERVER_PORT", "server.port"},
		{"CIRCLE_SESSION_COOKIE_NAME", "session.cookie_name"},
		{"CIRCLE_CHAT_MAX_MESSAGE_SIZE", "chat.max_message_size"},
		{"CIRCLE_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults are valid", func(*Config) {}, nil},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, ErrInvalidPort},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, ErrInvalidPort},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, ErrMissingDBPath},
		{"in-memory needs no path", func(c *Config) { c.Database.Path = ""; c.Database.InMemory = true }, nil},
		{"missing cookie name", func(c *Config) { c.Session.CookieName = "" }, ErrMissingCookieName},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, ErrInvalidTTL},
		{"zero send buffer", func(c *Config) { c.Chat.SendBuffer = 0 }, ErrInvalidBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
