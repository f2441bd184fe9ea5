// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

// Package config loads and validates application configuration using koanf.
// Configuration is layered: struct defaults, then an optional YAML file,
// then CIRCLE_-prefixed environment variables (highest priority).
package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Chat     ChatConfig     `koanf:"chat"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds BadgerDB settings.
type DatabaseConfig struct {
	// Path is the BadgerDB data directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// SessionConfig holds session cookie and lifetime settings.
type SessionConfig struct {
	// CookieName is the name of the session cookie shared by the HTTP and
	// WebSocket layers.
	CookieName string        `koanf:"cookie_name"`
	TTL        time.Duration `koanf:"ttl"`
	// Sliding extends session expiry on each authenticated request.
	Sliding         bool          `koanf:"sliding"`
	CookieSecure    bool          `koanf:"cookie_secure"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// ChatConfig holds WebSocket chat tuning parameters.
type ChatConfig struct {
	// SendBuffer is the per-connection outbound frame buffer size.
	SendBuffer int `koanf:"send_buffer"`
	// DeliveryBuffer is the per-connection pending-verification queue size.
	DeliveryBuffer int `koanf:"delivery_buffer"`
	// MaxMessageSize caps inbound frame size in bytes.
	MaxMessageSize int64 `koanf:"max_message_size"`
}

// APIConfig holds REST surface settings.
type APIConfig struct {
	// RateLimit is requests per minute per IP for data endpoints.
	RateLimit int `koanf:"rate_limit"`
	// AuthRateLimit is requests per minute per IP for auth endpoints.
	AuthRateLimit  int      `koanf:"auth_rate_limit"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5000,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:     "/data/circle",
			InMemory: false,
		},
		Session: SessionConfig{
			CookieName:      "connect.sid",
			TTL:             7 * 24 * time.Hour,
			Sliding:         true,
			CookieSecure:    false,
			CleanupInterval: time.Hour,
		},
		Chat: ChatConfig{
			SendBuffer:     256,
			DeliveryBuffer: 256,
			MaxMessageSize: 64 * 1024,
		},
		API: APIConfig{
			RateLimit:      300,
			AuthRateLimit:  30,
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
