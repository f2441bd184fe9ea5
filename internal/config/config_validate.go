// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package config

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInvalidPort       = errors.New("server port must be between 1 and 65535")
	ErrMissingDBPath     = errors.New("database path is required unless in_memory is set")
	ErrMissingCookieName = errors.New("session cookie_name is required")
	ErrInvalidTTL        = errors.New("session ttl must be positive")
	ErrInvalidBuffer     = errors.New("chat buffer sizes must be positive")
)

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Server.Port)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Session.CookieName == "" {
		return ErrMissingCookieName
	}
	if c.Session.TTL <= 0 {
		return ErrInvalidTTL
	}
	if c.Chat.SendBuffer <= 0 || c.Chat.DeliveryBuffer <= 0 {
		return ErrInvalidBuffer
	}
	if c.Chat.MaxMessageSize <= 0 {
		return errors.New("chat max_message_size must be positive")
	}
	if c.API.RateLimit <= 0 || c.API.AuthRateLimit <= 0 {
		return errors.New("api rate limits must be positive")
	}
	return nil
}
