// Circle - Habit Tracking and Social Accountability
// Copyright 2026 Circle Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/circle-app/circle

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/circle/config.yaml",
	"/etc/circle/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is the prefix for environment variable overrides.
// CIRCLE_SERVER_PORT -> server.port, CIRCLE_SESSION_COOKIE_NAME -> session.cookie_name.
const envPrefix = "CIRCLE_"

// Load builds the configuration from defaults, an optional YAML file,
// and CIRCLE_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps CIRCLE_SECTION_KEY_NAME to "section.key_name".
// Only the first underscore separates the section from the key, so multi-word
// keys keep their underscores.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return section
	}
	return section + "." + key
}

// findConfigFile returns the config file path to use, or "" if none exists.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
