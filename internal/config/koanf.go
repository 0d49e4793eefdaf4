// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aln-orchestrator/config.yaml",
	"/etc/aln-orchestrator/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
//
// Session timeout and offline batch age defaults follow the 4-hour /
// 1-hour windows used for a typical single-evening immersive game
// session: long enough to cover one playthrough, short enough that a
// forgotten session does not linger into the next day's run.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		VLC: VLCConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			Password:       "",
			PollInterval:   1 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		Admin: AdminConfig{
			Password:      "",
			JWTSecret:     "",
			TokenLifetime: 24 * time.Hour,
		},
		Session: SessionConfig{
			TimeoutMs:  4 * 60 * 60 * 1000, // 4 hours
			MaxDevices: 15,
		},
		OfflineQueue: OfflineQueueConfig{
			MaxBatchAgeMs: 60 * 60 * 1000, // 1 hour
			CacheSize:     100,
			CacheTTL:      1 * time.Hour,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		DataDir:    "/data/aln-orchestrator",
		TokensFile: "/data/aln-orchestrator/tokens.json",
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// After unmarshaling, LoadWithKoanf bcrypt-hashes Admin.Password into
// Admin.PasswordHash so the plaintext value never needs to be
// retained by callers.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths, e.g.
	// HTTP_PORT -> server.port, VLC_HOST -> vlc.host.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Admin.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		cfg.Admin.PasswordHash = string(hash)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"cors.origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - VLC_HOST -> vlc.host
//   - ADMIN_PASSWORD -> admin.password
//   - SESSION_TIMEOUT_MS -> session.timeoutms
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_port":           "server.port",
		"http_host":           "server.host",
		"server_shutdown_ms":  "server.shutdowntimeout",

		// VLC control interface
		"vlc_host":            "vlc.host",
		"vlc_port":            "vlc.port",
		"vlc_password":        "vlc.password",
		"vlc_poll_interval":   "vlc.pollinterval",
		"vlc_request_timeout": "vlc.requesttimeout",

		// Admin / GM authentication
		"admin_password":       "admin.password",
		"admin_jwtsecret":      "admin.jwtsecret",
		"admin_token_lifetime": "admin.tokenlifetime",

		// Session
		"session_timeout_ms":  "session.timeoutms",
		"session_max_devices": "session.maxdevices",

		// Offline batch queue
		"offline_max_batch_age_ms": "offlinequeue.maxbatchagems",
		"offline_cache_size":       "offlinequeue.cachesize",
		"offline_cache_ttl":        "offlinequeue.cachettl",

		// CORS
		"cors_origins": "cors.origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Data / catalog paths
		"data_dir":    "datadir",
		"tokens_file": "tokensfile",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
