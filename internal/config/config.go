// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration, loaded from built-in
// defaults, an optional YAML config file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every setting
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Example - load configuration at startup:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal("failed to load config:", err)
//	}
//
// Thread Safety:
// Config is immutable after loading and safe for concurrent read
// access from multiple goroutines.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	VLC          VLCConfig          `koanf:"vlc"`
	Admin        AdminConfig        `koanf:"admin"`
	Session      SessionConfig      `koanf:"session"`
	OfflineQueue OfflineQueueConfig `koanf:"offlinequeue"`
	CORS         CORSConfig         `koanf:"cors"`
	Logging      LoggingConfig      `koanf:"logging"`

	// DataDir is the directory the Persistence Store writes its
	// namespaced JSON documents to (session state, game state).
	DataDir string `koanf:"datadir"`

	// TokensFile is the path to the token catalog JSON file loaded
	// once at startup by the Token Catalog.
	TokensFile string `koanf:"tokensfile"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight connections before forcing close.
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout"`
}

// VLCConfig holds connection details for the VLC HTTP control
// interface (http://host:port/requests/status.json) behind which the
// Video Queue drives the single shared display.
type VLCConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`

	// PollInterval is how often the Video Queue polls VLC status to
	// detect item completion.
	PollInterval time.Duration `koanf:"pollinterval"`

	// RequestTimeout bounds each individual VLC HTTP request.
	RequestTimeout time.Duration `koanf:"requesttimeout"`
}

// AdminConfig holds GM/admin authentication settings.
//
// Environment Variables:
//   - ADMIN_PASSWORD: plaintext admin password, bcrypt-hashed once at
//     load time into PasswordHash; never persisted in plaintext.
//   - ADMIN_JWTSECRET: HMAC secret used to sign admin bearer tokens.
type AdminConfig struct {
	// Password is the plaintext admin password as supplied via
	// config/env. It is bcrypt-hashed once at load time into
	// PasswordHash.
	Password string `koanf:"password"`

	// PasswordHash is the bcrypt hash derived from Password at load
	// time. Not settable via koanf directly.
	PasswordHash string `koanf:"-"`

	JWTSecret     string        `koanf:"jwtsecret"`
	TokenLifetime time.Duration `koanf:"tokenlifetime"`
}

// SessionConfig holds Session Manager defaults.
type SessionConfig struct {
	// TimeoutMs is the time since session start, in milliseconds, after
	// which a still-active session is automatically ended.
	TimeoutMs int64 `koanf:"timeoutms"`

	// MaxDevices is the maximum number of devices registered in a
	// session; a disconnected device keeps its record and its slot.
	MaxDevices int `koanf:"maxdevices"`
}

// OfflineQueueConfig holds Offline Batch Handler defaults.
type OfflineQueueConfig struct {
	// MaxBatchAgeMs is the maximum age, in milliseconds, a queued
	// offline scan may have before it is rejected as stale.
	MaxBatchAgeMs int64 `koanf:"maxbatchagems"`

	// CacheSize is the number of most-recent batchId results retained
	// for idempotent replay of POST /api/scan/batch.
	CacheSize int `koanf:"cachesize"`

	// CacheTTL is how long a batchId result is retained regardless of
	// cache pressure.
	CacheTTL time.Duration `koanf:"cachettl"`
}

// CORSConfig holds the allowed browser/scanner origins for the HTTP
// API and WebSocket upgrade handshake.
type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console. JSON is
	// recommended for production; console is human-readable for
	// development.
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Validate checks invariants that cannot be expressed as zero-value
// defaults. Called once at the end of LoadWithKoanf.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.VLC.Port <= 0 || c.VLC.Port > 65535 {
		return fmt.Errorf("vlc.port must be between 1 and 65535, got %d", c.VLC.Port)
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwtsecret must not be empty")
	}
	if c.Session.TimeoutMs <= 0 {
		return fmt.Errorf("session.timeoutms must be positive, got %d", c.Session.TimeoutMs)
	}
	if c.Session.MaxDevices <= 0 {
		return fmt.Errorf("session.maxdevices must be positive, got %d", c.Session.MaxDevices)
	}
	if c.OfflineQueue.MaxBatchAgeMs <= 0 {
		return fmt.Errorf("offlinequeue.maxbatchagems must be positive, got %d", c.OfflineQueue.MaxBatchAgeMs)
	}
	if c.OfflineQueue.CacheSize <= 0 {
		return fmt.Errorf("offlinequeue.cachesize must be positive, got %d", c.OfflineQueue.CacheSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if c.TokensFile == "" {
		return fmt.Errorf("tokensfile must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug|info|warn|error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// SessionTimeout returns the configured session auto-end duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMs) * time.Millisecond
}

// OfflineBatchMaxAge returns the configured maximum age for queued
// offline scans.
func (c *Config) OfflineBatchMaxAge() time.Duration {
	return time.Duration(c.OfflineQueue.MaxBatchAgeMs) * time.Millisecond
}
