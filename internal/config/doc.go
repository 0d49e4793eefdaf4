// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

/*
Package config provides centralized configuration management for the
ALN Orchestrator.

This package handles loading, validation, and parsing of environment
variables and an optional YAML config file for all application
components. It ensures consistent configuration across the server and
provides sensible defaults for optional settings.

# Configuration Sources

The package reads configuration from, in increasing order of priority:

  - Built-in defaults
  - An optional YAML config file (config.yaml, or the path named by
    CONFIG_PATH)
  - Environment variables

# Configuration Structure

  - ServerConfig: HTTP/WebSocket listener settings
  - VLCConfig: connection details for the VLC HTTP control interface
  - AdminConfig: GM/admin authentication (JWT secret, bcrypt password)
  - SessionConfig: session timeout and device-count limits
  - OfflineQueueConfig: offline batch intake idempotency cache sizing
  - CORSConfig: allowed scanner/browser origins
  - LoggingConfig: zerolog level and output format

# Environment Variables

	HTTP_PORT, HTTP_HOST              server.port, server.host
	VLC_HOST, VLC_PORT, VLC_PASSWORD  vlc.host, vlc.port, vlc.password
	ADMIN_PASSWORD, ADMIN_JWTSECRET   admin.password, admin.jwtsecret
	SESSION_TIMEOUT_MS                session.timeoutms
	SESSION_MAX_DEVICES               session.maxdevices
	OFFLINE_MAX_BATCH_AGE_MS          offlinequeue.maxbatchagems
	OFFLINE_CACHE_SIZE                offlinequeue.cachesize
	CORS_ORIGINS                      cors.origins (comma-separated)
	LOG_LEVEL, LOG_FORMAT             logging.level, logging.format
	DATA_DIR, TOKENS_FILE             datadir, tokensfile

# Usage Example

	import "github.com/maxepunk/aln-orchestrator/internal/config"

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("session timeout: %s\n", cfg.SessionTimeout())

# Validation

Validate() checks required fields (admin.jwtsecret, datadir,
tokensfile), numeric ranges (ports, timeouts, device counts), and
enum fields (logging.level, logging.format). It is called once at the
end of LoadWithKoanf.

# Admin Password Hashing

Admin.Password is the plaintext value read from config/env. LoadWithKoanf
bcrypt-hashes it once into Admin.PasswordHash; the plaintext should not
be retained or logged by callers beyond that point.

# Docker Deployment

	services:
	  aln-orchestrator:
	    image: ghcr.io/maxepunk/aln-orchestrator:latest
	    environment:
	      ADMIN_PASSWORD: ${ADMIN_PASSWORD}
	      ADMIN_JWTSECRET: ${ADMIN_JWTSECRET}
	      VLC_HOST: vlc
	      VLC_PASSWORD: ${VLC_PASSWORD}
	    ports:
	      - "3000:3000"

# Thread Safety

The Config struct is immutable after LoadWithKoanf() returns, making it safe
for concurrent access from multiple goroutines without synchronization.
*/
package config
