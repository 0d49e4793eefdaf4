// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package logging

// Audit events for the orchestrator's two authentication surfaces:
// the admin password exchange and the device WebSocket handshake.
// Each is a plain log event tagged audit=true so a venue running JSON
// logs can grep the night's auth activity without a separate sink.
// Passwords and raw tokens are never logged, only outcomes.

// AuditAdminAuthSuccess records a successful admin password exchange.
func AuditAdminAuthSuccess(remoteAddr string) {
	Info().
		Bool("audit", true).
		Str("event", "admin_auth_success").
		Str("remote", remoteAddr).
		Msg("admin authenticated")
}

// AuditAdminAuthFailure records a rejected admin password attempt.
// Repeated failures from one address are the signature of a guessing
// attack on the venue network.
func AuditAdminAuthFailure(remoteAddr string) {
	Warn().
		Bool("audit", true).
		Str("event", "admin_auth_failure").
		Str("remote", remoteAddr).
		Msg("admin authentication rejected")
}

// AuditAdminTokenRejected records an admin-protected endpoint refusing
// a missing, expired or invalid bearer token.
func AuditAdminTokenRejected(remoteAddr, reason string) {
	Warn().
		Bool("audit", true).
		Str("event", "admin_token_rejected").
		Str("remote", remoteAddr).
		Str("reason", reason).
		Msg("admin bearer token rejected")
}

// AuditDeviceHandshakeRejected records a WebSocket handshake that
// failed authentication or identity validation before upgrade.
func AuditDeviceHandshakeRejected(deviceID, deviceType, remoteAddr, reason string) {
	Warn().
		Bool("audit", true).
		Str("event", "device_handshake_rejected").
		Str("deviceId", deviceID).
		Str("deviceType", deviceType).
		Str("remote", remoteAddr).
		Str("reason", reason).
		Msg("device handshake rejected")
}
