// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func captureAudit(t *testing.T, emit func()) map[string]interface{} {
	t.Helper()
	resetGlobal(t)
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	emit()

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("audit output is not JSON: %v (%s)", err, buf.String())
	}
	if line["audit"] != true {
		t.Fatalf("audit flag missing: %v", line)
	}
	return line
}

func TestAuditAdminAuthSuccess(t *testing.T) {
	line := captureAudit(t, func() { AuditAdminAuthSuccess("10.0.0.5:4444") })
	if line["event"] != "admin_auth_success" || line["remote"] != "10.0.0.5:4444" {
		t.Fatalf("unexpected audit line: %v", line)
	}
	if line["level"] != "info" {
		t.Fatalf("success should log at info, got %v", line["level"])
	}
}

func TestAuditAdminAuthFailure(t *testing.T) {
	line := captureAudit(t, func() { AuditAdminAuthFailure("10.0.0.9:1234") })
	if line["event"] != "admin_auth_failure" {
		t.Fatalf("unexpected audit line: %v", line)
	}
	if line["level"] != "warn" {
		t.Fatalf("failure should log at warn, got %v", line["level"])
	}
}

func TestAuditAdminTokenRejected(t *testing.T) {
	line := captureAudit(t, func() { AuditAdminTokenRejected("10.0.0.9:1234", "expired") })
	if line["event"] != "admin_token_rejected" || line["reason"] != "expired" {
		t.Fatalf("unexpected audit line: %v", line)
	}
}

func TestAuditDeviceHandshakeRejected(t *testing.T) {
	line := captureAudit(t, func() {
		AuditDeviceHandshakeRejected("GM_A", "gm", "10.0.0.7:9999", "invalid token")
	})
	if line["event"] != "device_handshake_rejected" {
		t.Fatalf("unexpected audit line: %v", line)
	}
	if line["deviceId"] != "GM_A" || line["deviceType"] != "gm" || line["reason"] != "invalid token" {
		t.Fatalf("device fields missing: %v", line)
	}
}

func TestAuditEvents_NeverCarrySecrets(t *testing.T) {
	resetGlobal(t)
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})

	AuditAdminAuthFailure("10.0.0.9:1234")
	AuditAdminTokenRejected("10.0.0.9:1234", "invalid signature")

	out := strings.ToLower(buf.String())
	for _, forbidden := range []string{"password", "bearer ", "jwt\":"} {
		if strings.Contains(out, forbidden) {
			t.Fatalf("audit output leaks %q: %s", forbidden, out)
		}
	}
}
