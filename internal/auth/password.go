// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordManager validates the single admin password against a
// bcrypt hash computed once at config load time (AdminConfig.Password
// is hashed into AdminConfig.PasswordHash by internal/config).
type PasswordManager struct {
	hash []byte
}

// NewPasswordManager wraps an already-computed bcrypt hash.
func NewPasswordManager(passwordHash string) (*PasswordManager, error) {
	if passwordHash == "" {
		return nil, fmt.Errorf("admin password hash is required but was empty")
	}
	return &PasswordManager{hash: []byte(passwordHash)}, nil
}

// HashPassword bcrypt-hashes a plaintext password at cost 12,
// balancing security against login latency.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Validate reports whether candidate matches the configured admin
// password. bcrypt.CompareHashAndPassword is timing-safe by design.
func (m *PasswordManager) Validate(candidate string) bool {
	return bcrypt.CompareHashAndPassword(m.hash, []byte(candidate)) == nil
}
