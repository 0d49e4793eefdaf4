// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package auth implements the orchestrator's two authentication
// surfaces: admin password exchange (POST /api/admin/auth, bcrypt +
// HMAC-signed bearer tokens) and the WebSocket handshake JWT every
// device socket presents on connect.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maxepunk/aln-orchestrator/internal/config"
)

// AdminClaims is the payload of a bearer token minted by POST
// /api/admin/auth, presented on subsequent Authorization: Bearer
// headers.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// DeviceClaims is the payload presented by a socket at WebSocket
// handshake: {token, deviceId, deviceType, version}. The
// JWT itself only carries deviceId/deviceType; version travels
// alongside it in the handshake payload, not inside the token.
type DeviceClaims struct {
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
	jwt.RegisteredClaims
}

// ErrTokenExpired and ErrInvalidToken distinguish the two ways token
// validation fails, mapped to distinct WS/HTTP error codes
// (TOKEN_EXPIRED vs INVALID_TOKEN).
var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// JWTManager issues and validates both admin bearer tokens and device
// handshake tokens. Both use HMAC-SHA256 signing over the same
// configured secret; only the claims shape and the default lifetime
// differ.
type JWTManager struct {
	secret        []byte
	tokenLifetime time.Duration
}

// NewJWTManager builds a JWTManager from AdminConfig. TokenLifetime
// defaults to 24h when unset.
func NewJWTManager(cfg config.AdminConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("admin.jwtsecret is required but was empty")
	}
	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(cfg.JWTSecret), tokenLifetime: lifetime}, nil
}

// TokenLifetime reports the configured admin/device token lifetime,
// used to populate the expiresIn field of POST /api/admin/auth.
func (m *JWTManager) TokenLifetime() time.Duration {
	return m.tokenLifetime
}

// GenerateAdminToken mints a bearer token for a successfully
// authenticated admin session.
func (m *JWTManager) GenerateAdminToken() (string, error) {
	claims := &AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, nil
}

// ValidateAdminToken verifies an Authorization: Bearer token and
// returns its claims.
func (m *JWTManager) ValidateAdminToken(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateDeviceToken mints a handshake token for deviceID/deviceType.
// Used by offline test tooling and scanner provisioning flows; the
// production path is POST /api/admin/auth minting admin tokens and
// the GM client reusing that same token as its handshake credential.
func (m *JWTManager) GenerateDeviceToken(deviceID, deviceType string) (string, error) {
	claims := &DeviceClaims{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign device token: %w", err)
	}
	return signed, nil
}

// ValidateDeviceToken verifies a handshake token and returns its
// claims. Device identity/type validation (length, enum membership)
// happens in the caller (internal/wsrouter) against the handshake
// payload, not the token claims, since a device may present a token
// minted before stricter validation was added.
func (m *JWTManager) ValidateDeviceToken(tokenString string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *JWTManager) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
