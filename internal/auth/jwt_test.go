// Tasklane - Realtime Notifications for Team Task Management
// Copyright 2026 Tasklane contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tasklane/tasklane

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tasklane/tasklane/internal/config"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: time.Hour,
	}
}

func TestNewJWTManager_RejectsShortSecret(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.JWTSecret = "too-short"

	if _, err := NewJWTManager(cfg); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	token, err := m.GenerateToken("user-42")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("expected user_id user-42, got %q", claims.UserID)
	}
}

func TestValidateToken_Failures(t *testing.T) {
	m, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager failed: %v", err)
	}

	t.Run("garbage token", func(t *testing.T) {
		if _, err := m.ValidateToken("not.a.token"); err == nil {
			t.Error("expected error for malformed token")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewJWTManager(&config.SecurityConfig{
			JWTSecret:      strings.Repeat("x", 32),
			SessionTimeout: time.Hour,
		})
		token, _ := other.GenerateToken("user-1")
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected error for token signed with different secret")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired, _ := NewJWTManager(&config.SecurityConfig{
			JWTSecret:      testSecurityConfig().JWTSecret,
			SessionTimeout: -time.Minute,
		})
		token, _ := expired.GenerateToken("user-1")
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected error for expired token")
		}
	})

	t.Run("unsigned algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"})
		token, _ := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected error for alg=none token")
		}
	})

	t.Run("missing user claim", func(t *testing.T) {
		bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		token, _ := bare.SignedString([]byte(testSecurityConfig().JWTSecret))
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected error for token without user_id")
		}
	})
}
