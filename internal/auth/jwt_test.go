package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	manager, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create token manager: %v", err)
	}

	token, expiresAt, err := manager.GenerateClientToken("web-frontend")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("Expected expiry in the future")
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.ClientID != "web-frontend" || claims.Role != RoleClient {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	manager, _ := NewTokenManager("test-secret", time.Hour)
	other, _ := NewTokenManager("other-secret", time.Hour)

	foreign, _, _ := other.GenerateClientToken("intruder")
	if _, err := manager.ValidateToken(foreign); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{
		ClientID: "late",
		Role:     RoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, _ := expired.SignedString([]byte("test-secret"))
	if _, err := manager.ValidateToken(signed); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	wrongRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &JWTClaims{ClientID: "d", Role: "device"})
	signed, _ = wrongRole.SignedString([]byte("test-secret"))
	if _, err := manager.ValidateToken(signed); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Expected ErrInvalidRole, got %v", err)
	}

	if _, err := manager.ValidateToken("not-a-token"); err == nil {
		t.Error("Expected malformed token to be rejected")
	}
}

func TestNewTokenManager(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}

	manager, err := NewTokenManager("s", 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if manager.ttl != DefaultTokenTTL {
		t.Errorf("Expected default TTL, got %s", manager.ttl)
	}

	if _, _, err := manager.GenerateClientToken(""); err == nil {
		t.Error("Expected error for empty client id")
	}
}
