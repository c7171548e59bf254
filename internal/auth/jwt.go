package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleClient is the only role issued for API clients
const RoleClient = "client"

// DefaultTokenTTL is the lifetime of a client token
const DefaultTokenTTL = 30 * 24 * time.Hour

// ErrInvalidRole is returned for tokens that were not issued to API clients
var ErrInvalidRole = errors.New("token role is not allowed")

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 client tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a token manager for the given secret
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}, nil
}

// GenerateClientToken generates a JWT token for an API client
func (m *TokenManager) GenerateClientToken(clientID string) (string, time.Time, error) {
	if clientID == "" {
		return "", time.Time{}, errors.New("client id is required")
	}

	now := time.Now()
	expiresAt := now.Add(m.ttl)
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     RoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (m *TokenManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Role != RoleClient {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
