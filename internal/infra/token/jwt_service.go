// Package token issues and validates the bearer tokens that identify a principal.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTService signs HS256 access tokens carrying the principal
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewJWTService creates a service; secret must not be empty
func NewJWTService(secret string, ttl time.Duration, issuer string) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWTService{secret: []byte(secret), ttl: ttl, issuer: issuer}, nil
}

// GenerateAccessToken signs a token for the principal
func (s *JWTService) GenerateAccessToken(p tenant.Principal) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("principal has no user id")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": p.UserID,
		"email":   p.Email,
		"name":    p.DisplayName,
		"type":    "access",
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies the signature and expiry and returns the principal
func (s *JWTService) ValidateAccessToken(tokenString string) (tenant.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return tenant.Principal{}, ErrTokenExpired
		}
		return tenant.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return tenant.Principal{}, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return tenant.Principal{}, ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return tenant.Principal{}, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	return tenant.Principal{UserID: userID, Email: email, DisplayName: name}, nil
}
