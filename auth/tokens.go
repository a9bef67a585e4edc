package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/depinlaunch/web-backend/models"
)

// SessionTimeout defines how long a user can be inactive before being logged out
const SessionTimeout = 30 * time.Minute

// AccessTokenExpiry defines how long the JWT access token is valid
const AccessTokenExpiry = 15 * time.Minute

// RefreshTokenExpiry defines how long the refresh token is valid (absolute max)
const RefreshTokenExpiry = 30 * 24 * time.Hour

// TokenClaims represents JWT access token claims
type TokenClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID uint   `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs a short-lived access token bound to a session.
func GenerateAccessToken(jwtKey []byte, userID uint, email, role string, sessionID uint) (string, error) {
	claims := &TokenClaims{
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ParseAccessToken validates a token string and returns its claims.
func ParseAccessToken(jwtKey []byte, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// SessionExpired reports whether a session is dead and why: either past its
// absolute lifetime or idle beyond the inactivity timeout.
func SessionExpired(sess *models.Session, now time.Time) (bool, string) {
	if now.Sub(sess.CreatedAt) > RefreshTokenExpiry {
		return true, "Session expired (30 days max)"
	}
	if now.Sub(sess.LastActivity) > SessionTimeout {
		return true, "Session expired due to inactivity"
	}
	return false, ""
}
