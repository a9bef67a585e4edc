package auth

import (
	"testing"
	"time"

	"github.com/depinlaunch/web-backend/models"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	key := []byte("test-signing-key")
	token, err := GenerateAccessToken(key, 42, "op@example.com", "admin", 7)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := ParseAccessToken(key, token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Email != "op@example.com" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.SessionID != 7 || claims.Subject != "42" {
		t.Errorf("identity claims = session %d subject %q", claims.SessionID, claims.Subject)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := GenerateAccessToken([]byte("key-one"), 1, "a@b.c", "user", 1)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := ParseAccessToken([]byte("key-two"), token); err == nil {
		t.Error("token signed with a different key was accepted")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	fresh := &models.Session{CreatedAt: now.Add(-time.Hour), LastActivity: now.Add(-time.Minute)}
	if expired, _ := SessionExpired(fresh, now); expired {
		t.Error("fresh session reported expired")
	}

	idle := &models.Session{CreatedAt: now.Add(-time.Hour), LastActivity: now.Add(-SessionTimeout - time.Minute)}
	if expired, reason := SessionExpired(idle, now); !expired || reason == "" {
		t.Errorf("idle session = %v, %q", expired, reason)
	}

	ancient := &models.Session{CreatedAt: now.Add(-RefreshTokenExpiry - time.Hour), LastActivity: now}
	if expired, _ := SessionExpired(ancient, now); !expired {
		t.Error("session past absolute lifetime reported alive")
	}
}
