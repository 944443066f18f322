package jwt

import (
	"errors"
	"testing"
	"time"
)

func newTestService() *HMACService {
	return NewHMACService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	s := newTestService()

	tok, err := s.GenerateAccessToken("ops")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Operator != "ops" {
		t.Fatalf("operator = %q, want ops", claims.Operator)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type = %q, want access", claims.TokenType)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	s := newTestService()

	tok, err := s.GenerateRefreshToken("ops")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	claims, err := s.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Fatalf("token type = %q, want refresh", claims.TokenType)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	s := newTestService()
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }

	tok, err := s.GenerateAccessToken("ops")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	s.now = time.Now
	if _, err := s.ValidateToken(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidateForeignToken(t *testing.T) {
	s := newTestService()
	other := NewHMACService("other-access", "other-refresh", time.Minute, time.Minute)

	tok, err := other.GenerateAccessToken("ops")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := s.ValidateToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	s := newTestService()
	if _, err := s.ValidateToken("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestGenerateWithoutSecret(t *testing.T) {
	s := NewHMACService("", "", time.Minute, time.Minute)
	if _, err := s.GenerateAccessToken("ops"); err == nil {
		t.Fatal("expected error without access secret")
	}
	if _, err := s.GenerateRefreshToken("ops"); err == nil {
		t.Fatal("expected error without refresh secret")
	}
}
