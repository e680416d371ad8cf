package store

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T, opts TokenOptions, revoker TokenRevoker) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret", revoker, opts)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}
	return svc
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, TokenOptions{}, nil)

	access, err := svc.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	subject, err := svc.Subject(access, TokenAccess)
	if err != nil {
		t.Fatalf("subject: %v", err)
	}
	if subject != "seller@example.com" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestTokenServiceRejectsWrongKind(t *testing.T) {
	svc := newTestTokenService(t, TokenOptions{}, nil)

	access, err := svc.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	refresh, err := svc.NewRefreshToken("seller@example.com")
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if _, err := svc.Subject(access, TokenRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token at refresh flow: want ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Subject(refresh, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token at access flow: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenServiceExpiredIsDistinguishable(t *testing.T) {
	svc := newTestTokenService(t, TokenOptions{AccessTTL: -time.Hour}, nil)

	expired, err := svc.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := svc.Subject(expired, TokenAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenServiceRejectsTamperedSignature(t *testing.T) {
	svc := newTestTokenService(t, TokenOptions{}, nil)
	otherSecret, err := NewTokenService("other-secret", nil, TokenOptions{})
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	forged, err := otherSecret.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("forge token: %v", err)
	}
	if _, err := svc.Subject(forged, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken for bad signature, got %v", err)
	}

	good, err := svc.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	parts := strings.Split(good, ".")
	mangled := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := svc.Subject(mangled, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken for mangled token, got %v", err)
	}
}

func TestTokenServiceRevocation(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	svc := newTestTokenService(t, TokenOptions{}, revoker)

	access, err := svc.NewAccessToken("seller@example.com")
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if _, err := svc.Subject(access, TokenAccess); err != nil {
		t.Fatalf("subject before revoke: %v", err)
	}
	if err := svc.Revoke(access); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Subject(access, TokenAccess); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("want ErrTokenRevoked, got %v", err)
	}
}
