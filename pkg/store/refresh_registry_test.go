package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func registryImpls(t *testing.T) map[string]RefreshTokenRegistry {
	t.Helper()
	redisSrv := miniredis.RunT(t)
	return map[string]RefreshTokenRegistry{
		"memory": NewMemoryRefreshTokenRegistry(),
		"redis":  NewRedisRefreshTokenRegistry(redisSrv.Addr(), ""),
	}
}

func TestRefreshTokenRegistryRotateAndRevoke(t *testing.T) {
	for name, reg := range registryImpls(t) {
		t.Run(name, func(t *testing.T) {
			if err := reg.Register("token-1", "seller@example.com", time.Minute); err != nil {
				t.Fatalf("register: %v", err)
			}
			subject, err := reg.Rotate("token-1", "token-2", time.Minute)
			if err != nil {
				t.Fatalf("rotate: %v", err)
			}
			if subject != "seller@example.com" {
				t.Fatalf("unexpected subject: %q", subject)
			}

			if err := reg.Revoke("token-2"); err != nil {
				t.Fatalf("revoke: %v", err)
			}
			if _, err := reg.Rotate("token-2", "token-3", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected invalid token after revoke, got: %v", err)
			}
		})
	}
}

func TestRefreshTokenRegistryDetectsReplay(t *testing.T) {
	for name, reg := range registryImpls(t) {
		t.Run(name, func(t *testing.T) {
			if err := reg.Register("token-1", "seller@example.com", time.Minute); err != nil {
				t.Fatalf("register: %v", err)
			}
			if _, err := reg.Rotate("token-1", "token-2", time.Minute); err != nil {
				t.Fatalf("first rotate: %v", err)
			}
			// Replaying the retired token must revoke the family.
			if _, err := reg.Rotate("token-1", "token-x", time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
				t.Fatalf("expected replay error, got: %v", err)
			}
			if _, err := reg.Rotate("token-2", "token-3", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected family revoked after replay, got: %v", err)
			}
		})
	}
}

func TestRefreshTokenRegistryRevokeAll(t *testing.T) {
	for name, reg := range registryImpls(t) {
		t.Run(name, func(t *testing.T) {
			if err := reg.Register("a-1", "a@example.com", time.Minute); err != nil {
				t.Fatalf("register a-1: %v", err)
			}
			if err := reg.Register("a-2", "a@example.com", time.Minute); err != nil {
				t.Fatalf("register a-2: %v", err)
			}
			if err := reg.Register("b-1", "b@example.com", time.Minute); err != nil {
				t.Fatalf("register b-1: %v", err)
			}

			if err := reg.RevokeAll("a@example.com"); err != nil {
				t.Fatalf("revoke all: %v", err)
			}
			if _, err := reg.Rotate("a-1", "a-next", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected a-1 revoked, got: %v", err)
			}
			if _, err := reg.Rotate("a-2", "a-next", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
				t.Fatalf("expected a-2 revoked, got: %v", err)
			}
			if _, err := reg.Rotate("b-1", "b-next", time.Minute); err != nil {
				t.Fatalf("other subject must stay valid: %v", err)
			}
		})
	}
}

func TestRefreshTokenRegistryExpiry(t *testing.T) {
	reg := NewMemoryRefreshTokenRegistry()
	if err := reg.Register("token-1", "seller@example.com", -time.Second); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Rotate("token-1", "token-2", time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected expired family to be invalid, got: %v", err)
	}
}

func TestMemoryTokenRevoker(t *testing.T) {
	revoker := NewMemoryTokenRevoker()
	if err := revoker.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected jti-1 revoked")
	}
	revoked, err = revoker.IsRevoked("jti-2")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if revoked {
		t.Fatalf("jti-2 must not be revoked")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	revoker := NewRedisTokenRevoker(redisSrv.Addr(), "")
	if err := revoker.Revoke("jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked: %v", err)
	}
	if !revoked {
		t.Fatalf("expected jti-1 revoked")
	}
	redisSrv.FastForward(2 * time.Minute)
	revoked, err = revoker.IsRevoked("jti-1")
	if err != nil {
		t.Fatalf("is revoked after expiry: %v", err)
	}
	if revoked {
		t.Fatalf("revocation must lapse with the token expiry")
	}
}
