package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTIssuer   = "booklibrary-auth"
	defaultJWTAudience = "booklibrary-api"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

var defaultJWTLeeway = 30 * time.Second

// TokenKind distinguishes the two bearer flows. An access token is never
// accepted where a refresh token is required and vice versa.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

var (
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken indicates a malformed token, a bad signature, or a
	// token of the wrong kind.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked indicates an explicitly revoked token.
	ErrTokenRevoked = errors.New("token revoked")
)

// TokenOptions configures claim validation behavior.
type TokenOptions struct {
	Issuer     string
	Audience   string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Kind TokenKind `json:"type"`
}

// TokenService issues and validates HS256 JWTs carrying the seller email
// as subject. Access tokens are checked against the revoker on every decode.
type TokenService struct {
	secret     []byte
	revoker    TokenRevoker
	issuer     string
	audience   string
	leeway     time.Duration
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService builds a token service from the server-side signing secret.
// The revoker is optional; without it DeleteSession-style logout is a no-op.
func NewTokenService(secret string, revoker TokenRevoker, opts TokenOptions) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret required")
	}
	opts = normalizeTokenOptions(opts)
	return &TokenService{
		secret:     []byte(secret),
		revoker:    revoker,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		leeway:     opts.Leeway,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
	}, nil
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// NewAccessToken signs a short-lived access token for the subject.
func (s *TokenService) NewAccessToken(subject string) (string, error) {
	return s.newToken(subject, TokenAccess, s.accessTTL)
}

// NewRefreshToken signs a long-lived refresh token for the subject.
func (s *TokenService) NewRefreshToken(subject string) (string, error) {
	return s.newToken(subject, TokenRefresh, s.refreshTTL)
}

func (s *TokenService) newToken(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
		Kind: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Subject validates a token of the given kind and returns its subject.
// Expired tokens surface ErrTokenExpired; every other failure is
// ErrInvalidToken or ErrTokenRevoked.
func (s *TokenService) Subject(token string, kind TokenKind) (string, error) {
	claims, err := s.parseAndVerify(token, kind)
	if err != nil {
		return "", err
	}
	if kind == TokenAccess && s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return "", err
		}
		if revoked {
			return "", ErrTokenRevoked
		}
	}
	return claims.Subject, nil
}

// Revoke marks an access token as unusable until its natural expiry.
func (s *TokenService) Revoke(token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token, TokenAccess)
	if err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *TokenService) parseAndVerify(token string, kind TokenKind) (tokenClaims, error) {
	claims := tokenClaims{}
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, ErrInvalidToken
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, ErrTokenExpired
		}
		return claims, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return claims, ErrInvalidToken
	}
	if claims.Kind != kind {
		return claims, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return claims, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.ID) == "" {
		return claims, fmt.Errorf("%w: jti missing", ErrInvalidToken)
	}
	return claims, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeTokenOptions(opts TokenOptions) TokenOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	return opts
}
