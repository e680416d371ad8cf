package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrInvalidRefreshToken indicates a refresh token not found or expired.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshTokenReplay indicates reuse of an already-rotated token.
	ErrRefreshTokenReplay = errors.New("refresh token replay detected")
)

// RefreshTokenRegistry tracks issued refresh tokens for single-use rotation
// with replay detection. Tokens themselves are signed JWTs issued by the
// TokenService; the registry stores only their hashes, grouped into families.
// Reuse of a rotated token revokes the whole family.
type RefreshTokenRegistry interface {
	Register(token, subject string, ttl time.Duration) error
	Rotate(oldToken, newToken string, ttl time.Duration) (subject string, err error)
	Revoke(token string) error
	RevokeAll(subject string) error
}

type refreshFamily struct {
	subject     string
	currentHash string
	expiry      time.Time
}

// MemoryRefreshTokenRegistry keeps refresh token families in memory.
type MemoryRefreshTokenRegistry struct {
	mu              sync.Mutex
	families        map[string]refreshFamily       // familyID -> family
	tokenFamily     map[string]string              // tokenHash -> familyID
	familyTokens    map[string]map[string]struct{} // familyID -> token hashes
	subjectFamilies map[string]map[string]struct{} // subject -> family IDs
}

// NewMemoryRefreshTokenRegistry constructs an in-memory registry.
func NewMemoryRefreshTokenRegistry() *MemoryRefreshTokenRegistry {
	return &MemoryRefreshTokenRegistry{
		families:        make(map[string]refreshFamily),
		tokenFamily:     make(map[string]string),
		familyTokens:    make(map[string]map[string]struct{}),
		subjectFamilies: make(map[string]map[string]struct{}),
	}
}

// Register starts a new token family for a freshly issued refresh token.
func (s *MemoryRefreshTokenRegistry) Register(token, subject string, ttl time.Duration) error {
	familyID, err := generateFamilyID()
	if err != nil {
		return err
	}
	tokenHash := refreshTokenHash(token)
	now := time.Now().UTC()

	s.mu.Lock()
	s.families[familyID] = refreshFamily{
		subject:     subject,
		currentHash: tokenHash,
		expiry:      now.Add(ttl),
	}
	s.tokenFamily[tokenHash] = familyID
	s.familyTokens[familyID] = map[string]struct{}{tokenHash: {}}
	if s.subjectFamilies[subject] == nil {
		s.subjectFamilies[subject] = make(map[string]struct{})
	}
	s.subjectFamilies[subject][familyID] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Rotate retires oldToken and makes newToken the family's current token.
func (s *MemoryRefreshTokenRegistry) Rotate(oldToken, newToken string, ttl time.Duration) (string, error) {
	oldHash := refreshTokenHash(oldToken)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	familyID, ok := s.tokenFamily[oldHash]
	if !ok {
		return "", ErrInvalidRefreshToken
	}
	family, ok := s.families[familyID]
	if !ok || now.After(family.expiry) {
		s.revokeFamilyLocked(familyID)
		return "", ErrInvalidRefreshToken
	}
	if family.currentHash != oldHash {
		// Reuse of a previously rotated token: revoke the whole family.
		s.revokeFamilyLocked(familyID)
		return "", ErrRefreshTokenReplay
	}

	newHash := refreshTokenHash(newToken)
	family.currentHash = newHash
	family.expiry = now.Add(ttl)
	s.families[familyID] = family
	s.tokenFamily[newHash] = familyID
	s.familyTokens[familyID][newHash] = struct{}{}
	return family.subject, nil
}

// Revoke drops the entire token family containing this token.
func (s *MemoryRefreshTokenRegistry) Revoke(token string) error {
	tokenHash := refreshTokenHash(token)

	s.mu.Lock()
	if familyID, ok := s.tokenFamily[tokenHash]; ok {
		s.revokeFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

// RevokeAll drops every token family issued to a subject.
func (s *MemoryRefreshTokenRegistry) RevokeAll(subject string) error {
	s.mu.Lock()
	familyIDs := make([]string, 0, len(s.subjectFamilies[subject]))
	for familyID := range s.subjectFamilies[subject] {
		familyIDs = append(familyIDs, familyID)
	}
	for _, familyID := range familyIDs {
		s.revokeFamilyLocked(familyID)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryRefreshTokenRegistry) revokeFamilyLocked(familyID string) {
	subject := s.families[familyID].subject
	for h := range s.familyTokens[familyID] {
		delete(s.tokenFamily, h)
	}
	delete(s.familyTokens, familyID)
	delete(s.families, familyID)
	if subject != "" {
		if fams, ok := s.subjectFamilies[subject]; ok {
			delete(fams, familyID)
			if len(fams) == 0 {
				delete(s.subjectFamilies, subject)
			}
		}
	}
}

// RedisRefreshTokenRegistry stores refresh token families in Redis.
type RedisRefreshTokenRegistry struct {
	client *redis.Client
}

// NewRedisRefreshTokenRegistry builds a Redis-backed registry.
func NewRedisRefreshTokenRegistry(addr, password string) *RedisRefreshTokenRegistry {
	return &RedisRefreshTokenRegistry{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Register starts a new token family for a freshly issued refresh token.
func (s *RedisRefreshTokenRegistry) Register(token, subject string, ttl time.Duration) error {
	familyID, err := generateFamilyID()
	if err != nil {
		return err
	}
	tokenHash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshTokenFamilyRedisKey(tokenHash), familyID, ttl)
	pipe.HSet(ctx, refreshFamilyRedisKey(familyID), map[string]any{
		"subject":     subject,
		"currentHash": tokenHash,
	})
	pipe.Expire(ctx, refreshFamilyRedisKey(familyID), ttl)
	pipe.SAdd(ctx, refreshFamilyTokensRedisKey(familyID), tokenHash)
	pipe.Expire(ctx, refreshFamilyTokensRedisKey(familyID), ttl)
	pipe.SAdd(ctx, refreshSubjectFamiliesRedisKey(subject), familyID)
	pipe.Expire(ctx, refreshSubjectFamiliesRedisKey(subject), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Rotate retires oldToken and makes newToken the family's current token.
func (s *RedisRefreshTokenRegistry) Rotate(oldToken, newToken string, ttl time.Duration) (string, error) {
	oldHash := refreshTokenHash(oldToken)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		familyID, err := s.client.Get(ctx, refreshTokenFamilyRedisKey(oldHash)).Result()
		if err == redis.Nil {
			return "", ErrInvalidRefreshToken
		}
		if err != nil {
			return "", err
		}

		familyKey := refreshFamilyRedisKey(familyID)
		var (
			subject      string
			shouldRevoke bool
		)

		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			familyData, err := tx.HGetAll(ctx, familyKey).Result()
			if err != nil {
				return err
			}
			if len(familyData) == 0 {
				shouldRevoke = true
				return ErrInvalidRefreshToken
			}

			currentHash := familyData["currentHash"]
			subject = familyData["subject"]
			if currentHash == "" || subject == "" {
				shouldRevoke = true
				return ErrInvalidRefreshToken
			}
			if currentHash != oldHash {
				shouldRevoke = true
				return ErrRefreshTokenReplay
			}

			newHash := refreshTokenHash(newToken)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, refreshTokenFamilyRedisKey(newHash), familyID, ttl)
				pipe.HSet(ctx, familyKey, map[string]any{
					"subject":     subject,
					"currentHash": newHash,
				})
				pipe.Expire(ctx, familyKey, ttl)
				pipe.SAdd(ctx, refreshFamilyTokensRedisKey(familyID), newHash)
				pipe.Expire(ctx, refreshFamilyTokensRedisKey(familyID), ttl)
				pipe.SAdd(ctx, refreshSubjectFamiliesRedisKey(subject), familyID)
				pipe.Expire(ctx, refreshSubjectFamiliesRedisKey(subject), ttl)
				return nil
			})
			return err
		}, familyKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if shouldRevoke {
				_ = s.revokeFamily(ctx, familyID, subject)
			}
			if errors.Is(err, ErrRefreshTokenReplay) {
				return "", ErrRefreshTokenReplay
			}
			if errors.Is(err, ErrInvalidRefreshToken) {
				return "", ErrInvalidRefreshToken
			}
			return "", err
		}
		return subject, nil
	}
}

// Revoke drops the entire token family containing this token.
func (s *RedisRefreshTokenRegistry) Revoke(token string) error {
	tokenHash := refreshTokenHash(token)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	familyID, err := s.client.Get(ctx, refreshTokenFamilyRedisKey(tokenHash)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	familyData, err := s.client.HGetAll(ctx, refreshFamilyRedisKey(familyID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	return s.revokeFamily(ctx, familyID, familyData["subject"])
}

// RevokeAll drops every token family issued to a subject.
func (s *RedisRefreshTokenRegistry) RevokeAll(subject string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	familyIDs, err := s.client.SMembers(ctx, refreshSubjectFamiliesRedisKey(subject)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	for _, familyID := range familyIDs {
		if err := s.revokeFamily(ctx, familyID, subject); err != nil {
			return err
		}
	}
	if err := s.client.Del(ctx, refreshSubjectFamiliesRedisKey(subject)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisRefreshTokenRegistry) revokeFamily(ctx context.Context, familyID, subject string) error {
	if subject == "" {
		familyData, err := s.client.HGetAll(ctx, refreshFamilyRedisKey(familyID)).Result()
		if err != nil && err != redis.Nil {
			return err
		}
		subject = familyData["subject"]
	}
	hashes, err := s.client.SMembers(ctx, refreshFamilyTokensRedisKey(familyID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	pipe := s.client.TxPipeline()
	for _, tokenHash := range hashes {
		pipe.Del(ctx, refreshTokenFamilyRedisKey(tokenHash))
	}
	pipe.Del(ctx, refreshFamilyTokensRedisKey(familyID))
	pipe.Del(ctx, refreshFamilyRedisKey(familyID))
	if subject != "" {
		pipe.SRem(ctx, refreshSubjectFamiliesRedisKey(subject), familyID)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func generateFamilyID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func refreshTokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func refreshTokenFamilyRedisKey(tokenHash string) string {
	return fmt.Sprintf("refresh:token:%s", tokenHash)
}

func refreshFamilyRedisKey(familyID string) string {
	return fmt.Sprintf("refresh:family:%s", familyID)
}

func refreshFamilyTokensRedisKey(familyID string) string {
	return fmt.Sprintf("refresh:family_tokens:%s", familyID)
}

func refreshSubjectFamiliesRedisKey(subject string) string {
	return fmt.Sprintf("refresh:subject_families:%s", subject)
}
