package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLength = 72 // bcrypt input limit

// HashPassword returns a bcrypt digest with a fresh random salt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password required")
	}
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("password longer than %d bytes", maxPasswordLength)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(digest), nil
}

// CheckPassword validates a password against a stored bcrypt digest.
// A malformed digest never partial-matches; it simply fails.
func CheckPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// ValidatePassword enforces the minimum password policy for registration.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("password longer than %d bytes", maxPasswordLength)
	}
	return nil
}
