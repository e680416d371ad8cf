package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The same error covers unknown email and wrong password so responses do not
	// enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect email address or password")

	// ErrUnauthorized covers missing, malformed, expired, and revoked tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSellerNotFound is returned when a valid token resolves to a seller
	// record that no longer exists.
	ErrSellerNotFound = errors.New("authorized seller not found")

	// ErrNotFound covers absent entities and, deliberately, mutations by
	// non-owners: existence is not leaked to callers who do not own the row.
	ErrNotFound = errors.New("not found")

	ErrEmailAlreadyExists   = errors.New("email already exists")
	ErrRefreshTokenRequired = errors.New("refresh token required")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
