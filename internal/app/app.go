package app

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"booklibrary/pkg/auth"
	"booklibrary/pkg/domain"
	"booklibrary/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	TokenOptions  store.TokenOptions

	// Pre-built dependencies override the URL/addr-based construction.
	// Tests inject the memory implementations here.
	Store   store.Store
	Tokens  *store.TokenService
	Refresh store.RefreshTokenRegistry
	Revoker store.TokenRevoker
}

// App wires storage and token handling into the seller/book use cases.
type App struct {
	store   store.Store
	tokens  *store.TokenService
	refresh store.RefreshTokenRegistry
}

// New constructs the application with database storage and token management.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	tokens := cfg.Tokens
	if tokens == nil {
		revoker := cfg.Revoker
		if revoker == nil {
			if strings.TrimSpace(cfg.RedisAddr) == "" {
				return nil, fmt.Errorf("redisAddr is required for token revocation")
			}
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		}
		var err error
		tokens, err = store.NewTokenService(cfg.JWTSecret, revoker, cfg.TokenOptions)
		if err != nil {
			return nil, fmt.Errorf("init token service: %w", err)
		}
	}

	refresh := cfg.Refresh
	if refresh == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for refresh token rotation")
		}
		refresh = store.NewRedisRefreshTokenRegistry(cfg.RedisAddr, cfg.RedisPassword)
	}

	return &App{
		store:   dataStore,
		tokens:  tokens,
		refresh: refresh,
	}, nil
}

// NewSeller carries validated registration input.
type NewSeller struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// SellerUpdate carries the full set of editable seller fields. Updates are
// a full replace, never a sparse patch.
type SellerUpdate struct {
	FirstName string
	LastName  string
	Email     string
}

// BookInput carries the full set of editable book fields.
type BookInput struct {
	Title      string
	Author     string
	Year       int
	CountPages int
}

// RegisterSeller creates a seller account. The password is stored only as a
// bcrypt digest.
func (a *App) RegisterSeller(in NewSeller) (domain.Seller, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Seller{}, err
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return domain.Seller{}, &ValidationError{Field: "first_name", Message: "required"}
	}
	if strings.TrimSpace(in.LastName) == "" {
		return domain.Seller{}, &ValidationError{Field: "last_name", Message: "required"}
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.Seller{}, &ValidationError{Field: "password", Message: err.Error()}
	}
	exists, err := a.store.HasSellerEmail(email)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.Seller{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("hash password: %w", err)
	}
	seller := domain.Seller{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := a.store.CreateSeller(&seller); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.Seller{}, ErrEmailAlreadyExists
		}
		return domain.Seller{}, fmt.Errorf("save seller: %w", err)
	}
	return seller, nil
}

// Login validates credentials and issues an access/refresh token pair.
func (a *App) Login(email, password string) (domain.TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	seller, found, err := a.store.GetSellerByEmail(email)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("fetch seller: %w", err)
	}
	if !found || !auth.CheckPassword(password, seller.PasswordHash) {
		return domain.TokenPair{}, ErrInvalidCredentials
	}
	return a.issueTokens(seller.Email)
}

// Refresh rotates the refresh token and issues a new token pair. A replayed
// or tampered refresh token fails closed.
func (a *App) Refresh(refreshToken string) (domain.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.TokenPair{}, ErrRefreshTokenRequired
	}
	subject, err := a.tokens.Subject(refreshToken, store.TokenRefresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	newRefresh, err := a.tokens.NewRefreshToken(subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if _, err := a.refresh.Rotate(refreshToken, newRefresh, a.tokens.RefreshTTL()); err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if _, found, err := a.store.GetSellerByEmail(subject); err != nil {
		return domain.TokenPair{}, fmt.Errorf("fetch seller: %w", err)
	} else if !found {
		_ = a.refresh.Revoke(newRefresh)
		return domain.TokenPair{}, ErrSellerNotFound
	}
	access, err := a.tokens.NewAccessToken(subject)
	if err != nil {
		_ = a.refresh.Revoke(newRefresh)
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Logout invalidates the access token and the refresh token family.
func (a *App) Logout(accessToken, refreshToken string) error {
	if err := a.tokens.Revoke(accessToken); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}
	return a.refresh.Revoke(refreshToken)
}

// SellerFromAccessToken resolves the caller's identity from a bearer token.
// Token failures surface ErrUnauthorized; a valid token whose subject no
// longer exists surfaces ErrSellerNotFound.
func (a *App) SellerFromAccessToken(token string) (domain.Seller, error) {
	subject, err := a.tokens.Subject(token, store.TokenAccess)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	seller, found, err := a.store.GetSellerByEmail(subject)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("fetch seller: %w", err)
	}
	if !found {
		return domain.Seller{}, ErrSellerNotFound
	}
	return seller, nil
}

// ListSellers returns all sellers.
func (a *App) ListSellers() ([]domain.Seller, error) {
	return a.store.ListSellers()
}

// GetSellerWithBooks returns a seller with the owned book collection,
// loaded in a single query.
func (a *App) GetSellerWithBooks(id uint) (domain.Seller, error) {
	seller, found, err := a.store.GetSellerWithBooks(id)
	if err != nil {
		return domain.Seller{}, fmt.Errorf("fetch seller: %w", err)
	}
	if !found {
		return domain.Seller{}, ErrNotFound
	}
	return seller, nil
}

// UpdateSeller overwrites the seller's editable fields from the input.
func (a *App) UpdateSeller(id uint, in SellerUpdate) (domain.Seller, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.Seller{}, err
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return domain.Seller{}, &ValidationError{Field: "first_name", Message: "required"}
	}
	if strings.TrimSpace(in.LastName) == "" {
		return domain.Seller{}, &ValidationError{Field: "last_name", Message: "required"}
	}
	seller, found, err := a.store.UpdateSeller(id, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName), email)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.Seller{}, ErrEmailAlreadyExists
		}
		return domain.Seller{}, fmt.Errorf("update seller: %w", err)
	}
	if !found {
		return domain.Seller{}, ErrNotFound
	}
	return seller, nil
}

// DeleteSeller removes a seller, cascading to all owned books, and revokes
// the seller's outstanding refresh tokens.
func (a *App) DeleteSeller(id uint) error {
	seller, found, err := a.store.GetSellerByID(id)
	if err != nil {
		return fmt.Errorf("fetch seller: %w", err)
	}
	if !found {
		return nil // already gone, delete is idempotent
	}
	if err := a.store.DeleteSeller(id); err != nil {
		return fmt.Errorf("delete seller: %w", err)
	}
	return a.refresh.RevokeAll(seller.Email)
}

// CreateBook stores a new book owned by the authenticated caller. The owner
// is always the caller, regardless of what the request claims.
func (a *App) CreateBook(caller domain.Seller, in BookInput) (domain.Book, error) {
	if err := validateBookInput(in); err != nil {
		return domain.Book{}, err
	}
	book := domain.Book{
		Title:      strings.TrimSpace(in.Title),
		Author:     strings.TrimSpace(in.Author),
		Year:       in.Year,
		CountPages: in.CountPages,
		SellerID:   caller.ID,
	}
	if err := a.store.CreateBook(&book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// GetBook returns a book by ID.
func (a *App) GetBook(id uint) (domain.Book, error) {
	book, found, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !found {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// ListBooks returns all books.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// UpdateBook overwrites a book's editable fields. Only the owning seller may
// update; everyone else sees the book as absent.
func (a *App) UpdateBook(caller domain.Seller, id uint, in BookInput) (domain.Book, error) {
	book, found, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !found || book.SellerID != caller.ID {
		return domain.Book{}, ErrNotFound
	}
	if err := validateBookInput(in); err != nil {
		return domain.Book{}, err
	}
	updated, found, err := a.store.UpdateBook(id, domain.Book{
		Title:      strings.TrimSpace(in.Title),
		Author:     strings.TrimSpace(in.Author),
		Year:       in.Year,
		CountPages: in.CountPages,
		SellerID:   book.SellerID,
	})
	if err != nil {
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	if !found {
		return domain.Book{}, ErrNotFound
	}
	return updated, nil
}

// DeleteBook removes a book. Only the owning seller may delete; everyone
// else sees the book as absent.
func (a *App) DeleteBook(caller domain.Seller, id uint) error {
	book, found, err := a.store.GetBook(id)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !found || book.SellerID != caller.ID {
		return ErrNotFound
	}
	if _, err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func (a *App) issueTokens(subject string) (domain.TokenPair, error) {
	access, err := a.tokens.NewAccessToken(subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := a.tokens.NewRefreshToken(subject)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := a.refresh.Register(refresh, subject, a.tokens.RefreshTTL()); err != nil {
		return domain.TokenPair{}, fmt.Errorf("register refresh token: %w", err)
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func validateBookInput(in BookInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Message: "required"}
	}
	if strings.TrimSpace(in.Author) == "" {
		return &ValidationError{Field: "author", Message: "required"}
	}
	if in.Year < 1900 {
		return &ValidationError{Field: "year", Message: "must be 1900 or later"}
	}
	if in.CountPages <= 0 {
		return &ValidationError{Field: "pages", Message: "must be positive"}
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", &ValidationError{Field: "email", Message: "required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &ValidationError{Field: "email", Message: "invalid email address"}
	}
	return email, nil
}
