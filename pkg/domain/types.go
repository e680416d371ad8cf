package domain

import "time"

// Seller owns zero or more books. PasswordHash never leaves the process:
// it is excluded from JSON and only compared through pkg/auth.
type Seller struct {
	ID           uint      `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Books        []Book    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Book belongs to exactly one seller.
type Book struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Year       int       `json:"year"`
	CountPages int       `json:"count_pages"`
	SellerID   uint      `json:"seller_id"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

// TokenPair is issued on login: a short-lived access token and a
// long-lived refresh token, both carrying the seller email as subject.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
