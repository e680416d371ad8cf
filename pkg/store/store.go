package store

import (
	"errors"

	"booklibrary/pkg/domain"
)

// ErrDuplicateEmail indicates a seller email that already exists.
var ErrDuplicateEmail = errors.New("email already exists")

// Store defines persistence operations for sellers and books.
// Absence of a row is reported as found=false, never as an error.
type Store interface {
	// sellers
	CreateSeller(s *domain.Seller) error
	GetSellerByID(id uint) (domain.Seller, bool, error)
	GetSellerByEmail(email string) (domain.Seller, bool, error)
	GetSellerWithBooks(id uint) (domain.Seller, bool, error)
	ListSellers() ([]domain.Seller, error)
	HasSellerEmail(email string) (bool, error)
	UpdateSeller(id uint, firstName, lastName, email string) (domain.Seller, bool, error)
	DeleteSeller(id uint) error

	// books
	CreateBook(b *domain.Book) error
	GetBook(id uint) (domain.Book, bool, error)
	ListBooks() ([]domain.Book, error)
	ListBooksBySeller(sellerID uint) ([]domain.Book, error)
	UpdateBook(id uint, b domain.Book) (domain.Book, bool, error)
	DeleteBook(id uint) (bool, error)
}
