package server

import (
	"booklibrary/internal/app"
	"booklibrary/pkg/domain"
)

const defaultCountPages = 300

type createSellerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type updateSellerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type sellerResponse struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type sellerWithBooksResponse struct {
	sellerResponse
	Books []domain.Book `json:"books"`
}

type sellersResponse struct {
	Sellers []sellerResponse `json:"sellers"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// bookRequest accepts both the canonical count_pages field and its
// historical pages alias; count_pages wins when both are present.
type bookRequest struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Year       int    `json:"year"`
	CountPages *int   `json:"count_pages"`
	Pages      *int   `json:"pages"`
	SellerID   uint   `json:"seller_id"`
}

func (r bookRequest) toInput() app.BookInput {
	pages := defaultCountPages
	switch {
	case r.CountPages != nil:
		pages = *r.CountPages
	case r.Pages != nil:
		pages = *r.Pages
	}
	return app.BookInput{
		Title:      r.Title,
		Author:     r.Author,
		Year:       r.Year,
		CountPages: pages,
	}
}

type booksResponse struct {
	Books []domain.Book `json:"books"`
}

func sellerToResponse(s domain.Seller) sellerResponse {
	return sellerResponse{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
	}
}

func sellerWithBooksToResponse(s domain.Seller) sellerWithBooksResponse {
	books := s.Books
	if books == nil {
		books = []domain.Book{}
	}
	return sellerWithBooksResponse{
		sellerResponse: sellerToResponse(s),
		Books:          books,
	}
}

func sellersToResponse(sellers []domain.Seller) sellersResponse {
	res := sellersResponse{Sellers: make([]sellerResponse, 0, len(sellers))}
	for _, s := range sellers {
		res.Sellers = append(res.Sellers, sellerToResponse(s))
	}
	return res
}
