package store

import (
	"errors"
	"testing"

	"booklibrary/pkg/domain"
)

func TestMemoryStoreSellerLifecycle(t *testing.T) {
	s := NewMemoryStore()

	seller := domain.Seller{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	if err := s.CreateSeller(&seller); err != nil {
		t.Fatalf("create seller: %v", err)
	}
	if seller.ID == 0 {
		t.Fatalf("expected generated seller ID")
	}
	if seller.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be assigned")
	}

	dup := domain.Seller{FirstName: "Other", LastName: "Person", Email: "ada@example.com", PasswordHash: "y"}
	if err := s.CreateSeller(&dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email error, got: %v", err)
	}

	got, found, err := s.GetSellerByEmail("ada@example.com")
	if err != nil || !found {
		t.Fatalf("get by email: found=%v err=%v", found, err)
	}
	if got.ID != seller.ID {
		t.Fatalf("unexpected seller: %+v", got)
	}

	updated, found, err := s.UpdateSeller(seller.ID, "Ada", "Byron", "ada.byron@example.com")
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if updated.LastName != "Byron" || updated.Email != "ada.byron@example.com" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, found, err := s.UpdateSeller(999, "A", "B", "c@example.com"); err != nil || found {
		t.Fatalf("update of missing row must report absence, found=%v err=%v", found, err)
	}
}

func TestMemoryStoreCascadeDelete(t *testing.T) {
	s := NewMemoryStore()

	seller := domain.Seller{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	if err := s.CreateSeller(&seller); err != nil {
		t.Fatalf("create seller: %v", err)
	}
	for range 3 {
		book := domain.Book{Title: "T", Author: "A", Year: 2000, CountPages: 300, SellerID: seller.ID}
		if err := s.CreateBook(&book); err != nil {
			t.Fatalf("create book: %v", err)
		}
	}
	other := domain.Seller{FirstName: "Bob", LastName: "Smith", Email: "bob@example.com", PasswordHash: "x"}
	if err := s.CreateSeller(&other); err != nil {
		t.Fatalf("create other seller: %v", err)
	}
	otherBook := domain.Book{Title: "T2", Author: "A2", Year: 2001, CountPages: 100, SellerID: other.ID}
	if err := s.CreateBook(&otherBook); err != nil {
		t.Fatalf("create other book: %v", err)
	}

	if err := s.DeleteSeller(seller.ID); err != nil {
		t.Fatalf("delete seller: %v", err)
	}
	rest, err := s.ListBooksBySeller(seller.ID)
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected cascade delete, %d books remain", len(rest))
	}
	kept, err := s.ListBooksBySeller(other.ID)
	if err != nil {
		t.Fatalf("list other books: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("other seller's books must survive, got %d", len(kept))
	}
}

func TestMemoryStoreSellerWithBooks(t *testing.T) {
	s := NewMemoryStore()
	seller := domain.Seller{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	if err := s.CreateSeller(&seller); err != nil {
		t.Fatalf("create seller: %v", err)
	}
	book := domain.Book{Title: "T", Author: "A", Year: 1999, CountPages: 200, SellerID: seller.ID}
	if err := s.CreateBook(&book); err != nil {
		t.Fatalf("create book: %v", err)
	}

	got, found, err := s.GetSellerWithBooks(seller.ID)
	if err != nil || !found {
		t.Fatalf("get with books: found=%v err=%v", found, err)
	}
	if len(got.Books) != 1 || got.Books[0].ID != book.ID {
		t.Fatalf("expected eager-loaded books, got %+v", got.Books)
	}
}

func TestMemoryStoreBookUpdateAndDelete(t *testing.T) {
	s := NewMemoryStore()
	seller := domain.Seller{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", PasswordHash: "x"}
	if err := s.CreateSeller(&seller); err != nil {
		t.Fatalf("create seller: %v", err)
	}
	book := domain.Book{Title: "Old", Author: "A", Year: 1990, CountPages: 100, SellerID: seller.ID}
	if err := s.CreateBook(&book); err != nil {
		t.Fatalf("create book: %v", err)
	}

	updated, found, err := s.UpdateBook(book.ID, domain.Book{Title: "New", Author: "B", Year: 1991, CountPages: 101, SellerID: seller.ID})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if updated.Title != "New" || updated.Author != "B" || updated.Year != 1991 || updated.CountPages != 101 {
		t.Fatalf("full replace not applied: %+v", updated)
	}

	existed, err := s.DeleteBook(book.ID)
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = s.DeleteBook(book.ID)
	if err != nil || existed {
		t.Fatalf("second delete must report absence, existed=%v err=%v", existed, err)
	}
}
