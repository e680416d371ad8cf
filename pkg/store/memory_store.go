package store

import (
	"sort"
	"sync"
	"time"

	"booklibrary/pkg/domain"
)

// MemoryStore keeps sellers and books in-process. It mirrors GormStore
// semantics (generated IDs, cascade delete, duplicate email) so the
// application and HTTP layers can be tested without a database.
type MemoryStore struct {
	mu           sync.RWMutex
	sellers      map[uint]domain.Seller
	books        map[uint]domain.Book
	nextSellerID uint
	nextBookID   uint
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sellers: make(map[uint]domain.Seller),
		books:   make(map[uint]domain.Book),
	}
}

// CreateSeller registers a seller, assigning the next ID.
func (m *MemoryStore) CreateSeller(s *domain.Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sellers {
		if existing.Email == s.Email {
			return ErrDuplicateEmail
		}
	}
	m.nextSellerID++
	s.ID = m.nextSellerID
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.sellers[s.ID] = *s
	return nil
}

// GetSellerByID returns a seller by ID.
func (m *MemoryStore) GetSellerByID(id uint) (domain.Seller, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sellers[id]
	return s, ok, nil
}

// GetSellerByEmail looks up a seller by email.
func (m *MemoryStore) GetSellerByEmail(email string) (domain.Seller, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sellers {
		if s.Email == email {
			return s, true, nil
		}
	}
	return domain.Seller{}, false, nil
}

// GetSellerWithBooks returns the seller with its book collection attached.
func (m *MemoryStore) GetSellerWithBooks(id uint) (domain.Seller, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sellers[id]
	if !ok {
		return domain.Seller{}, false, nil
	}
	s.Books = m.booksBySellerLocked(id)
	return s, true, nil
}

// ListSellers returns all sellers ordered by ID.
func (m *MemoryStore) ListSellers() ([]domain.Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Seller, 0, len(m.sellers))
	for _, s := range m.sellers {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// HasSellerEmail checks if email exists.
func (m *MemoryStore) HasSellerEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sellers {
		if s.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// UpdateSeller overwrites the editable fields. Full replace.
func (m *MemoryStore) UpdateSeller(id uint, firstName, lastName, email string) (domain.Seller, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sellers[id]
	if !ok {
		return domain.Seller{}, false, nil
	}
	for _, existing := range m.sellers {
		if existing.ID != id && existing.Email == email {
			return domain.Seller{}, false, ErrDuplicateEmail
		}
	}
	s.FirstName = firstName
	s.LastName = lastName
	s.Email = email
	s.UpdatedAt = time.Now().UTC()
	m.sellers[id] = s
	return s, true, nil
}

// DeleteSeller removes a seller and cascades to its books.
func (m *MemoryStore) DeleteSeller(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sellers, id)
	for bookID, b := range m.books {
		if b.SellerID == id {
			delete(m.books, bookID)
		}
	}
	return nil
}

// CreateBook stores a book, assigning the next ID.
func (m *MemoryStore) CreateBook(b *domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBookID++
	b.ID = m.nextBookID
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.books[b.ID] = *b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id uint) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// ListBooks returns all books ordered by ID.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// ListBooksBySeller returns books filtered by owner ID.
func (m *MemoryStore) ListBooksBySeller(sellerID uint) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.booksBySellerLocked(sellerID), nil
}

func (m *MemoryStore) booksBySellerLocked(sellerID uint) []domain.Book {
	res := make([]domain.Book, 0)
	for _, b := range m.books {
		if b.SellerID == sellerID {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// UpdateBook overwrites the editable fields. Full replace.
func (m *MemoryStore) UpdateBook(id uint, in domain.Book) (domain.Book, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, false, nil
	}
	b.Title = in.Title
	b.Author = in.Author
	b.Year = in.Year
	b.CountPages = in.CountPages
	b.SellerID = in.SellerID
	b.UpdatedAt = time.Now().UTC()
	m.books[id] = b
	return b, true, nil
}

// DeleteBook removes a book, reporting whether it existed.
func (m *MemoryStore) DeleteBook(id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.books[id]
	delete(m.books, id)
	return ok, nil
}
