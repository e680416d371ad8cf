package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"booklibrary/pkg/domain"
)

const migrateLockID int64 = 41214121

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&SellerModel{}, &BookModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateSeller inserts a seller and populates the generated ID and timestamps.
func (s *GormStore) CreateSeller(seller *domain.Seller) error {
	model := sellerToModel(*seller)
	if err := s.db.Create(&model).Error; err != nil {
		return translateConstraintError(err)
	}
	*seller = sellerFromModel(model)
	return nil
}

// GetSellerByID returns a seller by ID.
func (s *GormStore) GetSellerByID(id uint) (domain.Seller, bool, error) {
	var model SellerModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, err
	}
	return sellerFromModel(model), true, nil
}

// GetSellerByEmail looks up a seller by email.
func (s *GormStore) GetSellerByEmail(email string) (domain.Seller, bool, error) {
	var model SellerModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, err
	}
	return sellerFromModel(model), true, nil
}

// GetSellerWithBooks eagerly loads the seller's book collection in one round trip.
func (s *GormStore) GetSellerWithBooks(id uint) (domain.Seller, bool, error) {
	var model SellerModel
	if err := s.db.Preload("Books").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, err
	}
	seller := sellerFromModel(model)
	seller.Books = make([]domain.Book, 0, len(model.Books))
	for _, b := range model.Books {
		seller.Books = append(seller.Books, bookFromModel(b))
	}
	return seller, true, nil
}

// ListSellers returns all sellers ordered by ID.
func (s *GormStore) ListSellers() ([]domain.Seller, error) {
	var models []SellerModel
	if err := s.db.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Seller, 0, len(models))
	for _, m := range models {
		res = append(res, sellerFromModel(m))
	}
	return res, nil
}

// HasSellerEmail checks if email exists.
func (s *GormStore) HasSellerEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&SellerModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateSeller overwrites the editable fields from the input. Full replace,
// not a sparse patch.
func (s *GormStore) UpdateSeller(id uint, firstName, lastName, email string) (domain.Seller, bool, error) {
	var model SellerModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		model.FirstName = firstName
		model.LastName = lastName
		model.Email = email
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, false, nil
		}
		return domain.Seller{}, false, translateConstraintError(err)
	}
	return sellerFromModel(model), true, nil
}

// DeleteSeller removes a seller and its books. The FK cascade covers the books
// as well; the explicit delete keeps the behavior identical on stores without it.
func (s *GormStore) DeleteSeller(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BookModel{}, "seller_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&SellerModel{}, "id = ?", id).Error
	})
}

// CreateBook inserts a book and populates the generated ID and timestamps.
func (s *GormStore) CreateBook(book *domain.Book) error {
	model := bookToModel(*book)
	if err := s.db.Create(&model).Error; err != nil {
		return err
	}
	*book = bookFromModel(model)
	return nil
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id uint) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns all books ordered by ID.
func (s *GormStore) ListBooks() ([]domain.Book, error) {
	return s.listBooks()
}

// ListBooksBySeller returns books filtered by owner.
func (s *GormStore) ListBooksBySeller(sellerID uint) ([]domain.Book, error) {
	return s.listBooks("seller_id = ?", sellerID)
}

func (s *GormStore) listBooks(conds ...any) ([]domain.Book, error) {
	var models []BookModel
	tx := s.db.Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// UpdateBook overwrites the editable fields from the input. Full replace.
func (s *GormStore) UpdateBook(id uint, b domain.Book) (domain.Book, bool, error) {
	var model BookModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			return err
		}
		model.Title = b.Title
		model.Author = b.Author
		model.Year = b.Year
		model.CountPages = b.CountPages
		model.SellerID = b.SellerID
		model.UpdatedAt = time.Now().UTC()
		return tx.Save(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// DeleteBook removes the book, reporting whether a row existed.
func (s *GormStore) DeleteBook(id uint) (bool, error) {
	res := s.db.Delete(&BookModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// translateConstraintError maps Postgres unique violations to ErrDuplicateEmail
// so raw driver errors never reach the HTTP boundary.
func translateConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func sellerToModel(s domain.Seller) SellerModel {
	return SellerModel{
		ID:           s.ID,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Email:        s.Email,
		PasswordHash: s.PasswordHash,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func sellerFromModel(m SellerModel) domain.Seller {
	return domain.Seller{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		Year:       b.Year,
		CountPages: b.CountPages,
		SellerID:   b.SellerID,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:         m.ID,
		Title:      m.Title,
		Author:     m.Author,
		Year:       m.Year,
		CountPages: m.CountPages,
		SellerID:   m.SellerID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
