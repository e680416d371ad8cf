package store

import "time"

// GORM models used for persistence. Table names match the historical schema.
type SellerModel struct {
	ID           uint   `gorm:"primaryKey"`
	FirstName    string `gorm:"size:100;not null"`
	LastName     string `gorm:"size:100;not null"`
	Email        string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	Books        []BookModel `gorm:"foreignKey:SellerID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time   `gorm:"not null"`
	UpdatedAt    time.Time
}

func (SellerModel) TableName() string { return "sellers_table" }

type BookModel struct {
	ID         uint   `gorm:"primaryKey"`
	Title      string `gorm:"size:100;not null"`
	Author     string `gorm:"size:100;not null"`
	Year       int    `gorm:"not null"`
	CountPages int    `gorm:"not null;default:300"`
	SellerID   uint   `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

func (BookModel) TableName() string { return "books_table" }
