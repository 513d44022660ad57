package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// BookStatus представляет статус книги
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"    // Есть свободные экземпляры
	BookStatusFullyLoaned BookStatus = "fully_loaned" // Все экземпляры выданы
)

// Book представляет книгу каталога вместе с остатками.
// Поля TotalStock, AvailableStock и Status меняет только BookLedger.
type Book struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title          string     `gorm:"column:title;not null;size:255" json:"title"`
	Author         string     `gorm:"column:author;size:255" json:"author"`
	TotalStock     int        `gorm:"column:total_stock;not null;default:0" json:"total_stock"`
	AvailableStock int        `gorm:"column:available_stock;not null;default:0" json:"available_stock"`
	Status         BookStatus `gorm:"column:status;type:varchar(20);not null;default:'available'" json:"status"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// StatusFor вычисляет статус по числу доступных экземпляров
func StatusFor(available int) BookStatus {
	if available == 0 {
		return BookStatusFullyLoaned
	}
	return BookStatusAvailable
}

// Validate проверяет инварианты остатков
func (b Book) Validate() error {
	if b.TotalStock < 0 || b.AvailableStock < 0 || b.AvailableStock > b.TotalStock {
		return fmt.Errorf("%w: доступно %d из %d", ErrInvalidStock, b.AvailableStock, b.TotalStock)
	}
	if b.Status != StatusFor(b.AvailableStock) {
		return fmt.Errorf("%w: статус %s при остатке %d", ErrInvalidStock, b.Status, b.AvailableStock)
	}
	return nil
}

// Reserved возвращает состояние книги после выдачи одного экземпляра
func (b Book) Reserved() (Book, error) {
	if b.AvailableStock <= 0 {
		return b, fmt.Errorf("%w: книга %d", ErrOutOfStock, b.ID)
	}
	b.AvailableStock--
	b.Status = StatusFor(b.AvailableStock)
	return b, nil
}

// Released возвращает состояние книги после возврата экземпляра.
// Остаток не превышает TotalStock; второй результат false, если пополнять было нечего.
func (b Book) Released() (Book, bool) {
	if b.AvailableStock >= b.TotalStock {
		b.AvailableStock = b.TotalStock
		b.Status = StatusFor(b.AvailableStock)
		return b, false
	}
	b.AvailableStock++
	b.Status = StatusFor(b.AvailableStock)
	return b, true
}

// Resized возвращает состояние книги с новым общим количеством экземпляров
func (b Book) Resized(newTotal int) (Book, error) {
	if newTotal < 0 {
		return b, fmt.Errorf("%w: %d", ErrInvalidStock, newTotal)
	}
	b.TotalStock = newTotal
	b.AvailableStock = min(b.AvailableStock, newTotal)
	b.Status = StatusFor(b.AvailableStock)
	return b, nil
}

// BeforeCreate хук для проверки остатков перед созданием
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.Status == "" {
		b.Status = StatusFor(b.AvailableStock)
	}
	return b.Validate()
}
