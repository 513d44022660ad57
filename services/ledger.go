package services

import (
	"booklending/models"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BookLedger ведет остатки книг. Никакой другой код не пишет total_stock, available_stock и status.
// Все методы работают внутри транзакции вызывающего.
type BookLedger struct{}

// NewBookLedger создает новый экземпляр BookLedger
func NewBookLedger() *BookLedger {
	return &BookLedger{}
}

// Register добавляет книгу в каталог: все экземпляры доступны
func (l *BookLedger) Register(tx *gorm.DB, book *models.Book, stock int) error {
	if stock < 0 {
		return fmt.Errorf("%w: %d", models.ErrInvalidStock, stock)
	}
	book.TotalStock = stock
	book.AvailableStock = stock
	book.Status = models.StatusFor(stock)
	if err := tx.Create(book).Error; err != nil {
		return fmt.Errorf("ошибка при создании книги: %w", err)
	}
	return nil
}

// Get читает книгу с блокировкой строки
func (l *BookLedger) Get(tx *gorm.DB, bookID uint) (*models.Book, error) {
	var book models.Book
	if err := forUpdate(tx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: книга %d", models.ErrNotFound, bookID)
		}
		return nil, fmt.Errorf("ошибка при получении книги: %w", err)
	}
	return &book, nil
}

// Reserve выдает один экземпляр. ErrOutOfStock, если свободных нет.
func (l *BookLedger) Reserve(tx *gorm.DB, bookID uint) (*models.Book, error) {
	book, err := l.Get(tx, bookID)
	if err != nil {
		return nil, err
	}

	next, err := book.Reserved()
	if err != nil {
		return nil, err
	}
	if err := l.store(tx, *book, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Release возвращает один экземпляр, не поднимая остаток выше общего количества.
// credited=false, если остаток уже был полным и ничего не изменилось.
func (l *BookLedger) Release(tx *gorm.DB, bookID uint) (book *models.Book, credited bool, err error) {
	current, err := l.Get(tx, bookID)
	if err != nil {
		return nil, false, err
	}

	next, credited := current.Released()
	if !credited {
		return current, false, nil
	}
	if err := l.store(tx, *current, next); err != nil {
		return nil, false, err
	}
	return &next, true, nil
}

// Resize меняет общее количество экземпляров; доступный остаток урезается до нового общего
func (l *BookLedger) Resize(tx *gorm.DB, bookID uint, newTotal int) (*models.Book, error) {
	book, err := l.Get(tx, bookID)
	if err != nil {
		return nil, err
	}

	next, err := book.Resized(newTotal)
	if err != nil {
		return nil, err
	}
	if err := l.store(tx, *book, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// store записывает новые остатки, только если строка не изменилась с момента чтения
func (l *BookLedger) store(tx *gorm.DB, prev, next models.Book) error {
	if err := next.Validate(); err != nil {
		return err
	}

	result := tx.Model(&models.Book{}).
		Where("id = ? AND total_stock = ? AND available_stock = ?", prev.ID, prev.TotalStock, prev.AvailableStock).
		Updates(map[string]interface{}{
			"total_stock":     next.TotalStock,
			"available_stock": next.AvailableStock,
			"status":          next.Status,
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка при обновлении остатков книги: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: остатки книги %d", models.ErrConflict, prev.ID)
	}
	return nil
}
