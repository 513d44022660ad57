package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateBookDTO данные для добавления книги
type CreateBookDTO struct {
	Title  string `json:"title" validate:"required,min=1,max=255"`
	Author string `json:"author" validate:"max=255"`
	Stock  int    `json:"stock" validate:"required,gte=1"`
}

// ResizeStockDTO новое общее количество экземпляров
type ResizeStockDTO struct {
	TotalStock *int `json:"total_stock" validate:"required,gte=0"`
}

// sampleBooks книги для заполнения пустого каталога
var sampleBooks = []CreateBookDTO{
	{Title: "Laskar Pelangi", Author: "Andrea Hirata", Stock: 3},
	{Title: "Bumi Manusia", Author: "Pramoedya Ananta Toer", Stock: 2},
	{Title: "Negeri 5 Menara", Author: "Ahmad Fuadi", Stock: 2},
	{Title: "Ronggeng Dukuh Paruk", Author: "Ahmad Tohari", Stock: 1},
	{Title: "Cantik Itu Luka", Author: "Eka Kurniawan", Stock: 1},
}

// CatalogService предоставляет методы для работы с каталогом книг.
// Остатки меняются только через BookLedger.
type CatalogService struct {
	db        *gorm.DB
	ledger    *BookLedger
	validator *validator.Validate
}

// NewCatalogService создает новый экземпляр CatalogService
func NewCatalogService(db *gorm.DB, ledger *BookLedger) *CatalogService {
	return &CatalogService{
		db:        db,
		ledger:    ledger,
		validator: validator.New(),
	}
}

// AddBook добавляет книгу; все экземпляры доступны
func (s *CatalogService) AddBook(ctx context.Context, dto CreateBookDTO) (*models.Book, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	book := &models.Book{Title: dto.Title, Author: dto.Author}
	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		return s.ledger.Register(tx, book, dto.Stock)
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Добавлена книга %d %q, экземпляров %d", book.ID, book.Title, book.TotalStock)
	return book, nil
}

// ResizeStock меняет общее количество экземпляров книги
func (s *CatalogService) ResizeStock(ctx context.Context, bookID uint, newTotal int) (*models.Book, error) {
	var book *models.Book
	err := withTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		book, err = s.ledger.Resize(tx, bookID, newTotal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// GetBook возвращает книгу с остатками
func (s *CatalogService) GetBook(ctx context.Context, bookID uint) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: книга %d", models.ErrNotFound, bookID)
		}
		return nil, fmt.Errorf("ошибка при получении книги: %w", err)
	}
	return &book, nil
}

// SeedSampleBooks заполняет пустой каталог примерами; возвращает число добавленных книг
func (s *CatalogService) SeedSampleBooks(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Book{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("ошибка при подсчете книг: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i, dto := range sampleBooks {
		if _, err := s.AddBook(ctx, dto); err != nil {
			return i, err
		}
	}
	return len(sampleBooks), nil
}
