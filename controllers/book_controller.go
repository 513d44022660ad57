package controllers

import (
	"booklending/services"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// BookController обрабатывает запросы к каталогу
type BookController struct {
	catalog   *services.CatalogService
	users     services.UserLookup
	validator *validator.Validate
}

// NewBookController создает новый экземпляр BookController
func NewBookController(catalog *services.CatalogService, users services.UserLookup) *BookController {
	return &BookController{
		catalog:   catalog,
		users:     users,
		validator: validator.New(),
	}
}

// AddBook добавляет книгу в каталог
func (c *BookController) AddBook(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}

	var dto services.CreateBookDTO
	if !decodeBody(w, r, c.validator, &dto) {
		return
	}

	book, err := c.catalog.AddBook(r.Context(), dto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// ResizeStock меняет общее количество экземпляров
func (c *BookController) ResizeStock(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto services.ResizeStockDTO
	if !decodeBody(w, r, c.validator, &dto) {
		return
	}

	book, err := c.catalog.ResizeStock(r.Context(), bookID, *dto.TotalStock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GetBook возвращает книгу с остатками
func (c *BookController) GetBook(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	book, err := c.catalog.GetBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}
