package services

import (
	"context"
	"testing"

	"booklending/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	book, err := f.catalog.AddBook(ctx, CreateBookDTO{Title: "Dune", Author: "Frank Herbert", Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, book.TotalStock)
	assert.Equal(t, 3, book.AvailableStock)
	assert.Equal(t, models.BookStatusAvailable, book.Status)

	_, err = f.catalog.AddBook(ctx, CreateBookDTO{Title: "Nothing", Stock: 0})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.catalog.AddBook(ctx, CreateBookDTO{Stock: 1})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestResizeStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 3)
	f.activeLoan(t, f.alice, book)
	f.activeLoan(t, f.bob, book)

	grown, err := f.catalog.ResizeStock(ctx, book.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, grown.TotalStock)
	assert.Equal(t, 1, grown.AvailableStock)

	shrunk, err := f.catalog.ResizeStock(ctx, book.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, shrunk.AvailableStock)
	assert.Equal(t, models.BookStatusFullyLoaned, shrunk.Status)

	_, err = f.catalog.ResizeStock(ctx, book.ID, -1)
	assert.ErrorIs(t, err, models.ErrInvalidStock)
	_, err = f.catalog.ResizeStock(ctx, 9999, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)

	stored := f.book(t, book.ID)
	assert.Equal(t, 0, stored.TotalStock)
	assert.NoError(t, stored.Validate())
}

func TestLedgerRejectsStaleWrite(t *testing.T) {
	f := newFixture(t)
	book := f.addBook(t, "Dune", 2)
	ledger := f.loans.Ledger()

	stale := *book
	require.NoError(t, f.db.DB.Model(&models.Book{}).Where("id = ?", book.ID).
		Updates(map[string]interface{}{"available_stock": 1}).Error)

	next, err := stale.Reserved()
	require.NoError(t, err)
	err = ledger.store(f.db.DB, stale, next)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSeedSampleBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.catalog.SeedSampleBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleBooks), added)

	added, err = f.catalog.SeedSampleBooks(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)
}
