package services

import (
	"context"
	"sync"
	"testing"

	"booklending/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 2)

	loan, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatePending, loan.State)
	assert.Equal(t, f.clock.Today(), loan.RequestedDate)
	assert.Equal(t, f.clock.Today().AddDate(0, 0, 7), loan.DueDate)
	assert.Nil(t, loan.AdminID)

	// Заявка не резервирует экземпляр
	assert.Equal(t, 2, f.book(t, book.ID).AvailableStock)
}

func TestRequestLoanGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)
	empty := f.addBook(t, "Empty", 1)
	_, err := f.catalog.ResizeStock(ctx, empty.ID, 0)
	require.NoError(t, err)

	_, err = f.loans.RequestLoan(ctx, f.admin.ID, book.ID)
	assert.ErrorIs(t, err, models.ErrNotEligible)

	_, err = f.loans.RequestLoan(ctx, f.alice.ID, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.loans.RequestLoan(ctx, 9999, book.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.loans.RequestLoan(ctx, f.alice.ID, empty.ID)
	assert.ErrorIs(t, err, models.ErrOutOfStock)

	_, err = f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)
	_, err = f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateActive)
}

func TestDuplicateActiveCoversEveryOpenState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 3)

	loan := f.activeLoan(t, f.alice, book)
	_, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateActive)

	_, err = f.loans.RequestReturn(ctx, f.alice.ID, loan.ID, f.clock.Now().AddDate(0, 0, 2))
	require.NoError(t, err)
	_, err = f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateActive)

	_, err = f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	require.NoError(t, err)
	_, err = f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	assert.NoError(t, err)
}

// Единственный экземпляр: после выдачи первому пользователю второй получает отказ
func TestStockExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	loan := f.activeLoan(t, f.alice, book)
	assert.Equal(t, models.LoanStateActive, loan.State)
	require.NotNil(t, loan.AdminID)
	assert.Equal(t, f.admin.ID, *loan.AdminID)

	stored := f.book(t, book.ID)
	assert.Equal(t, 0, stored.AvailableStock)
	assert.Equal(t, models.BookStatusFullyLoaned, stored.Status)

	_, err := f.loans.RequestLoan(ctx, f.bob.ID, book.ID)
	assert.ErrorIs(t, err, models.ErrOutOfStock)
}

func TestApproveLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	pending, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)

	_, err = f.loans.ApproveLoan(ctx, f.bob.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrNotEligible)

	_, err = f.loans.ApproveLoan(ctx, f.admin.ID, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	f.clock.AdvanceDays(2)
	loan, err := f.loans.ApproveLoan(ctx, f.admin.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.RequestedDate, loan.RequestedDate)
	assert.Equal(t, f.clock.Today().AddDate(0, 0, 7), loan.DueDate)

	_, err = f.loans.ApproveLoan(ctx, f.admin.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)
	assert.Equal(t, 0, f.book(t, book.ID).AvailableStock)
}

func TestApproveLoanOutOfStockLeavesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	first, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)
	second, err := f.loans.RequestLoan(ctx, f.bob.ID, book.ID)
	require.NoError(t, err)

	_, err = f.loans.ApproveLoan(ctx, f.admin.ID, first.ID)
	require.NoError(t, err)
	_, err = f.loans.ApproveLoan(ctx, f.admin.ID, second.ID)
	assert.ErrorIs(t, err, models.ErrOutOfStock)

	assert.Equal(t, models.LoanStatePending, f.loan(t, second.ID).State)
	assert.Equal(t, 0, f.book(t, book.ID).AvailableStock)
}

func TestRejectLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	pending, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)

	_, err = f.loans.RejectLoan(ctx, f.alice.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrNotEligible)

	loan, err := f.loans.RejectLoan(ctx, f.admin.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStateRejected, loan.State)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableStock)

	_, err = f.loans.ApproveLoan(ctx, f.admin.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)

	// Отклоненная заявка освобождает пару (пользователь, книга)
	_, err = f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	assert.NoError(t, err)
}

func TestCancelLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	pending, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)

	_, err = f.loans.CancelLoan(ctx, f.bob.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrNotOwner)

	loan, err := f.loans.CancelLoan(ctx, f.alice.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStateCancelled, loan.State)
	assert.Nil(t, loan.SelectedReturnDate)

	_, err = f.loans.CancelLoan(ctx, f.alice.ID, pending.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)

	active := f.activeLoan(t, f.alice, book)
	_, err = f.loans.CancelLoan(ctx, f.alice.ID, active.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)
}

func TestRequestReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	pending, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)
	_, err = f.loans.RequestReturn(ctx, f.alice.ID, pending.ID, f.clock.Now())
	assert.ErrorIs(t, err, models.ErrWrongState)

	active, err := f.loans.ApproveLoan(ctx, f.admin.ID, pending.ID)
	require.NoError(t, err)

	_, err = f.loans.RequestReturn(ctx, f.bob.ID, active.ID, f.clock.Now())
	assert.ErrorIs(t, err, models.ErrNotOwner)

	_, err = f.loans.RequestReturn(ctx, f.alice.ID, active.ID, f.clock.Now().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, models.ErrInvalidDate)
	assert.Equal(t, models.LoanStateActive, f.loan(t, active.ID).State)

	loan, err := f.loans.RequestReturn(ctx, f.alice.ID, active.ID, f.clock.Now().AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, models.LoanStateReturnRequested, loan.State)
	require.NotNil(t, loan.SelectedReturnDate)
	assert.Equal(t, f.clock.Today().AddDate(0, 0, 3), *loan.SelectedReturnDate)

	// Возврат еще не оформлен: экземпляр остается выданным
	assert.Equal(t, 0, f.book(t, book.ID).AvailableStock)

	_, err = f.loans.RequestReturn(ctx, f.alice.ID, active.ID, f.clock.Now())
	assert.ErrorIs(t, err, models.ErrWrongState)
}

func TestApproveReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)
	loan := f.activeLoan(t, f.alice, book)

	_, err := f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)

	_, err = f.loans.RequestReturn(ctx, f.alice.ID, loan.ID, f.clock.Now().AddDate(0, 0, 10))
	require.NoError(t, err)

	_, err = f.loans.ApproveReturn(ctx, f.alice.ID, loan.ID)
	assert.ErrorIs(t, err, models.ErrNotEligible)

	record, err := f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.ID, record.LoanID)
	assert.Equal(t, f.clock.Today().AddDate(0, 0, 10), record.ReturnDate)
	assert.False(t, record.OnTime)

	assert.Equal(t, models.LoanStateReturned, f.loan(t, loan.ID).State)
	stored := f.book(t, book.ID)
	assert.Equal(t, 1, stored.AvailableStock)
	assert.Equal(t, models.BookStatusAvailable, stored.Status)

	_, err = f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	assert.ErrorIs(t, err, models.ErrWrongState)
	assert.Equal(t, int64(1), f.returnRecords(t, loan.ID))
}

func TestLoanRoundTripRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 3)

	loan := f.activeLoan(t, f.alice, book)
	assert.Equal(t, 2, f.book(t, book.ID).AvailableStock)

	_, err := f.loans.RequestReturn(ctx, f.alice.ID, loan.ID, f.clock.Now())
	require.NoError(t, err)
	record, err := f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	require.NoError(t, err)
	assert.True(t, record.OnTime)

	stored := f.book(t, book.ID)
	assert.Equal(t, 3, stored.AvailableStock)
	assert.Equal(t, 3, stored.TotalStock)

	trail, err := f.audit.LoanTrail(ctx, loan.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(trail))
	for _, entry := range trail {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{"request", "approve", "request_return", "approve_return"}, actions)
	assert.Equal(t, int64(2), f.metrics.StockReservations+f.metrics.StockReleases)
}

// Возврат при полном остатке не поднимает его выше общего количества
func TestApproveReturnClampsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 2)
	loan := f.activeLoan(t, f.alice, book)

	_, err := f.catalog.ResizeStock(ctx, book.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.book(t, book.ID).AvailableStock)

	_, err = f.loans.RequestReturn(ctx, f.alice.ID, loan.ID, f.clock.Now())
	require.NoError(t, err)
	_, err = f.loans.ApproveReturn(ctx, f.admin.ID, loan.ID)
	require.NoError(t, err)

	stored := f.book(t, book.ID)
	assert.Equal(t, 1, stored.TotalStock)
	assert.Equal(t, 1, stored.AvailableStock)
	assert.NoError(t, stored.Validate())
}

// Два одновременных одобрения на последний экземпляр: ровно одно проходит
func TestConcurrentApprovalsOnLastCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 1)

	first, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)
	second, err := f.loans.RequestLoan(ctx, f.bob.ID, book.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = f.loans.ApproveLoan(ctx, f.admin.ID, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrOutOfStock)
	}
	assert.Equal(t, 1, succeeded)

	stored := f.book(t, book.ID)
	assert.Equal(t, 0, stored.AvailableStock)
	assert.Equal(t, models.BookStatusFullyLoaned, stored.Status)
}

// Одновременные одобрения одной заявки: второе видит новое состояние
func TestConcurrentApprovalsOfSameLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := f.addBook(t, "Dune", 5)

	pending, err := f.loans.RequestLoan(ctx, f.alice.ID, book.ID)
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.loans.ApproveLoan(ctx, f.admin.ID, pending.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrWrongState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, f.book(t, book.ID).AvailableStock)
}
