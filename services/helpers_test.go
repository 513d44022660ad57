package services

import (
	"booklending/config"
	"booklending/database"
	"booklending/models"
	"booklending/utils"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) AdvanceDays(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

func (c *testClock) Today() time.Time {
	return models.DateOf(c.Now())
}

type fixture struct {
	db      *database.Database
	clock   *testClock
	metrics *utils.Metrics
	bus     *EventBus
	users   *UserService
	loans   *LoanService
	catalog *CatalogService
	sweep   *ReconciliationService
	reports *ReportService
	audit   *AuditService

	admin *models.User
	alice *models.User
	bob   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.DB.Driver = database.DriverSQLite
	cfg.DB.Path = filepath.Join(t.TempDir(), "library.db")
	cfg.DB.MaxOpenConns = 4
	cfg.DB.MaxIdleConns = 2

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:      db,
		clock:   newTestClock(),
		metrics: utils.NewMetrics(),
		bus:     NewEventBus(),
		users:   NewUserService(db.DB),
		audit:   NewAuditService(db.DB),
	}
	f.bus.Subscribe("audit", f.audit.HandleLoanEvent)

	f.loans = NewLoanService(db.DB, f.users, f.bus,
		WithClock(f.clock.Now),
		WithLoanDays(7),
		WithMetrics(f.metrics),
	)
	f.catalog = NewCatalogService(db.DB, f.loans.Ledger())
	f.sweep = NewReconciliationService(f.loans)
	f.reports, err = NewReportService(db.DB, db.Driver)
	require.NoError(t, err)

	f.admin = f.createUser(t, "Admin", models.RoleAdmin)
	f.alice = f.createUser(t, "Alice", models.RoleUser)
	f.bob = f.createUser(t, "Bob", models.RoleUser)
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), CreateUserRequest{
		Name:     name,
		Email:    fmt.Sprintf("%s@example.com", name),
		Password: "password123",
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) addBook(t *testing.T, title string, stock int) *models.Book {
	t.Helper()
	book, err := f.catalog.AddBook(context.Background(), CreateBookDTO{Title: title, Author: "Author", Stock: stock})
	require.NoError(t, err)
	return book
}

func (f *fixture) book(t *testing.T, id uint) *models.Book {
	t.Helper()
	book, err := f.catalog.GetBook(context.Background(), id)
	require.NoError(t, err)
	return book
}

func (f *fixture) loan(t *testing.T, id uint) *models.Loan {
	t.Helper()
	loan, err := f.loans.Loans().Get(f.db.DB, id)
	require.NoError(t, err)
	return loan
}

func (f *fixture) returnRecords(t *testing.T, loanID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.DB.Model(&models.ReturnRecord{}).Where("loan_id = ?", loanID).Count(&count).Error)
	return count
}

// activeLoan проводит заявку пользователя через одобрение
func (f *fixture) activeLoan(t *testing.T, user *models.User, book *models.Book) *models.Loan {
	t.Helper()
	ctx := context.Background()
	loan, err := f.loans.RequestLoan(ctx, user.ID, book.ID)
	require.NoError(t, err)
	loan, err = f.loans.ApproveLoan(ctx, f.admin.ID, loan.ID)
	require.NoError(t, err)
	return loan
}
