package database

import (
	"booklending/config"
	"booklending/models"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.DB.Driver = DriverSQLite
	cfg.DB.Path = filepath.Join(t.TempDir(), "library.db")
	cfg.DB.MaxOpenConns = 4
	cfg.DB.MaxIdleConns = 2
	return cfg
}

func connectTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Connect(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConnectCreatesSchema(t *testing.T) {
	db := connectTestDB(t)

	for _, table := range []string{"users", "books", "loans", "return_records", "audit_logs"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}

	var count int64
	require.NoError(t, db.DB.Table("loan_history").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestConnectIsRepeatable(t *testing.T) {
	cfg := sqliteConfig(t)

	first, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpenLoanUniqueIndex(t *testing.T) {
	db := connectTestDB(t)

	user := &models.User{Name: "Reader", Email: "reader@example.com", Password: "x"}
	require.NoError(t, db.DB.Create(user).Error)
	book := &models.Book{Title: "Dune", TotalStock: 2, AvailableStock: 2}
	require.NoError(t, db.DB.Create(book).Error)

	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	newLoan := func(state models.LoanState) *models.Loan {
		return &models.Loan{
			UserID:        user.ID,
			BookID:        book.ID,
			RequestedDate: now,
			DueDate:       now.AddDate(0, 0, 7),
			State:         state,
		}
	}

	require.NoError(t, db.DB.Omit("User", "Book").Create(newLoan(models.LoanStateReturned)).Error)
	require.NoError(t, db.DB.Omit("User", "Book").Create(newLoan(models.LoanStateRejected)).Error)
	require.NoError(t, db.DB.Omit("User", "Book").Create(newLoan(models.LoanStatePending)).Error)

	err := db.DB.Omit("User", "Book").Create(newLoan(models.LoanStateActive)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestBookCreateRejectsBrokenStock(t *testing.T) {
	db := connectTestDB(t)

	err := db.DB.Create(&models.Book{Title: "Broken", TotalStock: 1, AvailableStock: 3}).Error
	assert.ErrorIs(t, err, models.ErrInvalidStock)
}

func TestReturnRecordUniquePerLoan(t *testing.T) {
	db := connectTestDB(t)

	user := &models.User{Name: "Reader", Email: "reader@example.com", Password: "x"}
	require.NoError(t, db.DB.Create(user).Error)
	book := &models.Book{Title: "Dune", TotalStock: 1, AvailableStock: 1}
	require.NoError(t, db.DB.Create(book).Error)
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{UserID: user.ID, BookID: book.ID, RequestedDate: now, DueDate: now, State: models.LoanStateReturned}
	require.NoError(t, db.DB.Omit("User", "Book").Create(loan).Error)

	require.NoError(t, db.DB.Create(models.NewReturnRecord(loan, now)).Error)
	err := db.DB.Create(models.NewReturnRecord(loan, now)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestNewDialectorUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "oracle"
	_, err := newDialector(cfg)
	assert.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = DriverPostgres
	cfg.DB.User = "u"
	cfg.DB.Password = "p"
	cfg.DB.Host = "db"
	cfg.DB.Port = 5432
	cfg.DB.DBName = "library"
	cfg.DB.SSLMode = "disable"
	assert.Equal(t, "postgres://u:p@db:5432/library?sslmode=disable", migrateURL(cfg))

	cfg.DB.Driver = DriverSQLite
	cfg.DB.Path = "/tmp/lib.db"
	assert.Equal(t, "sqlite3:///tmp/lib.db?"+sqliteParams, migrateURL(cfg))
}
