package services

import (
	"booklending/database"
	"booklending/models"
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

const (
	loanHistoryView = "loan_history"

	colLoanID     = "loan_id"
	colUserID     = "user_id"
	colState      = "state"
	colReturnDate = "return_date"
)

// LoanView строка представления loan_history: займ вместе с книгой, пользователем и возвратом
type LoanView struct {
	LoanID             uint       `db:"loan_id" json:"loan_id"`
	UserID             uint       `db:"user_id" json:"user_id"`
	UserName           string     `db:"user_name" json:"user_name"`
	BookID             uint       `db:"book_id" json:"book_id"`
	BookTitle          string     `db:"book_title" json:"book_title"`
	RequestedDate      time.Time  `db:"requested_date" json:"requested_date"`
	DueDate            time.Time  `db:"due_date" json:"due_date"`
	SelectedReturnDate *time.Time `db:"selected_return_date" json:"selected_return_date,omitempty"`
	State              string     `db:"state" json:"state"`
	AdminID            *uint      `db:"admin_id" json:"admin_id,omitempty"`
	ReturnDate         *time.Time `db:"return_date" json:"return_date,omitempty"`
	OnTime             *bool      `db:"on_time" json:"on_time,omitempty"`
}

// LoanFilter ограничивает выборку займов; пустые поля не фильтруют
type LoanFilter struct {
	State models.LoanState
}

// StateCount число займов в состоянии
type StateCount struct {
	State string `db:"state" json:"state"`
	Count int64  `db:"count" json:"count"`
}

// Dashboard сводка по каталогу и займам
type Dashboard struct {
	Books           int64        `db:"books" json:"books"`
	TotalCopies     int64        `db:"total_copies" json:"total_copies"`
	AvailableCopies int64        `db:"available_copies" json:"available_copies"`
	LoansByState    []StateCount `db:"-" json:"loans_by_state"`
}

// ReportService строит отчеты только на чтение: goqu собирает SELECT, sqlx выполняет
type ReportService struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewReportService создает отчеты поверх соединения gorm
func NewReportService(gdb *gorm.DB, driver string) (*ReportService, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении соединения: %w", err)
	}

	var driverName, dialect string
	switch driver {
	case database.DriverPostgres:
		driverName, dialect = "pgx", "postgres"
	case database.DriverSQLite:
		driverName, dialect = "sqlite3", "sqlite3"
	default:
		return nil, fmt.Errorf("неизвестный драйвер базы данных: %s", driver)
	}

	return &ReportService{
		db:      sqlx.NewDb(sqlDB, driverName),
		dialect: goqu.Dialect(dialect),
	}, nil
}

// AllLoans возвращает займы, новые первыми
func (r *ReportService) AllLoans(ctx context.Context, filter LoanFilter) ([]LoanView, error) {
	ds := r.loanHistory()
	if filter.State != "" {
		ds = ds.Where(goqu.C(colState).Eq(string(filter.State)))
	}
	return r.selectLoans(ctx, ds.Order(goqu.C(colLoanID).Desc()))
}

// UserHistory возвращает историю займов пользователя, новые первыми
func (r *ReportService) UserHistory(ctx context.Context, userID uint) ([]LoanView, error) {
	ds := r.loanHistory().
		Where(goqu.C(colUserID).Eq(userID)).
		Order(goqu.C(colLoanID).Desc())
	return r.selectLoans(ctx, ds)
}

// ReturnedHistory возвращает завершенные возвраты, последние первыми
func (r *ReportService) ReturnedHistory(ctx context.Context) ([]LoanView, error) {
	ds := r.loanHistory().
		Where(goqu.C(colState).Eq(string(models.LoanStateReturned))).
		Order(goqu.C(colReturnDate).Desc(), goqu.C(colLoanID).Desc())
	return r.selectLoans(ctx, ds)
}

// Dashboard возвращает сводку по каталогу и займам
func (r *ReportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	stockQuery, _, err := r.dialect.From("books").
		Select(
			goqu.COUNT("*").As("books"),
			goqu.COALESCE(goqu.SUM("total_stock"), 0).As("total_copies"),
			goqu.COALESCE(goqu.SUM("available_stock"), 0).As("available_copies"),
		).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("ошибка при построении запроса сводки: %w", err)
	}

	dashboard := &Dashboard{}
	if err := r.db.GetContext(ctx, dashboard, stockQuery); err != nil {
		return nil, fmt.Errorf("ошибка при получении сводки по каталогу: %w", err)
	}

	stateQuery, _, err := r.dialect.From("loans").
		Select(goqu.C(colState), goqu.COUNT("*").As("count")).
		GroupBy(goqu.C(colState)).
		Order(goqu.C(colState).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("ошибка при построении запроса сводки: %w", err)
	}

	dashboard.LoansByState = []StateCount{}
	if err := r.db.SelectContext(ctx, &dashboard.LoansByState, stateQuery); err != nil {
		return nil, fmt.Errorf("ошибка при получении сводки по займам: %w", err)
	}
	return dashboard, nil
}

func (r *ReportService) loanHistory() *goqu.SelectDataset {
	return r.dialect.From(loanHistoryView).Select(&LoanView{})
}

func (r *ReportService) selectLoans(ctx context.Context, ds *goqu.SelectDataset) ([]LoanView, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("ошибка при построении запроса займов: %w", err)
	}

	loans := []LoanView{}
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("ошибка при получении займов: %w", err)
	}
	return loans, nil
}
