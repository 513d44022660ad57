package services

import (
	"booklending/models"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanStore хранит займы и записи о возврате. Займы не удаляются.
type LoanStore struct{}

// NewLoanStore создает новый экземпляр LoanStore
func NewLoanStore() *LoanStore {
	return &LoanStore{}
}

// Create сохраняет новый займ; второй открытый займ той же пары отклоняется уникальным индексом
func (s *LoanStore) Create(tx *gorm.DB, loan *models.Loan) error {
	if err := tx.Omit(clause.Associations).Create(loan).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: пользователь %d, книга %d", models.ErrDuplicateActive, loan.UserID, loan.BookID)
		}
		return fmt.Errorf("ошибка при создании займа: %w", err)
	}
	return nil
}

// Get возвращает займ без блокировки
func (s *LoanStore) Get(db *gorm.DB, loanID uint) (*models.Loan, error) {
	return s.get(db, loanID)
}

// Lock читает займ с блокировкой строки до конца транзакции
func (s *LoanStore) Lock(tx *gorm.DB, loanID uint) (*models.Loan, error) {
	return s.get(forUpdate(tx), loanID)
}

func (s *LoanStore) get(db *gorm.DB, loanID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := db.First(&loan, loanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: займ %d", models.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("ошибка при получении займа: %w", err)
	}
	return &loan, nil
}

// FindOpen возвращает открытый займ пары (пользователь, книга) или nil
func (s *LoanStore) FindOpen(tx *gorm.DB, userID, bookID uint) (*models.Loan, error) {
	var loan models.Loan
	err := tx.Where("user_id = ? AND book_id = ? AND state IN ?", userID, bookID, models.OpenLoanStates).
		First(&loan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске открытого займа: %w", err)
	}
	return &loan, nil
}

// Transition переводит займ в состояние to, только если в базе он все еще в loan.State.
// fields дописываются в то же обновление. При успехе loan отражает новое состояние.
func (s *LoanStore) Transition(tx *gorm.DB, loan *models.Loan, to models.LoanState, fields map[string]interface{}) error {
	updates := map[string]interface{}{"state": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := tx.Model(&models.Loan{}).
		Where("id = ? AND state = ?", loan.ID, loan.State).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("ошибка при обновлении займа: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: займ %d уже не в состоянии %s", models.ErrWrongState, loan.ID, loan.State)
	}

	loan.State = to
	return tx.First(loan, loan.ID).Error
}

// CreateReturnRecord сохраняет запись о возврате; повторная запись для займа означает, что возврат уже завершен
func (s *LoanStore) CreateReturnRecord(tx *gorm.DB, record *models.ReturnRecord) error {
	if err := tx.Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: возврат займа %d уже оформлен", models.ErrWrongState, record.LoanID)
		}
		return fmt.Errorf("ошибка при создании записи о возврате: %w", err)
	}
	return nil
}

// FindReturnRecord возвращает запись о возврате займа или nil
func (s *LoanStore) FindReturnRecord(tx *gorm.DB, loanID uint) (*models.ReturnRecord, error) {
	var record models.ReturnRecord
	err := tx.Where("loan_id = ?", loanID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении записи о возврате: %w", err)
	}
	return &record, nil
}

// DueForFinalization возвращает займы с запрошенным возвратом, дата которого наступила
func (s *LoanStore) DueForFinalization(db *gorm.DB, today time.Time) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.Loan{}).
		Where("state = ? AND selected_return_date IS NOT NULL AND selected_return_date <= ?",
			models.LoanStateReturnRequested, today).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при выборке займов для сверки: %w", err)
	}
	return ids, nil
}

// PastDue возвращает выданные займы с истекшим сроком
func (s *LoanStore) PastDue(db *gorm.DB, today time.Time) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.Loan{}).
		Where("state = ? AND due_date < ?", models.LoanStateActive, today).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка при выборке просроченных займов: %w", err)
	}
	return ids, nil
}
