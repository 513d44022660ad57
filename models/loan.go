package models

import (
	"time"
)

// Loan представляет займ книги пользователем.
// Записи не удаляются, история хранится целиком.
type Loan struct {
	ID                 uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID             uint          `gorm:"column:user_id;not null;index" json:"user_id"`
	User               User          `gorm:"foreignKey:UserID" json:"-"`
	BookID             uint          `gorm:"column:book_id;not null;index" json:"book_id"`
	Book               Book          `gorm:"foreignKey:BookID" json:"-"`
	RequestedDate      time.Time     `gorm:"column:requested_date;not null" json:"requested_date"`
	DueDate            time.Time     `gorm:"column:due_date;not null" json:"due_date"`
	SelectedReturnDate *time.Time    `gorm:"column:selected_return_date" json:"selected_return_date,omitempty"`
	State              LoanState     `gorm:"column:state;type:varchar(20);not null;default:'pending';index" json:"state"`
	AdminID            *uint         `gorm:"column:admin_id" json:"admin_id,omitempty"`
	ReturnRecord       *ReturnRecord `gorm:"foreignKey:LoanID" json:"return_record,omitempty"`
	CreatedAt          time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Loan) TableName() string {
	return "loans"
}

// ReturnRecord фиксирует завершенный возврат. Одна запись на займ.
type ReturnRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanID     uint      `gorm:"column:loan_id;not null;uniqueIndex" json:"loan_id"`
	ReturnDate time.Time `gorm:"column:return_date;not null" json:"return_date"`
	OnTime     bool      `gorm:"column:on_time;not null" json:"on_time"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ReturnRecord) TableName() string {
	return "return_records"
}

// NewReturnRecord создает запись о возврате; возврат вовремя, если дата не позже срока
func NewReturnRecord(loan *Loan, returnDate time.Time) *ReturnRecord {
	return &ReturnRecord{
		LoanID:     loan.ID,
		ReturnDate: returnDate,
		OnTime:     !DateOf(returnDate).After(DateOf(loan.DueDate)),
	}
}

// DateOf отбрасывает время суток
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
