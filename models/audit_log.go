package models

import "time"

// AuditLog сохраненное доменное событие займа
type AuditLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"column:event_id;type:varchar(36);not null;uniqueIndex" json:"event_id"`
	Entity      string    `gorm:"column:entity;not null;size:50" json:"entity"`
	Action      string    `gorm:"column:action;not null;size:50" json:"action"`
	LoanID      uint      `gorm:"column:loan_id;not null;index" json:"loan_id"`
	PerformedBy *uint     `gorm:"column:performed_by" json:"performed_by,omitempty"` // nil для сверки
	Payload     string    `gorm:"column:payload;type:text;not null" json:"payload"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

const (
	LoanEntity = "loan"
)
