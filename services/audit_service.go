package services

import (
	"booklending/models"
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditService сохраняет события займов в журнал audit_logs
type AuditService struct {
	db *gorm.DB
}

// NewAuditService создает новый экземпляр AuditService
func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// HandleLoanEvent записывает событие; повторная доставка того же события игнорируется
func (s *AuditService) HandleLoanEvent(ctx context.Context, event LoanEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	entry := &models.AuditLog{
		EventID:     event.EventID.String(),
		Entity:      models.LoanEntity,
		Action:      string(event.Action),
		LoanID:      event.LoanID,
		PerformedBy: event.PerformedBy,
		Payload:     string(payload),
		CreatedAt:   event.OccurredAt,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return fmt.Errorf("ошибка при записи журнала аудита: %w", err)
	}
	return nil
}

// LoanTrail возвращает журнал событий займа в порядке записи
func (s *AuditService) LoanTrail(ctx context.Context, loanID uint) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := s.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении журнала аудита: %w", err)
	}
	return entries, nil
}

// DecodePayload восстанавливает событие из записи журнала
func DecodePayload(entry models.AuditLog) (LoanEvent, error) {
	var event LoanEvent
	if err := json.Unmarshal([]byte(entry.Payload), &event); err != nil {
		return event, fmt.Errorf("ошибка разбора события %s: %w", entry.EventID, err)
	}
	return event, nil
}
