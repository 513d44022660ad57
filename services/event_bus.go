package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoanEvent доменное событие: займ перешел в новое состояние
type LoanEvent struct {
	EventID       uuid.UUID         `json:"event_id"`
	LoanID        uint              `json:"loan_id"`
	UserID        uint              `json:"user_id"`
	BookID        uint              `json:"book_id"`
	Action        models.LoanAction `json:"action"`
	PreviousState models.LoanState  `json:"previous_state"`
	NewState      models.LoanState  `json:"new_state"`
	PerformedBy   *uint             `json:"performed_by,omitempty"` // nil для сверки
	OccurredAt    time.Time         `json:"occurred_at"`
}

// newLoanEvent строит событие по займу после перехода
func newLoanEvent(loan *models.Loan, action models.LoanAction, from models.LoanState, performedBy *uint, at time.Time) LoanEvent {
	return LoanEvent{
		EventID:       uuid.New(),
		LoanID:        loan.ID,
		UserID:        loan.UserID,
		BookID:        loan.BookID,
		Action:        action,
		PreviousState: from,
		NewState:      loan.State,
		PerformedBy:   performedBy,
		OccurredAt:    at,
	}
}

// EventPublisher принимает события после фиксации транзакции
type EventPublisher interface {
	Publish(ctx context.Context, event LoanEvent)
}

// EventHandler обработчик события; ошибка логируется и не влияет на операцию
type EventHandler func(ctx context.Context, event LoanEvent) error

// EventBus синхронно раздает события подписчикам
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
	order    []string
}

// NewEventBus создает новый экземпляр EventBus
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string]EventHandler)}
}

// Subscribe регистрирует обработчик под именем; повторная регистрация заменяет его
func (b *EventBus) Subscribe(name string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.handlers[name]; !ok {
		b.order = append(b.order, name)
	}
	b.handlers[name] = handler
}

// Publish вызывает обработчики в порядке подписки
func (b *EventBus) Publish(ctx context.Context, event LoanEvent) {
	b.mu.RLock()
	names := append([]string(nil), b.order...)
	handlers := make([]EventHandler, len(names))
	for i, name := range names {
		handlers[i] = b.handlers[name]
	}
	b.mu.RUnlock()

	for i, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			utils.LogError("Обработчик %s не принял событие %s займа %d: %v", names[i], event.EventID, event.LoanID, err)
			utils.GetMetrics().RecordError(err)
		}
	}
}
