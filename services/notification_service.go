package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// ErrNotificationQueueFull очередь уведомлений переполнена, письмо пропущено
var ErrNotificationQueueFull = errors.New("очередь уведомлений переполнена")

// notifyStates состояния, о которых пользователь получает письмо
var notifyStates = map[models.LoanState]bool{
	models.LoanStateActive:   true,
	models.LoanStateRejected: true,
	models.LoanStateReturned: true,
	models.LoanStateOverdue:  true,
}

// NotificationService отправляет письма пользователям о решениях по их займам.
// События ставятся в очередь, письма уходят из фоновой горутины.
type NotificationService struct {
	db     *gorm.DB
	mailer Mailer
	queue  chan LoanEvent
	wg     sync.WaitGroup
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(db *gorm.DB, mailer Mailer, buffer int) *NotificationService {
	return &NotificationService{
		db:     db,
		mailer: mailer,
		queue:  make(chan LoanEvent, buffer),
	}
}

// HandleLoanEvent ставит письмо в очередь, не блокируя операцию
func (s *NotificationService) HandleLoanEvent(_ context.Context, event LoanEvent) error {
	if !notifyStates[event.NewState] {
		return nil
	}
	select {
	case s.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: займ %d", ErrNotificationQueueFull, event.LoanID)
	}
}

// Start запускает отправку писем до отмены ctx
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-s.queue:
				if err := s.deliver(ctx, event); err != nil {
					utils.LogError("Не удалось отправить уведомление по займу %d: %v", event.LoanID, err)
					utils.GetMetrics().RecordError(err)
				}
			}
		}
	}()
}

// Wait ждет остановки отправителя после отмены ctx
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliver(ctx context.Context, event LoanEvent) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, event.UserID).Error; err != nil {
		return fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, event.BookID).Error; err != nil {
		return fmt.Errorf("ошибка при получении книги: %w", err)
	}

	subject, body := loanMessage(event, user, book)
	return s.mailer.SendEmail(user.Email, subject, body)
}

// loanMessage формирует тему и тело письма о новом состоянии займа
func loanMessage(event LoanEvent, user models.User, book models.Book) (string, string) {
	var subject, text string
	switch event.NewState {
	case models.LoanStateActive:
		subject = "Заявка на книгу одобрена"
		text = fmt.Sprintf("Книга «%s» выдана. Займ #%d.", book.Title, event.LoanID)
	case models.LoanStateRejected:
		subject = "Заявка на книгу отклонена"
		text = fmt.Sprintf("Заявка #%d на книгу «%s» отклонена.", event.LoanID, book.Title)
	case models.LoanStateReturned:
		subject = "Возврат книги оформлен"
		text = fmt.Sprintf("Возврат книги «%s» по займу #%d оформлен.", book.Title, event.LoanID)
	case models.LoanStateOverdue:
		subject = "Срок займа истек"
		text = fmt.Sprintf("Срок возврата книги «%s» по займу #%d истек. Выберите дату возврата.", book.Title, event.LoanID)
	}

	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>Здравствуйте, %s!</p>
		<p>%s</p>
		<p>Дата: %s</p>
	`, subject, user.Name, text, event.OccurredAt.Format("02.01.2006 15:04:05"))
	return subject, body
}
