package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultLoanDays срок займа по умолчанию
const DefaultLoanDays = 7

// Clock источник текущего времени
type Clock func() time.Time

// LoanService ведет жизненный цикл займов. Каждый переход, затрагивающий займ и книгу,
// выполняется в одной транзакции: займ, затем книга.
type LoanService struct {
	db       *gorm.DB
	users    UserLookup
	ledger   *BookLedger
	loans    *LoanStore
	events   EventPublisher
	metrics  *utils.Metrics
	loanDays int
	now      Clock
}

// LoanServiceOption настраивает LoanService
type LoanServiceOption func(*LoanService)

// WithClock подменяет источник времени
func WithClock(now Clock) LoanServiceOption {
	return func(s *LoanService) { s.now = now }
}

// WithLoanDays задает срок займа в днях
func WithLoanDays(days int) LoanServiceOption {
	return func(s *LoanService) {
		if days > 0 {
			s.loanDays = days
		}
	}
}

// WithMetrics подменяет набор метрик
func WithMetrics(m *utils.Metrics) LoanServiceOption {
	return func(s *LoanService) { s.metrics = m }
}

// NewLoanService создает новый экземпляр LoanService
func NewLoanService(db *gorm.DB, users UserLookup, events EventPublisher, opts ...LoanServiceOption) *LoanService {
	s := &LoanService{
		db:       db,
		users:    users,
		ledger:   NewBookLedger(),
		loans:    NewLoanStore(),
		events:   events,
		metrics:  utils.GetMetrics(),
		loanDays: DefaultLoanDays,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger возвращает журнал остатков, с которым работает сервис
func (s *LoanService) Ledger() *BookLedger {
	return s.ledger
}

// Loans возвращает хранилище займов
func (s *LoanService) Loans() *LoanStore {
	return s.loans
}

// GetLoan возвращает займ по ID
func (s *LoanService) GetLoan(ctx context.Context, loanID uint) (*models.Loan, error) {
	return s.loans.Get(s.db.WithContext(ctx), loanID)
}

// Now текущее время по часам сервиса
func (s *LoanService) Now() time.Time {
	return s.now()
}

func (s *LoanService) today() time.Time {
	return models.DateOf(s.now())
}

// RequestLoan создает заявку на займ книги
func (s *LoanService) RequestLoan(ctx context.Context, userID, bookID uint) (loan *models.Loan, err error) {
	startTime := time.Now()
	defer func() { s.finish("RequestLoan", startTime, err) }()

	actor, err := s.users.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return nil, fmt.Errorf("%w: администратор не может брать книги", models.ErrNotEligible)
	}

	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		book, err := s.ledger.Get(tx, bookID)
		if err != nil {
			return err
		}

		open, err := s.loans.FindOpen(tx, userID, bookID)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: займ %d в состоянии %s", models.ErrDuplicateActive, open.ID, open.State)
		}

		if book.AvailableStock <= 0 {
			return fmt.Errorf("%w: книга %d", models.ErrOutOfStock, bookID)
		}

		today := s.today()
		loan = &models.Loan{
			UserID:        userID,
			BookID:        bookID,
			RequestedDate: today,
			DueDate:       today.AddDate(0, 0, s.loanDays),
			State:         models.LoanStatePending,
		}
		return s.loans.Create(tx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, loan, models.LoanActionRequest, "", &actor.ID)
	return loan, nil
}

// ApproveLoan выдает книгу по заявке: резервирует экземпляр и начинает срок займа
func (s *LoanService) ApproveLoan(ctx context.Context, adminID, loanID uint) (loan *models.Loan, err error) {
	startTime := time.Now()
	defer func() { s.finish("ApproveLoan", startTime, err) }()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var from models.LoanState
	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		loan, err = s.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		from = loan.State

		to, err := models.NextState(loan.State, models.LoanActionApprove)
		if err != nil {
			return err
		}

		if _, err := s.ledger.Reserve(tx, loan.BookID); err != nil {
			return err
		}

		return s.loans.Transition(tx, loan, to, map[string]interface{}{
			"admin_id": adminID,
			"due_date": s.today().AddDate(0, 0, s.loanDays),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStock(-1)
	s.publish(ctx, loan, models.LoanActionApprove, from, &adminID)
	return loan, nil
}

// RejectLoan отклоняет заявку
func (s *LoanService) RejectLoan(ctx context.Context, adminID, loanID uint) (loan *models.Loan, err error) {
	startTime := time.Now()
	defer func() { s.finish("RejectLoan", startTime, err) }()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var from models.LoanState
	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		loan, err = s.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		from = loan.State

		to, err := models.NextState(loan.State, models.LoanActionReject)
		if err != nil {
			return err
		}
		return s.loans.Transition(tx, loan, to, map[string]interface{}{"admin_id": adminID})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, loan, models.LoanActionReject, from, &adminID)
	return loan, nil
}

// CancelLoan отменяет собственную заявку пользователя
func (s *LoanService) CancelLoan(ctx context.Context, userID, loanID uint) (loan *models.Loan, err error) {
	startTime := time.Now()
	defer func() { s.finish("CancelLoan", startTime, err) }()

	var from models.LoanState
	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		loan, err = s.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		if loan.UserID != userID {
			return fmt.Errorf("%w: займ %d", models.ErrNotOwner, loanID)
		}
		from = loan.State

		to, err := models.NextState(loan.State, models.LoanActionCancel)
		if err != nil {
			return err
		}
		return s.loans.Transition(tx, loan, to, map[string]interface{}{"selected_return_date": nil})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, loan, models.LoanActionCancel, from, &userID)
	return loan, nil
}

// RequestReturn фиксирует выбранную пользователем дату возврата; дата не раньше сегодняшней
func (s *LoanService) RequestReturn(ctx context.Context, userID, loanID uint, returnDate time.Time) (loan *models.Loan, err error) {
	startTime := time.Now()
	defer func() { s.finish("RequestReturn", startTime, err) }()

	selected := models.DateOf(returnDate.In(s.now().Location()))

	var from models.LoanState
	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		loan, err = s.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		if loan.UserID != userID {
			return fmt.Errorf("%w: займ %d", models.ErrNotOwner, loanID)
		}
		from = loan.State

		to, err := models.NextState(loan.State, models.LoanActionRequestReturn)
		if err != nil {
			return err
		}
		if selected.Before(s.today()) {
			return fmt.Errorf("%w: дата возврата %s в прошлом", models.ErrInvalidDate, selected.Format(time.DateOnly))
		}
		return s.loans.Transition(tx, loan, to, map[string]interface{}{"selected_return_date": selected})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, loan, models.LoanActionRequestReturn, from, &userID)
	return loan, nil
}

// ApproveReturn завершает возврат по решению администратора
func (s *LoanService) ApproveReturn(ctx context.Context, adminID, loanID uint) (record *models.ReturnRecord, err error) {
	startTime := time.Now()
	defer func() { s.finish("ApproveReturn", startTime, err) }()

	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	var (
		loan     *models.Loan
		from     models.LoanState
		credited bool
	)
	err = withTx(ctx, s.db, func(tx *gorm.DB) error {
		loan, err = s.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		from = loan.State

		returnDate := s.now()
		if loan.SelectedReturnDate != nil {
			returnDate = *loan.SelectedReturnDate
		}
		record, credited, err = s.finalizeReturn(tx, loan, models.LoanActionApproveReturn, returnDate)
		return err
	})
	if err != nil {
		return nil, err
	}

	if credited {
		s.metrics.RecordStock(1)
	}
	s.publish(ctx, loan, models.LoanActionApproveReturn, from, &adminID)
	return record, nil
}

// finalizeReturn переводит займ в returned, создает запись о возврате, если ее нет,
// и возвращает экземпляр в наличие. credited=false, если остаток уже был полным.
func (s *LoanService) finalizeReturn(tx *gorm.DB, loan *models.Loan, action models.LoanAction, returnDate time.Time) (*models.ReturnRecord, bool, error) {
	to, err := models.NextState(loan.State, action)
	if err != nil {
		return nil, false, err
	}
	if err := s.loans.Transition(tx, loan, to, nil); err != nil {
		return nil, false, err
	}

	record, err := s.loans.FindReturnRecord(tx, loan.ID)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		record = models.NewReturnRecord(loan, returnDate)
		if err := s.loans.CreateReturnRecord(tx, record); err != nil {
			return nil, false, err
		}
	}

	_, credited, err := s.ledger.Release(tx, loan.BookID)
	if err != nil {
		return nil, false, err
	}
	loan.ReturnRecord = record
	return record, credited, nil
}

// requireAdmin проверяет, что исполнитель - администратор
func (s *LoanService) requireAdmin(ctx context.Context, userID uint) error {
	actor, err := s.users.Lookup(ctx, userID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: требуется администратор", models.ErrNotEligible)
	}
	return nil
}

// publish отправляет событие после фиксации транзакции
func (s *LoanService) publish(ctx context.Context, loan *models.Loan, action models.LoanAction, from models.LoanState, performedBy *uint) {
	s.metrics.RecordTransition(string(loan.State))
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, newLoanEvent(loan, action, from, performedBy, s.now()))
}

// finish логирует операцию и учитывает отклоненные команды
func (s *LoanService) finish(operation string, startTime time.Time, err error) {
	utils.LogOperation(operation, startTime, err)
	if err != nil {
		s.metrics.RecordRejectedCommand(err)
	}
}
