package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// SweepResult итог одного прохода сверки
type SweepResult struct {
	Finalized     int `json:"finalized"`
	MarkedOverdue int `json:"marked_overdue"`
	Failed        int `json:"failed"`
}

// ReconciliationService завершает возвраты, дата которых наступила, и отмечает просроченные займы
type ReconciliationService struct {
	loans *LoanService
	mu    sync.Mutex
}

// NewReconciliationService создает новый экземпляр ReconciliationService
func NewReconciliationService(loans *LoanService) *ReconciliationService {
	return &ReconciliationService{loans: loans}
}

// RunReconciliationSweep выполняет проход сверки и возвращает число завершенных возвратов
func (s *ReconciliationService) RunReconciliationSweep(ctx context.Context) (int, error) {
	result, err := s.Sweep(ctx)
	return result.Finalized, err
}

// Sweep выполняет проход сверки. Каждый займ обрабатывается в своей транзакции;
// ошибка по одному займу логируется и не останавливает проход.
func (s *ReconciliationService) Sweep(ctx context.Context) (SweepResult, error) {
	// Проходы не пересекаются
	s.mu.Lock()
	defer s.mu.Unlock()

	startTime := time.Now()
	var result SweepResult
	today := s.loans.today()
	db := s.loans.db.WithContext(ctx)

	due, err := s.loans.loans.DueForFinalization(db, today)
	if err != nil {
		return result, err
	}
	for _, loanID := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		finalized, err := s.finalize(ctx, loanID, today)
		switch {
		case err != nil:
			result.Failed++
			utils.LogError("Сверка: не удалось завершить возврат займа %d: %v", loanID, err)
			s.loans.metrics.RecordError(err)
		case finalized:
			result.Finalized++
		}
	}

	overdue, err := s.loans.loans.PastDue(db, today)
	if err != nil {
		return result, err
	}
	for _, loanID := range overdue {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		marked, err := s.markOverdue(ctx, loanID, today)
		switch {
		case err != nil:
			result.Failed++
			utils.LogError("Сверка: не удалось отметить просрочку займа %d: %v", loanID, err)
			s.loans.metrics.RecordError(err)
		case marked:
			result.MarkedOverdue++
		}
	}

	s.loans.metrics.RecordSweep(time.Since(startTime), result.Finalized, result.MarkedOverdue, result.Failed)
	utils.LogInfo("Сверка завершена: возвратов %d, просрочено %d, ошибок %d",
		result.Finalized, result.MarkedOverdue, result.Failed)
	return result, nil
}

// finalize завершает возврат одного займа; false, если займ уже изменился
func (s *ReconciliationService) finalize(ctx context.Context, loanID uint, today time.Time) (bool, error) {
	var (
		loan     *models.Loan
		credited bool
		skipped  bool
	)
	err := withTx(ctx, s.loans.db, func(tx *gorm.DB) error {
		var err error
		loan, err = s.loans.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}

		// Перечитываем под блокировкой: займ мог быть завершен администратором
		if loan.State != models.LoanStateReturnRequested || loan.SelectedReturnDate == nil ||
			models.DateOf(*loan.SelectedReturnDate).After(today) {
			skipped = true
			return nil
		}

		_, credited, err = s.loans.finalizeReturn(tx, loan, models.LoanActionFinalizeReturn, *loan.SelectedReturnDate)
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrWrongState) {
			return false, nil
		}
		return false, err
	}
	if skipped {
		return false, nil
	}

	if credited {
		s.loans.metrics.RecordStock(1)
	}
	s.loans.publish(ctx, loan, models.LoanActionFinalizeReturn, models.LoanStateReturnRequested, nil)
	return true, nil
}

// markOverdue отмечает выданный займ просроченным; остатки не меняются
func (s *ReconciliationService) markOverdue(ctx context.Context, loanID uint, today time.Time) (bool, error) {
	var (
		loan    *models.Loan
		skipped bool
	)
	err := withTx(ctx, s.loans.db, func(tx *gorm.DB) error {
		var err error
		loan, err = s.loans.loans.Lock(tx, loanID)
		if err != nil {
			return err
		}
		if loan.State != models.LoanStateActive || !models.DateOf(loan.DueDate).Before(today) {
			skipped = true
			return nil
		}

		to, err := models.NextState(loan.State, models.LoanActionMarkOverdue)
		if err != nil {
			return err
		}
		return s.loans.loans.Transition(tx, loan, to, nil)
	})
	if err != nil {
		if errors.Is(err, models.ErrWrongState) {
			return false, nil
		}
		return false, err
	}
	if skipped {
		return false, nil
	}

	s.loans.publish(ctx, loan, models.LoanActionMarkOverdue, models.LoanStateActive, nil)
	return true, nil
}

// ReconciliationScheduler периодически запускает сверку
type ReconciliationScheduler struct {
	service    *ReconciliationService
	interval   time.Duration
	runOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciliationScheduler создает новый экземпляр ReconciliationScheduler
func NewReconciliationScheduler(service *ReconciliationService, interval time.Duration, runOnStart bool) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		service:    service,
		interval:   interval,
		runOnStart: runOnStart,
	}
}

// Start запускает планировщик сверки. Останавливается по отмене ctx или вызову Stop.
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("интервал сверки должен быть положительным: %v", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("планировщик сверки уже запущен")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	return nil
}

func (s *ReconciliationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.runOnStart {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("Планировщик сверки остановлен")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *ReconciliationScheduler) run(ctx context.Context) {
	if _, err := s.service.Sweep(ctx); err != nil && ctx.Err() == nil {
		utils.LogError("Ошибка при выполнении сверки: %v", err)
	}
}

// Stop останавливает планировщик и ждет завершения текущего прохода
func (s *ReconciliationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
