package controllers

import (
	"booklending/services"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// RequestLoanDTO тело заявки на займ
type RequestLoanDTO struct {
	BookID uint `json:"book_id" validate:"required,gt=0"`
}

// RequestReturnDTO выбранная дата возврата
type RequestReturnDTO struct {
	ReturnDate string `json:"return_date" validate:"required,datetime=2006-01-02"`
}

// LoanController обрабатывает запросы жизненного цикла займов
type LoanController struct {
	loans     *services.LoanService
	audit     *services.AuditService
	users     services.UserLookup
	validator *validator.Validate
}

// NewLoanController создает новый экземпляр LoanController
func NewLoanController(loans *services.LoanService, audit *services.AuditService, users services.UserLookup) *LoanController {
	return &LoanController{
		loans:     loans,
		audit:     audit,
		users:     users,
		validator: validator.New(),
	}
}

// RequestLoan обрабатывает заявку пользователя на книгу
func (c *LoanController) RequestLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var dto RequestLoanDTO
	if !decodeBody(w, r, c.validator, &dto) {
		return
	}

	loan, err := c.loans.RequestLoan(r.Context(), userID, dto.BookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// ApproveLoan обрабатывает одобрение заявки администратором
func (c *LoanController) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loans.ApproveLoan(r.Context(), userID, loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// RejectLoan обрабатывает отклонение заявки администратором
func (c *LoanController) RejectLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loans.RejectLoan(r.Context(), userID, loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// CancelLoan обрабатывает отмену заявки владельцем
func (c *LoanController) CancelLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	loan, err := c.loans.CancelLoan(r.Context(), userID, loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// RequestReturn обрабатывает выбор даты возврата
func (c *LoanController) RequestReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var dto RequestReturnDTO
	if !decodeBody(w, r, c.validator, &dto) {
		return
	}
	// Дата без времени трактуется в часовом поясе сервиса
	returnDate, err := time.ParseInLocation(time.DateOnly, dto.ReturnDate, c.loans.Now().Location())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid return_date"})
		return
	}

	loan, err := c.loans.RequestReturn(r.Context(), userID, loanID, returnDate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// ApproveReturn обрабатывает подтверждение возврата администратором
func (c *LoanController) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	record, err := c.loans.ApproveReturn(r.Context(), userID, loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// AuditTrail возвращает журнал событий займа (только администратор)
func (c *LoanController) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := c.loans.GetLoan(r.Context(), loanID); err != nil {
		writeError(w, err)
		return
	}
	trail, err := c.audit.LoanTrail(r.Context(), loanID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}
