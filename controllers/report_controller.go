package controllers

import (
	"booklending/models"
	"booklending/services"
	"fmt"
	"net/http"
)

// ReportController обрабатывает отчеты по займам
type ReportController struct {
	reports *services.ReportService
	users   services.UserLookup
}

// NewReportController создает новый экземпляр ReportController
func NewReportController(reports *services.ReportService, users services.UserLookup) *ReportController {
	return &ReportController{
		reports: reports,
		users:   users,
	}
}

// ListLoans возвращает все займы, необязательно с фильтром ?state=
func (c *ReportController) ListLoans(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}

	filter := services.LoanFilter{State: models.LoanState(r.URL.Query().Get("state"))}
	loans, err := c.reports.AllLoans(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

// MyHistory возвращает историю займов текущего пользователя
func (c *ReportController) MyHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	history, err := c.reports.UserHistory(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// UserHistory возвращает историю займов пользователя: администратору или самому пользователю
func (c *ReportController) UserHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if targetID != userID {
		actor, err := c.users.Lookup(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !actor.IsAdmin() {
			writeError(w, fmt.Errorf("%w: история другого пользователя", models.ErrNotEligible))
			return
		}
	}
	if _, err := c.users.Lookup(r.Context(), targetID); err != nil {
		writeError(w, err)
		return
	}

	history, err := c.reports.UserHistory(r.Context(), targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// ReturnedHistory возвращает завершенные возвраты
func (c *ReportController) ReturnedHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}

	history, err := c.reports.ReturnedHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Dashboard возвращает сводку по каталогу и займам
func (c *ReportController) Dashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}

	dashboard, err := c.reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
