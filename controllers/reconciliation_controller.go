package controllers

import (
	"booklending/services"
	"net/http"
)

// ReconciliationController запускает сверку вручную
type ReconciliationController struct {
	sweep *services.ReconciliationService
	users services.UserLookup
}

// NewReconciliationController создает новый экземпляр ReconciliationController
func NewReconciliationController(sweep *services.ReconciliationService, users services.UserLookup) *ReconciliationController {
	return &ReconciliationController{
		sweep: sweep,
		users: users,
	}
}

// RunSweep выполняет проход сверки и возвращает его итог
func (c *ReconciliationController) RunSweep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r, c.users); !ok {
		return
	}

	result, err := c.sweep.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
