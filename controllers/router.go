package controllers

import (
	"booklending/middleware"
	"booklending/utils"

	"github.com/gorilla/mux"
)

// API контроллеры, обслуживающие маршруты /api
type API struct {
	Loans          *LoanController
	Reports        *ReportController
	Books          *BookController
	Reconciliation *ReconciliationController
}

// NewAPIRouter создает роутер API. Все маршруты требуют JWT с user_id.
func NewAPIRouter(api API, jwtKey []byte, metrics *utils.Metrics, limiter *utils.RateLimiter) *mux.Router {
	router := mux.NewRouter()

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.LoggingMiddleware(metrics))
	protected.Use(middleware.RateLimitMiddleware(limiter))
	protected.Use(middleware.AuthMiddleware(jwtKey))

	// Займы
	protected.HandleFunc("/loans", api.Loans.RequestLoan).Methods("POST")
	protected.HandleFunc("/loans", api.Reports.ListLoans).Methods("GET")
	protected.HandleFunc("/loans/history/me", api.Reports.MyHistory).Methods("GET")
	protected.HandleFunc("/loans/{id}/approve", api.Loans.ApproveLoan).Methods("POST")
	protected.HandleFunc("/loans/{id}/reject", api.Loans.RejectLoan).Methods("POST")
	protected.HandleFunc("/loans/{id}/cancel", api.Loans.CancelLoan).Methods("POST")
	protected.HandleFunc("/loans/{id}/return-request", api.Loans.RequestReturn).Methods("POST")
	protected.HandleFunc("/loans/{id}/return-approve", api.Loans.ApproveReturn).Methods("POST")
	protected.HandleFunc("/loans/{id}/audit", api.Loans.AuditTrail).Methods("GET")

	// Отчеты
	protected.HandleFunc("/users/{id}/history", api.Reports.UserHistory).Methods("GET")
	protected.HandleFunc("/returns", api.Reports.ReturnedHistory).Methods("GET")
	protected.HandleFunc("/dashboard", api.Reports.Dashboard).Methods("GET")

	// Каталог
	protected.HandleFunc("/books", api.Books.AddBook).Methods("POST")
	protected.HandleFunc("/books/{id}", api.Books.GetBook).Methods("GET")
	protected.HandleFunc("/books/{id}/stock", api.Books.ResizeStock).Methods("PUT")

	// Сверка
	protected.HandleFunc("/admin/sweep", api.Reconciliation.RunSweep).Methods("POST")

	return router
}
