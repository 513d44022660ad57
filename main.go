package main

import (
	"booklending/config"
	"booklending/controllers"
	"booklending/database"
	"booklending/services"
	"booklending/utils"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// application собранные зависимости сервера
type application struct {
	api       http.Handler
	ops       http.Handler
	scheduler *services.ReconciliationScheduler
	notifier  *services.NotificationService
}

// newApplication связывает сервисы, контроллеры и фоновые задачи
func newApplication(cfg *config.Config, db *database.Database) (*application, error) {
	metrics := utils.GetMetrics()

	users := services.NewUserService(db.DB)
	emailService := services.NewEmailService(cfg)
	notifier := services.NewNotificationService(db.DB, emailService, 100)
	audit := services.NewAuditService(db.DB)

	bus := services.NewEventBus()
	bus.Subscribe("audit", audit.HandleLoanEvent)
	bus.Subscribe("notification", notifier.HandleLoanEvent)

	loans := services.NewLoanService(db.DB, users, bus,
		services.WithLoanDays(cfg.Loan.DurationDays),
		services.WithMetrics(metrics),
	)
	catalog := services.NewCatalogService(db.DB, loans.Ledger())
	sweep := services.NewReconciliationService(loans)
	reports, err := services.NewReportService(db.DB, db.Driver)
	if err != nil {
		return nil, err
	}

	api := controllers.NewAPIRouter(controllers.API{
		Loans:          controllers.NewLoanController(loans, audit, users),
		Reports:        controllers.NewReportController(reports, users),
		Books:          controllers.NewBookController(catalog, users),
		Reconciliation: controllers.NewReconciliationController(sweep, users),
	}, []byte(cfg.JWT.SecretKey), metrics, utils.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window))

	ops := controllers.NewOpsRouter(db, metrics, utils.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window))

	return &application{
		api:       api,
		ops:       ops,
		scheduler: services.NewReconciliationScheduler(sweep, cfg.Sweep.Interval, cfg.Sweep.RunOnStart),
		notifier:  notifier,
	}, nil
}

// seed создает администратора и примеры книг, если это включено в конфигурации
func seed(ctx context.Context, cfg *config.Config, db *database.Database) error {
	if cfg.Seed.AdminEmail != "" {
		users := services.NewUserService(db.DB)
		if _, err := users.SeedAdmin(ctx, cfg.Seed.AdminName, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword); err != nil {
			return fmt.Errorf("ошибка создания администратора: %w", err)
		}
	}
	if cfg.Seed.SampleBooks {
		catalog := services.NewCatalogService(db.DB, services.NewBookLedger())
		added, err := catalog.SeedSampleBooks(ctx)
		if err != nil {
			return fmt.Errorf("ошибка заполнения каталога: %w", err)
		}
		if added > 0 {
			utils.LogInfo("Каталог заполнен примерами: %d книг", added)
		}
	}
	return nil
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Log.Dir != "" {
		if err := utils.InitFileLogging(cfg.Log.Dir); err != nil {
			log.Fatalf("Ошибка настройки логов: %v", err)
		}
		defer utils.CloseLogFiles()
	}

	// Инициализируем подключение к базе данных
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seed(ctx, cfg, db); err != nil {
		log.Fatalf("Ошибка начального заполнения: %v", err)
	}

	app, err := newApplication(cfg, db)
	if err != nil {
		log.Fatalf("Ошибка инициализации приложения: %v", err)
	}

	// Запускаем фоновые задачи
	app.notifier.Start(ctx)
	if err := app.scheduler.Start(ctx); err != nil {
		log.Fatalf("Ошибка запуска планировщика сверки: %v", err)
	}
	utils.LogInfo("Планировщик сверки запущен, интервал %v", cfg.Sweep.Interval)

	apiServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: app.api}
	opsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.OpsPort), Handler: app.ops}

	serverErr := make(chan error, 2)
	for _, srv := range []*http.Server{apiServer, opsServer} {
		go func(srv *http.Server) {
			utils.LogInfo("Сервер запущен на %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}(srv)
	}

	select {
	case <-ctx.Done():
		utils.LogInfo("Получен сигнал остановки")
	case err := <-serverErr:
		utils.LogError("Ошибка сервера: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{apiServer, opsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ошибка остановки сервера %s: %v", srv.Addr, err)
		}
	}

	stop()
	app.scheduler.Stop()
	app.notifier.Wait()
	utils.LogInfo("Сервер остановлен")
}
