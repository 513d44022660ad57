package database

import (
	"booklending/config"
	"booklending/models"
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database представляет подключение к базе данных
type Database struct {
	DB     *gorm.DB
	Driver string
}

// Connect устанавливает соединение с базой данных и выполняет миграции
func Connect(cfg *config.Config) (*Database, error) {
	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	// Настраиваем логгер
	logLevel := logger.Warn
	if cfg.DB.LogSQL {
		logLevel = logger.Info
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	// Устанавливаем соединение
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Таблицы создаются моделями, индексы и представления - SQL миграциями поверх них
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автоматической миграции моделей: %w", err)
	}
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("ошибка выполнения SQL миграций: %w", err)
	}

	return &Database{DB: db, Driver: cfg.DB.Driver}, nil
}

// GetDB возвращает экземпляр GORM
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Ping проверяет доступность базы данных
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newDialector выбирает драйвер GORM по конфигурации
func newDialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DB.Driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.DB.Host,
			cfg.DB.Port,
			cfg.DB.User,
			cfg.DB.Password,
			cfg.DB.DBName,
			cfg.DB.SSLMode,
		)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		// _txlock=immediate: транзакция сразу берет блокировку записи, переходы займов выполняются по очереди
		return sqlite.Open("file:" + cfg.DB.Path + "?" + sqliteParams), nil
	default:
		return nil, fmt.Errorf("неизвестный драйвер базы данных: %s", cfg.DB.Driver)
	}
}

const sqliteParams = "_busy_timeout=10000&_txlock=immediate&_foreign_keys=on&_journal_mode=WAL"

// migrateURL формирует URL базы данных для golang-migrate
func migrateURL(cfg *config.Config) string {
	if cfg.DB.Driver == DriverSQLite {
		return "sqlite3://" + cfg.DB.Path + "?" + sqliteParams
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.DBName,
		cfg.DB.SSLMode,
	)
}

// runMigrations выполняет SQL миграции из встроенного каталога migrations
func runMigrations(cfg *config.Config) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций: %w", err)
	}

	// Создаем экземпляр миграции
	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %w", err)
	}
	defer m.Close()

	// Выполняем миграции
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	}

	return nil
}

// autoMigrate выполняет автоматическую миграцию моделей
func autoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Book{},
		&models.Loan{},
		&models.ReturnRecord{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %w", err)
	}

	return nil
}
