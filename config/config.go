package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port    int `validate:"required,gt=0"`
		OpsPort int `validate:"required,gt=0"` // Порт служебного сервера (health, metrics)
	}
	DB struct {
		Driver       string `validate:"required,oneof=postgres sqlite"`
		Host         string
		Port         int
		User         string
		Password     string
		DBName       string
		SSLMode      string
		Path         string // Файл базы для драйвера sqlite
		MaxOpenConns int    `validate:"gte=0"`
		MaxIdleConns int    `validate:"gte=0"`
		LogSQL       bool
	}
	JWT struct {
		SecretKey string `validate:"required"`
	}
	SMTP struct {
		Enabled  bool
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Loan struct {
		DurationDays int `validate:"required,gt=0"` // Срок займа в днях
	}
	Sweep struct {
		Interval   time.Duration `validate:"required,gt=0"`
		RunOnStart bool
	}
	RateLimit struct {
		Requests int           `validate:"required,gt=0"`
		Window   time.Duration `validate:"required,gt=0"`
	}
	Log struct {
		Dir string // Пусто - писать в stdout/stderr
	}
	Seed struct {
		AdminName     string
		AdminEmail    string
		AdminPassword string
		SampleBooks   bool
	}
}

// defaults значения по умолчанию; ключи совпадают с переменными окружения
var defaults = map[string]any{
	"SERVER_PORT":         8080,
	"OPS_PORT":            8081,
	"DB_DRIVER":           "postgres",
	"DB_HOST":             "localhost",
	"DB_PORT":             5432,
	"DB_USER":             "postgres",
	"DB_PASSWORD":         "postgres",
	"DB_NAME":             "library_db",
	"DB_SSLMODE":          "disable",
	"DB_PATH":             "library.db",
	"DB_MAX_OPEN_CONNS":   100,
	"DB_MAX_IDLE_CONNS":   10,
	"DB_LOG_SQL":          false,
	"JWT_SECRET_KEY":      "your-secret-key-here",
	"SMTP_ENABLED":        false,
	"SMTP_HOST":           "smtp.gmail.com",
	"SMTP_PORT":           587,
	"SMTP_USERNAME":       "",
	"SMTP_PASSWORD":       "",
	"SMTP_FROM":           "library@example.com",
	"LOAN_DURATION_DAYS":  7,
	"SWEEP_INTERVAL":      time.Minute,
	"SWEEP_RUN_ON_START":  true,
	"RATE_LIMIT_REQUESTS": 100,
	"RATE_LIMIT_WINDOW":   time.Minute,
	"LOG_DIR":             "",
	"SEED_ADMIN_NAME":     "Administrator",
	"SEED_ADMIN_EMAIL":    "",
	"SEED_ADMIN_PASSWORD": "",
	"SEED_SAMPLE_BOOKS":   false,
}

// NewConfig создает конфигурацию из переменных окружения и необязательного файла config.yaml
func NewConfig() (*Config, error) {
	return Load(viper.New())
}

// Load читает конфигурацию из переданного экземпляра viper
func Load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
	}

	cfg := &Config{}

	// Настройки сервера
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.OpsPort = v.GetInt("OPS_PORT")

	// Настройки базы данных
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.DBName = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.Path = v.GetString("DB_PATH")
	cfg.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	cfg.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	cfg.DB.LogSQL = v.GetBool("DB_LOG_SQL")

	// Настройки JWT
	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")

	// Настройки SMTP
	cfg.SMTP.Enabled = v.GetBool("SMTP_ENABLED")
	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")

	// Займы и сверка
	cfg.Loan.DurationDays = v.GetInt("LOAN_DURATION_DAYS")
	cfg.Sweep.Interval = v.GetDuration("SWEEP_INTERVAL")
	cfg.Sweep.RunOnStart = v.GetBool("SWEEP_RUN_ON_START")

	cfg.RateLimit.Requests = v.GetInt("RATE_LIMIT_REQUESTS")
	cfg.RateLimit.Window = v.GetDuration("RATE_LIMIT_WINDOW")

	cfg.Log.Dir = v.GetString("LOG_DIR")

	cfg.Seed.AdminName = v.GetString("SEED_ADMIN_NAME")
	cfg.Seed.AdminEmail = v.GetString("SEED_ADMIN_EMAIL")
	cfg.Seed.AdminPassword = v.GetString("SEED_ADMIN_PASSWORD")
	cfg.Seed.SampleBooks = v.GetBool("SEED_SAMPLE_BOOKS")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("неверная конфигурация: %w", err)
	}

	return cfg, nil
}
