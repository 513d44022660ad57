package services

import (
	"booklending/models"
	"booklending/utils"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Actor личность, от имени которой выполняется операция
type Actor struct {
	ID   uint
	Role models.Role
}

// IsAdmin сообщает, является ли исполнитель администратором
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// UserLookup разрешает пользователя в исполнителя
type UserLookup interface {
	Lookup(ctx context.Context, userID uint) (Actor, error)
}

// CreateUserRequest данные для создания пользователя
type CreateUserRequest struct {
	Name     string      `json:"name" validate:"required,min=2,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=admin user"`
}

// UserService предоставляет методы для работы с пользователями
type UserService struct {
	db        *gorm.DB
	validator *validator.Validate
}

// NewUserService создает новый экземпляр UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		db:        db,
		validator: validator.New(),
	}
}

// CreateUser создает нового пользователя с bcrypt-хешем пароля
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	// Проверяем, существует ли пользователь с таким email
	if _, err := s.FindByEmail(ctx, req.Email); err == nil {
		return nil, errors.New("user with this email already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// Хешируем пароль
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     req.Name,
		Email:    strings.TrimSpace(req.Email),
		Password: hashedPassword,
		Role:     req.Role,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	return user, nil
}

// Lookup возвращает исполнителя по ID пользователя
func (s *UserService) Lookup(ctx context.Context, userID uint) (Actor, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: user.ID, Role: user.Role}, nil
}

// FindByID ищет пользователя по ID
func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: пользователь %d", models.ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail ищет пользователя по email (игнорируя регистр и пробелы)
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(TRIM(email)) = LOWER(TRIM(?))", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s", models.ErrNotFound, email)
		}
		return nil, err
	}
	return &user, nil
}

// SeedAdmin создает администратора, если пользователя с таким email еще нет.
// Пустой пароль заменяется случайным, он пишется в лог один раз.
func (s *UserService) SeedAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	existing, err := s.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if password == "" {
		password, err = utils.GenerateSecureToken(12)
		if err != nil {
			return nil, err
		}
		utils.LogInfo("Создан администратор %s со сгенерированным паролем %s", email, password)
	}

	return s.CreateUser(ctx, CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
}
