package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Role роль пользователя
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null;size:100" json:"name"`
	Email     string    `gorm:"column:email;unique;not null;size:100;index" json:"email"`
	Password  string    `gorm:"column:password;not null;size:100" json:"-"`
	Role      Role      `gorm:"column:role;type:varchar(20);not null;default:'user'" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate хук для валидации перед созданием
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if len(u.Name) < 2 || len(u.Name) > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	if len(u.Email) < 3 || len(u.Email) > 100 {
		return errors.New("email must be between 3 and 100 characters")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Role != RoleAdmin && u.Role != RoleUser {
		return errors.New("unknown role")
	}
	return nil
}
