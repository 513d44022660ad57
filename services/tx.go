package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// withTx выполняет fn в одной транзакции: ошибка или паника откатывают все изменения
func withTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	// Начинаем транзакцию
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("ошибка при подтверждении транзакции: %w", err)
	}
	return nil
}

// forUpdate блокирует читаемые строки до конца транзакции (postgres); sqlite игнорирует предложение,
// там запись сериализует BEGIN IMMEDIATE
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
