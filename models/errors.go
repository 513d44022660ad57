package models

import "errors"

// Ошибки предметной области. Сервисы оборачивают их через fmt.Errorf("%w: ...")
// и сравнивают через errors.Is.
var (
	ErrNotEligible     = errors.New("операция недоступна для этой роли")
	ErrOutOfStock      = errors.New("нет доступных экземпляров книги")
	ErrDuplicateActive = errors.New("у пользователя уже есть открытый займ этой книги")
	ErrNotFound        = errors.New("запись не найдена")
	ErrWrongState      = errors.New("недопустимый переход состояния займа")
	ErrNotOwner        = errors.New("займ принадлежит другому пользователю")
	ErrInvalidDate     = errors.New("недопустимая дата")
	ErrInvalidStock    = errors.New("недопустимое количество экземпляров")
	ErrConflict        = errors.New("запись изменена параллельной операцией")
	ErrValidation      = errors.New("неверные входные данные")
)

// ErrInvalidTransition синоним ErrWrongState
var ErrInvalidTransition = ErrWrongState
