package services

import (
	"errors"
)

// Сентинельные ошибки сервисного слоя. Контроллеры сопоставляют их
// с HTTP-статусами через errors.Is.
var (
	ErrNotFound  = errors.New("запись не найдена")
	ErrForbidden = errors.New("Access denied")
	ErrConflict  = errors.New("конфликт состояния")
	ErrInternal  = errors.New("внутренняя ошибка")
)
