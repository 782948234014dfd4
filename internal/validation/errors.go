package validation

import (
	"maps"
	"slices"
	"strings"
)

// ValidationError — локальная ошибка проверки данных перед отправкой на backend.
//
// Для проверки подключения заполняется Fields (все невалидные поля сразу),
// для файла и mapping — Field и Message (первое найденное нарушение).
type ValidationError struct {
	Field   string            // поле, вызвавшее ошибку ("file", "mapping", ...)
	Message string            // описание ошибки
	Fields  map[string]string // поле → сообщение (агрегированная проверка)
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return strings.Join(parts, "; ")
}

// FieldError возвращает сообщение для поля и флаг наличия.
func (e *ValidationError) FieldError(field string) (string, bool) {
	msg, ok := e.Fields[field]
	return msg, ok
}

// newFieldError создаёт ошибку с одним сообщением.
func newFieldError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
