package domain

// ImportState — статус import job на стороне backend.
//
// Жизненный цикл:
//
//	pending → processing → completed
//	                     ↘ failed
//	        (или) → cancelled (из pending или processing)
type ImportState string

const (
	// ImportStatePending — import создан, но backend ещё не начал вставку.
	ImportStatePending ImportState = "pending"

	// ImportStateProcessing — backend вставляет строки батчами.
	ImportStateProcessing ImportState = "processing"

	// ImportStateCompleted — import успешно завершён.
	ImportStateCompleted ImportState = "completed"

	// ImportStateFailed — import завершился с ошибкой.
	ImportStateFailed ImportState = "failed"

	// ImportStateCancelled — import отменён пользователем.
	ImportStateCancelled ImportState = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (import завершён).
func (s ImportState) IsTerminal() bool {
	switch s {
	case ImportStateCompleted, ImportStateFailed, ImportStateCancelled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление ImportState.
func (s ImportState) String() string {
	return string(s)
}

// ParseImportState парсит строку из ответа backend.
// Неизвестные значения считаются pending: import ещё не завершён.
func ParseImportState(s string) ImportState {
	switch s {
	case "processing":
		return ImportStateProcessing
	case "completed":
		return ImportStateCompleted
	case "failed":
		return ImportStateFailed
	case "cancelled":
		return ImportStateCancelled
	default:
		return ImportStatePending
	}
}
