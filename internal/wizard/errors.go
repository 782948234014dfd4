package wizard

import (
	"errors"
	"fmt"

	"github.com/shaiso/Importer/internal/domain"
)

// Ошибки мастера.
var (
	// ErrPrecondition — не выполнено условие входа на шаг
	// (нет нужного артефакта или он неверного типа).
	ErrPrecondition = errors.New("precondition failed")

	// ErrWrongStep — операция недоступна на текущем шаге.
	ErrWrongStep = errors.New("operation not allowed at current step")

	// ErrImportInFlight — import уже запускается или выполняется.
	ErrImportInFlight = errors.New("import already in progress")

	// ErrSessionClosed — сессия закрыта.
	ErrSessionClosed = errors.New("session closed")

	// ErrNoBackend — в Config не задан Backend.
	ErrNoBackend = errors.New("backend is required")
)

// StateError — операция отклонена машиной состояний. Состояние
// сессии при этом не меняется.
type StateError struct {
	Op     string      // операция ("advance", "start import", ...)
	Step   domain.Step // шаг, на котором была сессия
	Reason string      // уточнение, может быть пустым
	Err    error       // одна из sentinel-ошибок
}

// Error реализует интерфейс error.
func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s at %q: %v: %s", e.Op, e.Step, e.Err, e.Reason)
	}
	return fmt.Sprintf("%s at %q: %v", e.Op, e.Step, e.Err)
}

// Unwrap возвращает sentinel-ошибку.
func (e *StateError) Unwrap() error {
	return e.Err
}

func stateError(op string, step domain.Step, err error, reason string) *StateError {
	return &StateError{Op: op, Step: step, Reason: reason, Err: err}
}
