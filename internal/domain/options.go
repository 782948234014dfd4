package domain

// IfExists — поведение backend, если таблица уже существует.
type IfExists string

const (
	// IfExistsFail — ошибка, если таблица существует.
	IfExistsFail IfExists = "fail"

	// IfExistsReplace — удалить и пересоздать таблицу.
	IfExistsReplace IfExists = "replace"

	// IfExistsAppend — добавить строки в существующую таблицу.
	IfExistsAppend IfExists = "append"
)

// DefaultBatchSize — размер батча вставки по умолчанию.
const DefaultBatchSize = 1000

// IsValid проверяет, что значение входит в допустимый набор.
func (v IfExists) IsValid() bool {
	switch v {
	case IfExistsFail, IfExistsReplace, IfExistsAppend:
		return true
	default:
		return false
	}
}

// ImportOptions — параметры import, передаваемые backend.
type ImportOptions struct {
	IfExists  IfExists `json:"if_exists"`
	BatchSize int      `json:"batch_size"`
}

// DefaultImportOptions возвращает {append, 1000}.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		IfExists:  IfExistsAppend,
		BatchSize: DefaultBatchSize,
	}
}
