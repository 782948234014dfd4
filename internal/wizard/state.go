package wizard

import (
	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/mapping"
)

// TableSelection — артефакт шага SelectTable.
type TableSelection struct {
	Name   string
	Schema *domain.TableSchema
}

// State — копия состояния сессии для презентационного слоя.
// Изменение State не влияет на сессию.
type State struct {
	SessionID string
	Step      domain.Step

	Connection *domain.Connection
	File       *domain.UploadedFile
	Tables     []string
	Table      string
	Schema     *domain.TableSchema
	Mapping    domain.ColumnMapping
	Options    domain.ImportOptions
	Import     *domain.ImportStatus

	// UploadProgress — процент отправки файла (0..100).
	UploadProgress int

	// Error — сообщение последней ошибки backend, пустое если её нет.
	Error string

	Closed bool
}

// Unmapped возвращает колонки файла без колонки таблицы.
func (s State) Unmapped() []string {
	if s.File == nil {
		return nil
	}
	return mapping.Unmapped(s.File.Columns(), s.Mapping)
}

// ImportRunning возвращает true, если import запущен и не завершён.
func (s State) ImportRunning() bool {
	return s.Import != nil && !s.Import.IsFinished()
}
