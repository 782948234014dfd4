package wizard

import (
	"context"

	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/mapping"
)

// enter выполняет эффект входа на текущий шаг.
//
// Эффекты привязаны к ключу выбора: список таблиц загружается один раз
// на подключение, auto-mapping выполняется один раз на таблицу.
// Повторный вход с тем же ключом ничего не делает.
func (s *Session) enter(ctx context.Context, gen uint64) error {
	s.mu.Lock()

	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return nil
	}

	switch s.step {
	case domain.StepSelectTable:
		if s.conn == nil || s.tablesFor == s.conn.ID {
			s.mu.Unlock()
			return nil
		}
		connID := s.conn.ID
		s.mu.Unlock()
		_, err := s.loadTables(ctx, gen, connID)
		return err

	case domain.StepMapColumns:
		s.autoMapLocked()
	}

	s.mu.Unlock()
	return nil
}

// loadTables запрашивает список таблиц и сохраняет его, если сессия
// не сброшена и подключение не сменилось.
func (s *Session) loadTables(ctx context.Context, gen uint64, connID string) ([]string, error) {
	tables, err := s.backend.ListTables(ctx, connID)
	if err != nil {
		s.logger.Warn("failed to fetch tables", "connection_id", connID, "error", err)
		return nil, s.fail(gen, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.conn == nil || s.conn.ID != connID {
		return append([]string(nil), tables...), nil
	}

	s.tables = append([]string(nil), tables...)
	s.tablesFor = connID
	s.logger.Debug("tables loaded", "connection_id", connID, "count", len(tables))

	return append([]string(nil), tables...), nil
}

// autoMapLocked строит начальный mapping для выбранной таблицы.
// Пользовательские правки для той же таблицы не перезаписываются.
// Вызывается под s.mu.
func (s *Session) autoMapLocked() {
	if s.schema == nil || s.file == nil || s.mappedFor == s.table {
		return
	}

	s.mapping = mapping.AutoMap(s.file.Columns(), s.schema)
	s.mappedFor = s.table

	s.logger.Debug("auto-mapped columns",
		"table", s.table,
		"mapped", len(s.mapping),
		"file_columns", len(s.file.Columns()),
	)
}
