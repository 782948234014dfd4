package domain

// TableColumn — колонка таблицы назначения в том виде, в каком её отдаёт backend.
type TableColumn struct {
	Name string `json:"name"`

	// Type — тип колонки (строковый тег backend, например "INTEGER").
	Type string `json:"type"`

	Nullable bool `json:"nullable"`
}

// TableSchema — схема выбранной таблицы. Заменяется при выборе другой таблицы.
type TableSchema struct {
	Table   string        `json:"table"`
	Columns []TableColumn `json:"columns"`
}

// Names возвращает имена колонок в порядке схемы.
func (s *TableSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone возвращает глубокую копию схемы.
func (s *TableSchema) Clone() *TableSchema {
	if s == nil {
		return nil
	}
	return &TableSchema{
		Table:   s.Table,
		Columns: append([]TableColumn(nil), s.Columns...),
	}
}
