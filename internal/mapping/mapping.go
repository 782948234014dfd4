// Package mapping вычисляет начальное соответствие колонок файла и таблицы.
package mapping

import (
	"strings"

	"github.com/shaiso/Importer/internal/domain"
)

// AutoMap строит mapping по совпадению имён без учёта регистра.
//
// Для каждой колонки файла берётся первая колонка схемы, имя которой
// совпадает после приведения к нижнему регистру. Частичных совпадений нет.
// Колонки без пары в результат не попадают.
func AutoMap(fileColumns []string, schema *domain.TableSchema) domain.ColumnMapping {
	result := make(domain.ColumnMapping)
	if schema == nil {
		return result
	}

	// Индекс lower(name) → имя; первая колонка в порядке схемы выигрывает
	index := make(map[string]string, len(schema.Columns))
	for _, col := range schema.Columns {
		key := strings.ToLower(col.Name)
		if _, exists := index[key]; !exists {
			index[key] = col.Name
		}
	}

	for _, fileCol := range fileColumns {
		if tableCol, ok := index[strings.ToLower(fileCol)]; ok {
			result[fileCol] = tableCol
		}
	}

	return result
}

// Unmapped возвращает колонки файла без непустой цели, в порядке файла.
func Unmapped(fileColumns []string, m domain.ColumnMapping) []string {
	var out []string
	for _, col := range fileColumns {
		if m[col] == "" {
			out = append(out, col)
		}
	}
	return out
}
