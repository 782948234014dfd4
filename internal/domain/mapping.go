package domain

import (
	"maps"
	"slices"
)

// ColumnMapping — соответствие колонок файла колонкам таблицы (file → table).
//
// Ключи уникальны по построению. Пустое значение означает
// "колонка выбрана, но цель ещё не указана".
type ColumnMapping map[string]string

// Clone возвращает копию mapping. Nil превращается в пустой mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	if m == nil {
		return ColumnMapping{}
	}
	return maps.Clone(m)
}

// Targets возвращает непустые колонки таблицы, отсортированные по имени.
func (m ColumnMapping) Targets() []string {
	out := make([]string, 0, len(m))
	for _, target := range m {
		if target != "" {
			out = append(out, target)
		}
	}
	slices.Sort(out)
	return out
}

// Keys возвращает колонки файла, отсортированные по имени.
func (m ColumnMapping) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// WithoutEmpty возвращает копию без пар с пустой целью.
func (m ColumnMapping) WithoutEmpty() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for file, target := range m {
		if target != "" {
			out[file] = target
		}
	}
	return out
}
