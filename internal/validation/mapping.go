package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shaiso/Importer/internal/domain"
)

// ColumnMapping проверяет mapping перед стартом import.
//
// В отличие от Connection, останавливается на первом нарушении:
//  1. mapping не пустой
//  2. каждая колонка файла существует
//  3. каждая непустая колонка таблицы существует
//
// Уникальность колонок таблицы здесь не проверяется, см. DuplicateTargets.
func ColumnMapping(mapping domain.ColumnMapping, fileColumns, tableColumns []string) error {
	if len(mapping) == 0 {
		return newFieldError("mapping", "At least one column mapping is required")
	}

	// Ключи сортируем, чтобы ошибка не зависела от порядка обхода map
	keys := mapping.Keys()

	for _, fileCol := range keys {
		if !slices.Contains(fileColumns, fileCol) {
			return newFieldError("mapping", fmt.Sprintf("File column %q does not exist", fileCol))
		}
	}

	for _, fileCol := range keys {
		tableCol := mapping[fileCol]
		if tableCol != "" && !slices.Contains(tableColumns, tableCol) {
			return newFieldError("mapping", fmt.Sprintf("Database column %q does not exist", tableCol))
		}
	}

	return nil
}

// DuplicateTargets возвращает колонки таблицы, на которые отображено
// больше одной колонки файла. Результат отсортирован.
func DuplicateTargets(mapping domain.ColumnMapping) []string {
	seen := make(map[string]int, len(mapping))
	for _, target := range mapping {
		if target != "" {
			seen[target]++
		}
	}

	var dups []string
	for target, n := range seen {
		if n > 1 {
			dups = append(dups, target)
		}
	}
	slices.Sort(dups)
	return dups
}

// ImportOptions проверяет параметры import.
func ImportOptions(opts domain.ImportOptions) error {
	if !opts.IfExists.IsValid() {
		return newFieldError("if_exists", fmt.Sprintf("Invalid if_exists value %q, expected fail, replace or append", opts.IfExists))
	}
	if opts.BatchSize <= 0 {
		return newFieldError("batch_size", "Batch size must be a positive integer")
	}
	return nil
}

// UniqueTargets проверяет, что каждая колонка таблицы используется
// не больше одного раза. Первая (по алфавиту) повторяющаяся колонка
// попадает в сообщение.
func UniqueTargets(mapping domain.ColumnMapping) error {
	if dups := DuplicateTargets(mapping); len(dups) > 0 {
		return newFieldError("mapping", fmt.Sprintf("Database column %q is mapped more than once", dups[0]))
	}
	return nil
}

// TableName проверяет, что таблица выбрана.
func TableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return newFieldError("table", "Please select a table")
	}
	return nil
}
