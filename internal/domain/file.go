package domain

import "maps"

// Row — одна строка превью файла (column → value).
type Row map[string]any

// UploadedFile — файл, загруженный и распарсенный backend.
//
// Создаётся после успешного upload и дальше не меняется:
// аксессоры возвращают копии.
type UploadedFile struct {
	// ID — идентификатор файла на backend (file_id).
	ID string `json:"id"`

	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MIMEType string `json:"type"`

	// RowCount — количество строк данных (без заголовка).
	RowCount int `json:"rows"`

	columns []string
	preview []Row
}

// NewUploadedFile создаёт UploadedFile, копируя columns и preview.
func NewUploadedFile(id, name string, size int64, mimeType string, rows int, columns []string, preview []Row) *UploadedFile {
	f := &UploadedFile{
		ID:       id,
		Name:     name,
		Size:     size,
		MIMEType: mimeType,
		RowCount: rows,
		columns:  append([]string(nil), columns...),
		preview:  make([]Row, len(preview)),
	}
	for i, row := range preview {
		f.preview[i] = maps.Clone(row)
	}
	return f
}

// Columns возвращает колонки файла в исходном порядке.
func (f *UploadedFile) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Preview возвращает копию строк превью.
func (f *UploadedFile) Preview() []Row {
	out := make([]Row, len(f.preview))
	for i, row := range f.preview {
		out[i] = maps.Clone(row)
	}
	return out
}
