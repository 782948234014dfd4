package validation

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/c2h5oh/datasize"
)

// MaxFileSize — максимальный размер загружаемого файла.
const MaxFileSize = 100 * datasize.MB

// AllowedExtensions — допустимые расширения (в нижнем регистре).
var AllowedExtensions = []string{".csv", ".xls", ".xlsx"}

// AllowedMIMETypes — распознаваемые MIME типы табличных файлов.
var AllowedMIMETypes = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// FileInfo — метаданные файла, доступные до загрузки.
type FileInfo struct {
	Name     string
	Size     int64
	MIMEType string // может быть пустым
}

// File проверяет метаданные файла перед загрузкой.
//
// Порядок: размер → расширение → MIME. Возвращается первая найденная ошибка.
// Пустой MIME тип допустим: его сообщают не все источники.
func File(info FileInfo) error {
	if info.Size > int64(MaxFileSize.Bytes()) {
		return newFieldError("file", fmt.Sprintf(
			"File size exceeds maximum allowed size of %dMB", int(MaxFileSize.MBytes()),
		))
	}

	if !slices.Contains(AllowedExtensions, Extension(info.Name)) {
		return newFieldError("file", "File type not allowed. Allowed types: "+strings.Join(AllowedExtensions, ", "))
	}

	if info.MIMEType != "" && !slices.Contains(AllowedMIMETypes, info.MIMEType) {
		return newFieldError("file", "Invalid file MIME type")
	}

	return nil
}

// Extension возвращает расширение по последнему сегменту после точки,
// в нижнем регистре и с точкой. Для имени без точки — пустая строка.
func Extension(name string) string {
	return strings.ToLower(path.Ext(name))
}
