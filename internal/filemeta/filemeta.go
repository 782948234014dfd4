// Package filemeta читает метаданные локального файла до загрузки:
// размер, MIME тип, заголовок и несколько первых строк.
//
// CSV читается через encoding/csv, XLSX — через excelize (первый лист).
// Старый формат XLS локально не разбирается: для него известны только
// размер и MIME тип.
package filemeta

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/validation"
)

// DefaultPreviewRows — сколько строк данных читается для превью.
const DefaultPreviewRows = 5

// MIME типы по расширению — те, что отправляет браузер при загрузке.
var mimeByExtension = map[string]string{
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ErrNoSheets — в книге XLSX нет листов.
var ErrNoSheets = errors.New("workbook has no sheets")

// Info — метаданные файла.
type Info struct {
	Path      string
	Name      string
	Extension string
	Size      int64

	// MIMEType — тип по расширению; пустой для неизвестного расширения.
	MIMEType string

	// Detected — тип по содержимому.
	Detected string

	// Columns и Preview заполняются для CSV и XLSX.
	Columns  []string
	Preview  []domain.Row
	RowCount int

	// Parsed — удалось ли прочитать заголовок локально.
	Parsed bool
}

// HumanSize возвращает размер в читаемом виде ("1.5 MB").
func (i *Info) HumanSize() string {
	return datasize.ByteSize(i.Size).HumanReadable()
}

// FileInfo возвращает данные для validation.File.
func (i *Info) FileInfo() validation.FileInfo {
	return validation.FileInfo{Name: i.Name, Size: i.Size, MIMEType: i.MIMEType}
}

// Inspect читает метаданные файла path. previewRows<=0 — значение по умолчанию.
func Inspect(path string, previewRows int) (*Info, error) {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	ext := validation.Extension(name)
	info := &Info{
		Path:      path,
		Name:      name,
		Extension: ext,
		Size:      st.Size(),
		MIMEType:  mimeByExtension[ext],
	}

	if m, err := mimetype.DetectFile(path); err == nil {
		info.Detected = m.String()
	}

	switch ext {
	case ".csv":
		err = inspectCSV(info, previewRows)
	case ".xlsx":
		err = inspectXLSX(info, previewRows)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return info, nil
}

func inspectCSV(info *Info, previewRows int) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		info.Parsed = true
		return nil
	}
	if err != nil {
		return err
	}
	info.Columns = header

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		info.addRow(rec, previewRows)
	}

	info.Parsed = true
	return nil
}

func inspectXLSX(info *Info, previewRows int) error {
	f, err := excelize.OpenFile(info.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ErrNoSheets
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return err
	}
	defer rows.Close()

	first := true
	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return err
		}
		if first {
			info.Columns = row
			first = false
			continue
		}
		info.addRow(row, previewRows)
	}
	if err := rows.Error(); err != nil {
		return err
	}

	info.Parsed = true
	return nil
}

// addRow учитывает строку данных и добавляет её в превью, пока есть место.
func (i *Info) addRow(rec []string, previewRows int) {
	i.RowCount++
	if len(i.Preview) >= previewRows {
		return
	}

	row := make(domain.Row, len(i.Columns))
	for idx, col := range i.Columns {
		if idx < len(rec) {
			row[col] = rec[idx]
		} else {
			row[col] = ""
		}
	}
	i.Preview = append(i.Preview, row)
}
