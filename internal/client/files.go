package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/shaiso/Importer/internal/domain"
)

// DefaultPreviewRows — количество строк превью по умолчанию.
const DefaultPreviewRows = 10

// FileUpload — файл для загрузки.
type FileUpload struct {
	Name     string
	Size     int64
	MIMEType string
	Reader   io.Reader

	// OnProgress вызывается при изменении процента отправленных байт (0..100).
	OnProgress func(percent int)
}

// UploadFile загружает файл multipart-запросом и возвращает результат парсинга.
func (c *Client) UploadFile(ctx context.Context, f FileUpload) (*domain.UploadedFile, error) {
	reader := f.Reader
	if f.OnProgress != nil {
		f.OnProgress(0)
		reader = &progressReader{r: f.Reader, total: f.Size, fn: f.OnProgress, last: 0}
	}

	req := c.http.R().SetFileReader("file", f.Name, reader)

	var resp uploadResponse
	if _, err := c.do(ctx, OpUpload, req, http.MethodPost, "/api/import/upload", &resp); err != nil {
		return nil, err
	}

	if f.OnProgress != nil {
		f.OnProgress(100)
	}

	return domain.NewUploadedFile(resp.FileID, f.Name, f.Size, f.MIMEType, resp.Rows, resp.Columns, resp.Preview), nil
}

// ValidateFile запрашивает у backend отчёт о проверке файла.
func (c *Client) ValidateFile(ctx context.Context, fileID string) (map[string]any, error) {
	var report map[string]any
	if err := c.post(ctx, OpValidateFile, "/api/import/validate", validateFileRequest{FileID: fileID}, &report); err != nil {
		return nil, err
	}
	return report, nil
}

// Preview возвращает первые rows строк файла. rows<=0 — значение по умолчанию.
func (c *Client) Preview(ctx context.Context, fileID string, rows int) ([]domain.Row, error) {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}

	var raw json.RawMessage
	err := c.get(ctx, OpPreview, "/api/import/preview", map[string]string{
		"file_id": fileID,
		"rows":    strconv.Itoa(rows),
	}, &raw)
	if err != nil {
		return nil, err
	}

	return decodeRows(raw)
}

func decodeRows(raw json.RawMessage) ([]domain.Row, error) {
	if len(raw) == 0 {
		return []domain.Row{}, nil
	}

	if isJSONArray(raw) {
		var rows []domain.Row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, NewRequestError(OpPreview, 0, "", err)
		}
		return rows, nil
	}

	var env previewEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, NewRequestError(OpPreview, 0, "", err)
	}
	switch {
	case env.Preview != nil:
		return env.Preview, nil
	case env.Rows != nil:
		return env.Rows, nil
	case env.Data != nil:
		return env.Data, nil
	default:
		return []domain.Row{}, nil
	}
}

// progressReader считает прочитанные байты и сообщает процент.
type progressReader struct {
	r     io.Reader
	total int64
	fn    func(int)

	mu   sync.Mutex
	read int64
	last int
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.mu.Lock()
		p.read += int64(n)
		percent := int(p.read * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		changed := percent != p.last
		p.last = percent
		p.mu.Unlock()

		if changed {
			p.fn(percent)
		}
	}
	return n, err
}
