package client

import (
	"encoding/json"
	"time"

	"github.com/shaiso/Importer/internal/domain"
)

// --- Request types ---

// StartImportRequest — тело POST /api/import/start.
type StartImportRequest struct {
	FileID        string               `json:"file_id"`
	ConnectionID  string               `json:"connection_id"`
	TableName     string               `json:"table_name"`
	ColumnMapping domain.ColumnMapping `json:"column_mapping"`
	Options       domain.ImportOptions `json:"options"`
}

type validateFileRequest struct {
	FileID string `json:"file_id"`
}

// --- Response types ---

type testConnectionResponse struct {
	Success      bool   `json:"success"`
	ConnectionID string `json:"connection_id"`
	Message      string `json:"message"`
}

type tablesResponse struct {
	Tables []string `json:"tables"`
}

type schemaResponse struct {
	Columns []domain.TableColumn `json:"columns"`
}

type uploadResponse struct {
	FileID   string       `json:"file_id"`
	Filename string       `json:"filename"`
	Rows     int          `json:"rows"`
	Columns  []string     `json:"columns"`
	Preview  []domain.Row `json:"preview"`
}

// StartImportResponse — ответ POST /api/import/start.
type StartImportResponse struct {
	ImportID  string `json:"import_id"`
	TotalRows int    `json:"total_rows"`
}

type cancelResponse struct {
	Message string `json:"message"`
}

// statusResponse — статус import job.
//
// Backend исторически отдаёт total/processed/errors вместо
// total_rows/processed_rows/message — принимаем оба варианта.
type statusResponse struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Progress      float64  `json:"progress"`
	TotalRows     *int     `json:"total_rows"`
	Total         *int     `json:"total"`
	ProcessedRows *int     `json:"processed_rows"`
	Processed     *int     `json:"processed"`
	FailedRows    int      `json:"failed_rows"`
	Message       string   `json:"message"`
	Errors        []string `json:"errors"`
	StartedAt     string   `json:"started_at"`
	CompletedAt   string   `json:"completed_at"`
}

// toStatus преобразует ответ в domain.ImportStatus.
// importID используется, если backend не вернул id.
func (r *statusResponse) toStatus(importID string) *domain.ImportStatus {
	id := r.ID
	if id == "" {
		id = importID
	}

	st := &domain.ImportStatus{
		ID:            id,
		State:         domain.ParseImportState(r.Status),
		Progress:      clampProgress(r.Progress),
		TotalRows:     firstInt(r.TotalRows, r.Total),
		ProcessedRows: firstInt(r.ProcessedRows, r.Processed),
		FailedRows:    r.FailedRows,
		Message:       r.Message,
	}

	if st.Message == "" && len(r.Errors) > 0 {
		st.Message = r.Errors[0]
	}
	if t, ok := parseTimestamp(r.StartedAt); ok {
		st.StartedAt = t
	}
	if t, ok := parseTimestamp(r.CompletedAt); ok {
		st.CompletedAt = &t
	}

	return st
}

// toRecord преобразует элемент истории в domain.ImportRecord.
func (r *statusResponse) toRecord() domain.ImportRecord {
	st := r.toStatus("")
	rec := domain.ImportRecord{
		ID:            st.ID,
		State:         st.State,
		Progress:      st.Progress,
		TotalRows:     st.TotalRows,
		ProcessedRows: st.ProcessedRows,
		Message:       st.Message,
		CompletedAt:   st.CompletedAt,
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		rec.StartedAt = &started
	}
	return rec
}

// historyEnvelope — история в обёртке {"imports": [...]}.
type historyEnvelope struct {
	Imports []statusResponse `json:"imports"`
}

// previewEnvelope — превью в обёртке.
type previewEnvelope struct {
	Preview []domain.Row `json:"preview"`
	Rows    []domain.Row `json:"rows"`
	Data    []domain.Row `json:"data"`
}

// --- helpers ---

// Форматы времени backend: RFC3339 или ISO без зоны (Python isoformat).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func clampProgress(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}

func firstInt(values ...*int) int {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// isJSONArray проверяет, что raw — JSON массив.
func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
