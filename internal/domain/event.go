package domain

import "time"

// EventType — тип события жизненного цикла import.
type EventType string

const (
	EventImportStarted  EventType = "import.started"
	EventImportFinished EventType = "import.finished"
)

// ImportEvent — событие жизненного цикла import для внешних подписчиков.
type ImportEvent struct {
	Type       EventType     `json:"type"`
	ImportID   string        `json:"import_id"`
	SessionID  string        `json:"session_id,omitempty"`
	Table      string        `json:"table_name,omitempty"`
	FileName   string        `json:"file_name,omitempty"`
	Status     *ImportStatus `json:"status,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
