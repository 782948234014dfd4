package domain

import "time"

// ImportStatus — последнее известное состояние import job.
//
// Создаётся при старте import (pending) и дальше заменяется целиком
// при каждом успешном poll. После финального статуса не меняется.
type ImportStatus struct {
	// ID — идентификатор import (import_id).
	ID string `json:"id"`

	State ImportState `json:"status"`

	// Progress — процент выполнения, 0..100.
	Progress int `json:"progress"`

	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	FailedRows    int `json:"failed_rows"`

	Message string `json:"message"`

	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения. Nil, пока import не завершён.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewPendingStatus создаёт начальный статус сразу после старта import.
func NewPendingStatus(importID string, totalRows int, now time.Time) *ImportStatus {
	return &ImportStatus{
		ID:        importID,
		State:     ImportStatePending,
		TotalRows: totalRows,
		Message:   "Import started",
		StartedAt: now,
	}
}

// IsFinished возвращает true, если import завершён (в любом статусе).
func (s *ImportStatus) IsFinished() bool {
	return s.State.IsTerminal()
}

// Duration возвращает продолжительность import.
// Возвращает 0, если import ещё не завершён.
func (s *ImportStatus) Duration() time.Duration {
	if s.CompletedAt == nil || s.StartedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// Clone возвращает копию статуса.
func (s *ImportStatus) Clone() *ImportStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// ImportRecord — запись истории import.
type ImportRecord struct {
	ID            string      `json:"id"`
	State         ImportState `json:"status"`
	Progress      int         `json:"progress"`
	TotalRows     int         `json:"total_rows"`
	ProcessedRows int         `json:"processed_rows"`
	Message       string      `json:"message,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}
