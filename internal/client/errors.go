package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Ошибки клиента.
var (
	// ErrUnauthorized — backend ответил 401.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConnectionRejected — test-connection вернул success=false.
	ErrConnectionRejected = errors.New("connection rejected")

	// ErrUnexpectedStatus — backend ответил не-2xx.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrDecode — тело ответа не удалось разобрать.
	ErrDecode = errors.New("decode response")
)

// Сообщения по умолчанию для операций, если backend не прислал detail.
var fallbackDetails = map[string]string{
	OpTestConnection: "Connection failed",
	OpListTables:     "Failed to fetch tables",
	OpTableSchema:    "Failed to fetch table schema",
	OpUpload:         "File upload failed",
	OpValidateFile:   "File validation failed",
	OpPreview:        "Failed to fetch preview",
	OpStartImport:    "Import failed to start",
	OpImportStatus:   "Failed to check status",
	OpCancelImport:   "Failed to cancel import",
	OpImportHistory:  "Failed to fetch history",
}

// RequestError — ошибка запроса к backend: транспорт, не-2xx или
// неуспешный ответ. Detail — человекочитаемое сообщение для пользователя.
type RequestError struct {
	Op         string // операция API (см. Op* константы)
	StatusCode int    // HTTP статус; 0 для транспортной ошибки
	Detail     string // сообщение для пользователя
	Err        error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// Unwrap возвращает базовую ошибку.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError создаёт RequestError. Пустой detail заменяется
// сообщением по умолчанию для операции.
func NewRequestError(op string, statusCode int, detail string, err error) *RequestError {
	if detail == "" {
		detail = fallbackDetail(op)
	}
	return &RequestError{
		Op:         op,
		StatusCode: statusCode,
		Detail:     detail,
		Err:        err,
	}
}

func fallbackDetail(op string) string {
	if msg, ok := fallbackDetails[op]; ok {
		return msg
	}
	return "Request failed"
}

// errorBody — тело ошибки backend: {"detail": "..."}.
// detail может быть и списком (ошибки валидации запроса).
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// extractDetail достаёт строку detail из тела ошибки.
// Возвращает пустую строку, если тела нет или detail не строка.
func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		return detail
	}

	// detail-список: берём msg первой ошибки
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(eb.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}

	return ""
}

// responseError строит RequestError для не-2xx ответа.
func responseError(op string, statusCode int, body []byte) *RequestError {
	detail := extractDetail(body)
	if detail == "" {
		detail = fmt.Sprintf("%s (HTTP %d)", fallbackDetail(op), statusCode)
	}

	base := ErrUnexpectedStatus
	if statusCode == http.StatusUnauthorized {
		base = ErrUnauthorized
	}

	return NewRequestError(op, statusCode, detail, base)
}
