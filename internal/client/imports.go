package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shaiso/Importer/internal/domain"
)

// DefaultHistoryLimit — количество записей истории по умолчанию.
const DefaultHistoryLimit = 50

// --- Imports ---

// StartImport запускает import на backend.
func (c *Client) StartImport(ctx context.Context, req StartImportRequest) (*StartImportResponse, error) {
	var resp StartImportResponse
	if err := c.post(ctx, OpStartImport, "/api/import/start", req, &resp); err != nil {
		return nil, err
	}
	if resp.ImportID == "" {
		return nil, NewRequestError(OpStartImport, 0, "Backend did not return import_id", ErrDecode)
	}
	return &resp, nil
}

// ImportStatus возвращает текущий статус import.
func (c *Client) ImportStatus(ctx context.Context, importID string) (*domain.ImportStatus, error) {
	var resp statusResponse
	if err := c.get(ctx, OpImportStatus, "/api/import/status/"+url.PathEscape(importID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toStatus(importID), nil
}

// CancelImport отменяет import.
func (c *Client) CancelImport(ctx context.Context, importID string) error {
	var resp cancelResponse
	return c.post(ctx, OpCancelImport, "/api/import/cancel/"+url.PathEscape(importID), nil, &resp)
}

// ImportHistory возвращает историю import. limit<=0 — значение по умолчанию.
func (c *Client) ImportHistory(ctx context.Context, limit int) ([]domain.ImportRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var raw json.RawMessage
	err := c.get(ctx, OpImportHistory, "/api/import/history", map[string]string{
		"limit": strconv.Itoa(limit),
	}, &raw)
	if err != nil {
		return nil, err
	}

	var items []statusResponse
	if isJSONArray(raw) {
		err = json.Unmarshal(raw, &items)
	} else if len(raw) > 0 {
		var env historyEnvelope
		err = json.Unmarshal(raw, &env)
		items = env.Imports
	}
	if err != nil {
		return nil, NewRequestError(OpImportHistory, http.StatusOK, "", err)
	}

	records := make([]domain.ImportRecord, 0, len(items))
	for i := range items {
		records = append(records, items[i].toRecord())
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
