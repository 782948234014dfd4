package client

import (
	"context"

	"github.com/shaiso/Importer/internal/domain"
)

// --- Database ---

// TestConnection проверяет подключение к БД через backend.
// success=false возвращается как RequestError с сообщением backend.
func (c *Client) TestConnection(ctx context.Context, creds domain.ConnectionCredentials) (*domain.Connection, error) {
	var resp testConnectionResponse
	if err := c.post(ctx, OpTestConnection, "/api/database/test-connection", creds, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		return nil, NewRequestError(OpTestConnection, 0, resp.Message, ErrConnectionRejected)
	}

	return domain.NewConnection(resp.ConnectionID, creds), nil
}

// ListTables возвращает таблицы подключённой БД.
func (c *Client) ListTables(ctx context.Context, connectionID string) ([]string, error) {
	var resp tablesResponse
	err := c.get(ctx, OpListTables, "/api/database/tables", map[string]string{
		"connection_id": connectionID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Tables == nil {
		return []string{}, nil
	}
	return resp.Tables, nil
}

// TableSchema возвращает схему таблицы.
func (c *Client) TableSchema(ctx context.Context, connectionID, table string) (*domain.TableSchema, error) {
	var resp schemaResponse
	err := c.get(ctx, OpTableSchema, "/api/database/schema", map[string]string{
		"connection_id": connectionID,
		"table_name":    table,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &domain.TableSchema{Table: table, Columns: resp.Columns}, nil
}
