package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/shaiso/Importer/internal/telemetry"
)

// Операции API. Используются в RequestError.Op и в метрике запросов.
const (
	OpTestConnection = "test-connection"
	OpListTables     = "list-tables"
	OpTableSchema    = "table-schema"
	OpUpload         = "upload"
	OpValidateFile   = "validate-file"
	OpPreview        = "preview"
	OpStartImport    = "start-import"
	OpImportStatus   = "import-status"
	OpCancelImport   = "cancel-import"
	OpImportHistory  = "import-history"
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	// HeaderRequestID — заголовок с ID запроса для корреляции логов.
	HeaderRequestID = "X-Request-ID"
)

// Client — HTTP-клиент для backend импорта.
type Client struct {
	http    *resty.Client
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Client.
type Config struct {
	BaseURL   string        // адрес backend (default: http://localhost:8000)
	Token     string        // bearer token; пустой — без авторизации
	Timeout   time.Duration // таймаут запроса (default: 30s)
	UserAgent string

	// HTTPClient — базовый http.Client (для тестов). Nil — стандартный.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт клиент для API.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}

	rc.SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}

	c := &Client{
		http:    rc,
		logger:  logger,
		metrics: cfg.Metrics,
	}
	c.setupHooks()

	return c
}

// setupHooks регистрирует перехватчики запросов и ответов.
func (c *Client) setupHooks() {
	c.http.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get(HeaderRequestID) == "" {
			req.SetHeader(HeaderRequestID, uuid.NewString())
		}
		telemetry.FromContext(req.Context(), c.logger).Debug("api request",
			"method", req.Method,
			"url", req.URL,
			"request_id", req.Header.Get(HeaderRequestID),
		)
		return nil
	})

	c.http.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		level := slog.LevelDebug
		if resp.IsError() {
			level = slog.LevelWarn
		}
		ctx := resp.Request.Context()
		telemetry.FromContext(ctx, c.logger).Log(ctx, level, "api response",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
		)
		return nil
	})

	c.http.OnError(func(req *resty.Request, err error) {
		telemetry.FromContext(req.Context(), c.logger).Warn("api request failed",
			"method", req.Method,
			"url", req.URL,
			"error", err,
		)
	})
}

// --- HTTP helpers ---

// do выполняет запрос и разбирает JSON ответ в result (если не nil).
// Любая ошибка возвращается как *RequestError.
func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string, result any) (*resty.Response, error) {
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		c.metrics.ObserveRequest(op, 0)
		return nil, NewRequestError(op, 0, transportDetail(ctx, err), err)
	}

	c.metrics.ObserveRequest(op, resp.StatusCode())

	if resp.IsError() {
		return resp, responseError(op, resp.StatusCode(), resp.Body())
	}

	if result != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			return resp, NewRequestError(op, resp.StatusCode(), "", fmt.Errorf("%w: %v", ErrDecode, err))
		}
	}

	return resp, nil
}

func (c *Client) get(ctx context.Context, op, path string, params map[string]string, result any) error {
	req := c.http.R().SetQueryParams(params)
	_, err := c.do(ctx, op, req, http.MethodGet, path, result)
	return err
}

func (c *Client) post(ctx context.Context, op, path string, body any, result any) error {
	req := c.http.R()
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	_, err := c.do(ctx, op, req, http.MethodPost, path, result)
	return err
}

// transportDetail формирует сообщение для транспортной ошибки.
func transportDetail(ctx context.Context, err error) string {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr.Error()
	}
	return err.Error()
}
