// Package testbackend — in-memory реализация REST контракта backend импорта.
//
// Используется в тестах client, wizard и cli вместе с httptest.Server.
// Позволяет задать таблицы, сценарий статусов import, обязательный
// bearer token и принудительные ошибки отдельных маршрутов.
package testbackend

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/shaiso/Importer/internal/domain"
)

// Маршруты backend (для Fail и Calls).
const (
	RouteTestConnection = "test-connection"
	RouteTables         = "tables"
	RouteSchema         = "schema"
	RouteUpload         = "upload"
	RouteValidate       = "validate"
	RoutePreview        = "preview"
	RouteStart          = "start"
	RouteStatus         = "status"
	RouteCancel         = "cancel"
	RouteHistory        = "history"
)

// RejectPassword — пароль, для которого test-connection отвечает success=false.
const RejectPassword = "wrong"

// StartRequest — тело запроса старта import, как его видит backend.
type StartRequest struct {
	FileID        string            `json:"file_id"`
	ConnectionID  string            `json:"connection_id"`
	TableName     string            `json:"table_name"`
	ColumnMapping map[string]string `json:"column_mapping"`
	Options       struct {
		IfExists  string `json:"if_exists"`
		BatchSize int    `json:"batch_size"`
	} `json:"options"`
}

type failure struct {
	status int
	detail string
}

type file struct {
	id      string
	name    string
	columns []string
	rows    []map[string]any
}

type job struct {
	id        string
	total     int
	polls     int
	cancelled bool
	startedAt time.Time
	doneAt    *time.Time
}

// Backend — fake backend.
type Backend struct {
	mu sync.Mutex

	tables      map[string][]domain.TableColumn
	tableOrder  []string
	script      []domain.ImportState
	token       string
	connections map[string]bool
	files       map[string]*file
	jobs        map[string]*job
	jobOrder    []string
	failures    map[string]failure
	calls       map[string]int
	starts      []StartRequest
}

// Option настраивает Backend.
type Option func(*Backend)

// WithTable добавляет таблицу с колонками.
func WithTable(name string, columns ...domain.TableColumn) Option {
	return func(b *Backend) {
		if _, exists := b.tables[name]; !exists {
			b.tableOrder = append(b.tableOrder, name)
		}
		b.tables[name] = columns
	}
}

// WithStatusScript задаёт последовательность статусов, которую
// возвращают последовательные запросы статуса каждого import.
// Последний статус повторяется.
func WithStatusScript(states ...domain.ImportState) Option {
	return func(b *Backend) {
		b.script = states
	}
}

// WithToken требует заголовок Authorization: Bearer token.
func WithToken(token string) Option {
	return func(b *Backend) {
		b.token = token
	}
}

// New создаёт Backend. Сценарий статусов по умолчанию:
// processing, completed.
func New(opts ...Option) *Backend {
	b := &Backend{
		tables:      make(map[string][]domain.TableColumn),
		script:      []domain.ImportState{domain.ImportStateProcessing, domain.ImportStateCompleted},
		connections: make(map[string]bool),
		files:       make(map[string]*file),
		jobs:        make(map[string]*job),
		failures:    make(map[string]failure),
		calls:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fail заставляет маршрут отвечать status с {"detail": detail}.
// Пустой detail — ответ без тела.
func (b *Backend) Fail(route string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, detail: detail}
}

// Recover отменяет Fail для маршрута.
func (b *Backend) Recover(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Calls возвращает количество обращений к маршруту.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// Starts возвращает принятые запросы старта import.
func (b *Backend) Starts() []StartRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StartRequest(nil), b.starts...)
}

// Handler возвращает chi router с маршрутами контракта.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.authorize)

	r.Route("/api", func(r chi.Router) {
		r.Post("/database/test-connection", b.route(RouteTestConnection, b.testConnection))
		r.Get("/database/tables", b.route(RouteTables, b.listTables))
		r.Get("/database/schema", b.route(RouteSchema, b.tableSchema))

		r.Post("/import/upload", b.route(RouteUpload, b.upload))
		r.Post("/import/validate", b.route(RouteValidate, b.validate))
		r.Get("/import/preview", b.route(RoutePreview, b.preview))
		r.Post("/import/start", b.route(RouteStart, b.start))
		r.Get("/import/status/{importID}", b.route(RouteStatus, b.status))
		r.Post("/import/cancel/{importID}", b.route(RouteCancel, b.cancel))
		r.Get("/import/history", b.route(RouteHistory, b.history))
	})

	return r
}

// --- middleware ---

func (b *Backend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		token := b.token
		b.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// route считает обращения и применяет принудительные ошибки.
func (b *Backend) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[name]++
		f, failing := b.failures[name]
		b.mu.Unlock()

		if failing {
			if f.detail == "" {
				w.WriteHeader(f.status)
				return
			}
			writeDetail(w, f.status, f.detail)
			return
		}
		h(w, r)
	}
}

// --- database ---

func (b *Backend) testConnection(w http.ResponseWriter, r *http.Request) {
	var creds domain.ConnectionCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	if creds.Password == RejectPassword {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": fmt.Sprintf("password authentication failed for user %q", creds.Username),
		})
		return
	}

	id := uuid.NewString()
	b.mu.Lock()
	b.connections[id] = true
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"connection_id": id,
		"message":       "Connection successful",
	})
}

func (b *Backend) listTables(w http.ResponseWriter, r *http.Request) {
	if !b.hasConnection(r.URL.Query().Get("connection_id")) {
		writeDetail(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	b.mu.Lock()
	tables := append([]string{}, b.tableOrder...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (b *Backend) tableSchema(w http.ResponseWriter, r *http.Request) {
	if !b.hasConnection(r.URL.Query().Get("connection_id")) {
		writeDetail(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}

	name := r.URL.Query().Get("table_name")
	b.mu.Lock()
	cols, ok := b.tables[name]
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("table %q does not exist", name))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"columns": cols})
}

// --- files ---

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	src, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer src.Close()

	if strings.ToLower(path.Ext(header.Filename)) != ".csv" {
		writeDetail(w, http.StatusInternalServerError, "Unsupported file format")
		return
	}

	columns, rows, err := readCSV(src)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	f := &file{id: uuid.NewString(), name: header.Filename, columns: columns, rows: rows}
	b.mu.Lock()
	b.files[f.id] = f
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":  f.id,
		"filename": f.name,
		"rows":     len(rows),
		"columns":  columns,
		"preview":  head(rows, 5),
	})
}

func (b *Backend) validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	f := b.file(req.FileID)
	if f == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid file ID")
		return
	}

	missing := make(map[string]int)
	for _, row := range f.rows {
		for _, col := range f.columns {
			if row[col] == "" {
				missing[col]++
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":        f.id,
		"valid":          true,
		"rows":           len(f.rows),
		"missing_values": missing,
	})
}

func (b *Backend) preview(w http.ResponseWriter, r *http.Request) {
	f := b.file(r.URL.Query().Get("file_id"))
	if f == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid file ID")
		return
	}

	n, err := strconv.Atoi(r.URL.Query().Get("rows"))
	if err != nil || n <= 0 {
		n = 10
	}

	writeJSON(w, http.StatusOK, map[string]any{"preview": head(f.rows, n)})
}

// --- imports ---

func (b *Backend) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if !b.hasConnection(req.ConnectionID) {
		writeDetail(w, http.StatusBadRequest, "Invalid connection ID")
		return
	}
	f := b.file(req.FileID)
	if f == nil {
		writeDetail(w, http.StatusBadRequest, "Invalid file ID")
		return
	}

	j := &job{id: uuid.NewString(), total: len(f.rows), startedAt: time.Now().UTC()}

	b.mu.Lock()
	b.starts = append(b.starts, req)
	b.jobs[j.id] = j
	b.jobOrder = append(b.jobOrder, j.id)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"import_id":  j.id,
		"total_rows": j.total,
	})
}

func (b *Backend) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")

	b.mu.Lock()
	j, ok := b.jobs[id]
	if !ok {
		b.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Import job not found")
		return
	}
	j.polls++
	body := b.jobBody(j)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")

	b.mu.Lock()
	defer b.mu.Unlock()

	j, ok := b.jobs[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Import job not found")
		return
	}
	if state := b.jobState(j); state.IsTerminal() {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Cannot cancel %s job", state))
		return
	}

	j.cancelled = true
	now := time.Now().UTC()
	j.doneAt = &now

	writeJSON(w, http.StatusOK, map[string]any{"message": "Import cancelled successfully"})
}

func (b *Backend) history(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	b.mu.Lock()
	items := make([]map[string]any, 0, len(b.jobOrder))
	for _, id := range b.jobOrder {
		items = append(items, b.jobBody(b.jobs[id]))
	}
	b.mu.Unlock()

	sort.SliceStable(items, func(i, k int) bool {
		return items[i]["started_at"].(string) > items[k]["started_at"].(string)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{"imports": items})
}

// jobState вычисляет статус job по сценарию. Вызывается под b.mu.
func (b *Backend) jobState(j *job) domain.ImportState {
	if j.cancelled {
		return domain.ImportStateCancelled
	}
	if j.polls == 0 || len(b.script) == 0 {
		return domain.ImportStatePending
	}
	idx := min(j.polls, len(b.script)) - 1
	return b.script[idx]
}

// jobBody формирует JSON статуса. Вызывается под b.mu.
func (b *Backend) jobBody(j *job) map[string]any {
	state := b.jobState(j)

	progress, processed := 0, 0
	switch state {
	case domain.ImportStateProcessing:
		progress, processed = 50, j.total/2
	case domain.ImportStateCompleted:
		progress, processed = 100, j.total
	}

	if state.IsTerminal() && j.doneAt == nil {
		now := time.Now().UTC()
		j.doneAt = &now
	}

	body := map[string]any{
		"id":             j.id,
		"status":         string(state),
		"progress":       progress,
		"total_rows":     j.total,
		"processed_rows": processed,
		"failed_rows":    0,
		"message":        "Import " + string(state),
		"started_at":     j.startedAt.Format(time.RFC3339Nano),
	}
	if j.doneAt != nil {
		body["completed_at"] = j.doneAt.Format(time.RFC3339Nano)
	}
	return body
}

// --- helpers ---

func (b *Backend) hasConnection(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connections[id]
}

func (b *Backend) file(id string) *file {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[id]
}

func readCSV(r io.Reader) ([]string, []map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("file is empty")
		}
		return nil, nil, err
	}

	var rows []map[string]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func head(rows []map[string]any, n int) []map[string]any {
	if rows == nil {
		return []map[string]any{}
	}
	return rows[:min(n, len(rows))]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
