package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/poller"
	"github.com/shaiso/Importer/internal/telemetry"
	"github.com/shaiso/Importer/internal/validation"
)

// Backend — REST API backend импорта. Реализуется client.Client.
type Backend interface {
	TestConnection(ctx context.Context, creds domain.ConnectionCredentials) (*domain.Connection, error)
	ListTables(ctx context.Context, connectionID string) ([]string, error)
	TableSchema(ctx context.Context, connectionID, table string) (*domain.TableSchema, error)
	UploadFile(ctx context.Context, f client.FileUpload) (*domain.UploadedFile, error)
	StartImport(ctx context.Context, req client.StartImportRequest) (*client.StartImportResponse, error)
	ImportStatus(ctx context.Context, importID string) (*domain.ImportStatus, error)
	CancelImport(ctx context.Context, importID string) error
}

// Prober — прямая проверка доступности БД до запроса к backend.
type Prober interface {
	Probe(ctx context.Context, creds domain.ConnectionCredentials) error
}

// Notifier — получатель событий жизненного цикла import.
type Notifier interface {
	Publish(ctx context.Context, ev domain.ImportEvent) error
}

// FileSource — файл для шага Upload.
type FileSource struct {
	Name     string
	Size     int64
	MIMEType string
	Reader   io.Reader

	// OnProgress вызывается при изменении процента отправки.
	OnProgress func(percent int)
}

// Config — конфигурация Session.
type Config struct {
	Backend  Backend
	Prober   Prober   // опционально
	Notifier Notifier // опционально

	Clock         clockwork.Clock // default: реальные часы
	PollInterval  time.Duration   // default: 2s
	MaxPollErrors int             // default: 3

	// UniqueTargets запрещает отображать две колонки файла в одну
	// колонку таблицы.
	UniqueTargets bool

	// Options — параметры import по умолчанию. Нулевые поля заменяются
	// domain.DefaultImportOptions.
	Options domain.ImportOptions

	// OnStatus вызывается после применения каждого нового статуса import.
	OnStatus func(status *domain.ImportStatus)

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Session — сессия мастера import.
type Session struct {
	id       string
	backend  Backend
	prober   Prober
	notifier Notifier
	poller   *poller.Poller
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	uniqueTargets  bool
	defaultOptions domain.ImportOptions
	onStatus       func(*domain.ImportStatus)

	// baseCtx живёт до Close: в нём работают задачи poll.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	gen    uint64 // увеличивается при Reset и Close
	step   domain.Step

	conn      *domain.Connection
	file      *domain.UploadedFile
	tables    []string
	tablesFor string // ID подключения, для которого получен список таблиц
	table     string
	schema    *domain.TableSchema
	mapping   domain.ColumnMapping
	mappedFor string // таблица, для которой уже выполнен auto-mapping
	options   domain.ImportOptions

	starting bool
	importID string
	status   *domain.ImportStatus
	task     *poller.Task

	uploadProgress int
	lastErr        string
}

// New создаёт сессию на шаге Connect.
func New(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	id := uuid.NewString()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = telemetry.WithSessionID(logger, id)

	opts := domain.DefaultImportOptions()
	if cfg.Options.IfExists != "" {
		opts.IfExists = cfg.Options.IfExists
	}
	if cfg.Options.BatchSize > 0 {
		opts.BatchSize = cfg.Options.BatchSize
	}

	s := &Session{
		id:             id,
		backend:        cfg.Backend,
		prober:         cfg.Prober,
		notifier:       cfg.Notifier,
		clock:          clock,
		logger:         logger,
		metrics:        cfg.Metrics,
		uniqueTargets:  cfg.UniqueTargets,
		defaultOptions: opts,
		onStatus:       cfg.OnStatus,
		step:           domain.StepConnect,
		mapping:        domain.ColumnMapping{},
		options:        opts,
	}
	s.baseCtx, s.cancel = context.WithCancel(telemetry.WithLogger(context.Background(), logger))

	p, err := poller.New(poller.Config{
		Source:               cfg.Backend,
		Clock:                clock,
		Interval:             cfg.PollInterval,
		MaxConsecutiveErrors: cfg.MaxPollErrors,
		OnStatus:             s.applyStatus,
		OnError:              s.pollFailed,
		Logger:               logger,
		Metrics:              cfg.Metrics,
	})
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.poller = p

	return s, nil
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string {
	return s.id
}

// Step возвращает текущий шаг.
func (s *Session) Step() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Snapshot возвращает копию состояния сессии.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SessionID:      s.id,
		Step:           s.step,
		File:           s.file,
		Tables:         append([]string(nil), s.tables...),
		Table:          s.table,
		Schema:         s.schema.Clone(),
		Mapping:        s.mapping.Clone(),
		Options:        s.options,
		Import:         s.status.Clone(),
		UploadProgress: s.uploadProgress,
		Error:          s.lastErr,
		Closed:         s.closed,
	}
	if s.conn != nil {
		conn := *s.conn
		st.Connection = &conn
	}
	return st
}

// Advance переводит сессию с шага step на следующий, сохраняя artifact.
//
// Артефакты по шагам:
//   - Connect: *domain.Connection
//   - Upload: *domain.UploadedFile
//   - SelectTable: TableSelection
//   - MapColumns: domain.ColumnMapping (проверяется по файлу и схеме)
//
// При ошибке состояние не меняется. Ошибка эффекта входа на новый шаг
// (например, загрузки списка таблиц) не отменяет переход.
func (s *Session) Advance(ctx context.Context, step domain.Step, artifact any) error {
	ctx = telemetry.WithLogger(ctx, s.logger)

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	return s.advance(ctx, gen, step, artifact)
}

// advance выполняет переход, если сессия всё ещё в поколении gen.
func (s *Session) advance(ctx context.Context, gen uint64, step domain.Step, artifact any) error {
	s.mu.Lock()

	if err := s.checkLocked("advance", gen); err != nil {
		s.mu.Unlock()
		return err
	}
	if step != s.step {
		err := stateError("advance", s.step, ErrWrongStep, "requested "+step.String())
		s.mu.Unlock()
		return err
	}
	if step == domain.StepImport || s.starting {
		err := stateError("advance", s.step, ErrWrongStep, "import step is final")
		s.mu.Unlock()
		return err
	}
	if err := s.storeLocked(step, artifact); err != nil {
		s.mu.Unlock()
		return err
	}

	s.step = step + 1
	s.mu.Unlock()

	s.transitioned(step + 1)
	return s.enter(ctx, gen)
}

// storeLocked проверяет и сохраняет артефакт шага. Вызывается под s.mu.
func (s *Session) storeLocked(step domain.Step, artifact any) error {
	const op = "advance"

	switch step {
	case domain.StepConnect:
		conn, ok := artifact.(*domain.Connection)
		if !ok || conn == nil || conn.ID == "" {
			return stateError(op, step, ErrPrecondition, "connection is required")
		}
		s.conn = conn

	case domain.StepUpload:
		if s.conn == nil {
			return stateError(op, step, ErrPrecondition, "connection is required")
		}
		file, ok := artifact.(*domain.UploadedFile)
		if !ok || file == nil || file.ID == "" {
			return stateError(op, step, ErrPrecondition, "uploaded file is required")
		}
		// mapping строится по колонкам файла: новый файл требует нового auto-map
		if s.file == nil || s.file.ID != file.ID {
			s.mapping = domain.ColumnMapping{}
			s.mappedFor = ""
		}
		s.file = file
		s.uploadProgress = 100

	case domain.StepSelectTable:
		if s.file == nil {
			return stateError(op, step, ErrPrecondition, "uploaded file is required")
		}
		sel, ok := artifact.(TableSelection)
		if !ok || sel.Name == "" || sel.Schema == nil {
			return stateError(op, step, ErrPrecondition, "table selection is required")
		}
		if sel.Name != s.table {
			s.mapping = domain.ColumnMapping{}
			s.mappedFor = ""
		}
		s.table = sel.Name
		s.schema = sel.Schema.Clone()

	case domain.StepMapColumns:
		if s.schema == nil || s.file == nil {
			return stateError(op, step, ErrPrecondition, "table schema is required")
		}
		m, ok := artifact.(domain.ColumnMapping)
		if !ok {
			return stateError(op, step, ErrPrecondition, "column mapping is required")
		}
		if err := validation.ColumnMapping(m, s.file.Columns(), s.schema.Names()); err != nil {
			return err
		}
		s.mapping = m.Clone()

	default:
		return stateError(op, step, ErrWrongStep, "unknown step")
	}

	return nil
}

// Retreat возвращает сессию на предыдущий шаг. Артефакты сохраняются.
// С шага Import отступить нельзя.
func (s *Session) Retreat() error {
	s.mu.Lock()

	if err := s.checkLocked("retreat", s.gen); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.step == domain.StepImport || s.starting {
		err := stateError("retreat", s.step, ErrWrongStep, "import step can only be left by reset")
		s.mu.Unlock()
		return err
	}
	if s.step == domain.StepConnect {
		s.mu.Unlock()
		return nil
	}

	s.step--
	to := s.step
	s.mu.Unlock()

	s.transitioned(to)
	return nil
}

// Reset останавливает poll, очищает все артефакты и возвращает сессию
// на шаг Connect. Результаты запросов, начатых до Reset, отбрасываются.
func (s *Session) Reset() {
	s.mu.Lock()
	s.gen++
	s.poller.Stop()
	s.clearLocked()
	closed := s.closed
	s.mu.Unlock()

	if !closed {
		s.transitioned(domain.StepConnect)
	}
	s.logger.Info("wizard reset")
}

// Close завершает сессию: останавливает poll, последующие операции
// возвращают ErrSessionClosed. Повторный вызов ничего не делает.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.poller.Stop()
	s.mu.Unlock()

	s.cancel()
	s.logger.Debug("wizard session closed")
}

func (s *Session) clearLocked() {
	s.step = domain.StepConnect
	s.conn = nil
	s.file = nil
	s.tables = nil
	s.tablesFor = ""
	s.table = ""
	s.schema = nil
	s.mapping = domain.ColumnMapping{}
	s.mappedFor = ""
	s.options = s.defaultOptions
	s.starting = false
	s.importID = ""
	s.status = nil
	s.task = nil
	s.uploadProgress = 0
	s.lastErr = ""
}

// checkLocked проверяет, что сессия открыта и не сброшена с поколения gen.
func (s *Session) checkLocked(op string, gen uint64) error {
	if s.closed {
		return stateError(op, s.step, ErrSessionClosed, "")
	}
	if gen != s.gen {
		return stateError(op, s.step, ErrPrecondition, "session was reset")
	}
	return nil
}

// begin проверяет шаг операции и сбрасывает ошибку сессии.
// Возвращает поколение, в котором началась операция.
func (s *Session) begin(op string, step domain.Step) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(op, s.gen); err != nil {
		return 0, err
	}
	if s.step != step {
		return 0, stateError(op, s.step, ErrWrongStep, "expected "+step.String())
	}

	s.lastErr = ""
	return s.gen, nil
}

// fail записывает ошибку backend как ошибку сессии и возвращает её.
func (s *Session) fail(gen uint64, err error) error {
	s.mu.Lock()
	if gen == s.gen && !s.closed {
		s.lastErr = errorDetail(err)
	}
	s.mu.Unlock()
	return err
}

func (s *Session) transitioned(to domain.Step) {
	s.metrics.ObserveTransition(to.String())
	s.logger.Debug("wizard step", "step", to.String())
}

// errorDetail возвращает сообщение для пользователя.
func errorDetail(err error) string {
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Detail
	}
	return err.Error()
}
