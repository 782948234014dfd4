package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/telemetry"
)

// Значения по умолчанию.
const (
	DefaultInterval             = 2 * time.Second
	DefaultMaxConsecutiveErrors = 3
)

// StatusSource — backend, у которого запрашивается статус и отмена import.
// Реализуется client.Client.
type StatusSource interface {
	ImportStatus(ctx context.Context, importID string) (*domain.ImportStatus, error)
	CancelImport(ctx context.Context, importID string) error
}

// Config — конфигурация Poller.
type Config struct {
	Source StatusSource

	Clock    clockwork.Clock // default: реальные часы
	Interval time.Duration   // период poll (default: 2s)

	// MaxConsecutiveErrors — сколько ошибок подряд допускается до
	// остановки задачи (default: 3).
	MaxConsecutiveErrors int

	// OnStatus вызывается с полным статусом после каждого успешного poll.
	OnStatus func(importID string, status *domain.ImportStatus)

	// OnError вызывается при каждой ошибке poll.
	OnError func(importID string, err error)

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Poller — планировщик опроса статуса. Безопасен для конкурентного
// использования.
type Poller struct {
	source    StatusSource
	clock     clockwork.Clock
	interval  time.Duration
	maxErrors int
	onStatus  func(string, *domain.ImportStatus)
	onError   func(string, error)
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	mu   sync.Mutex
	task *Task
}

// New создаёт Poller.
func New(cfg Config) (*Poller, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}

	p := &Poller{
		source:    cfg.Source,
		clock:     cfg.Clock,
		interval:  cfg.Interval,
		maxErrors: cfg.MaxConsecutiveErrors,
		onStatus:  cfg.OnStatus,
		onError:   cfg.OnError,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}

	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.maxErrors <= 0 {
		p.maxErrors = DefaultMaxConsecutiveErrors
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p, nil
}

// Start запускает опрос importID и возвращает задачу.
//
// Если уже опрашивается тот же importID, возвращается текущая задача.
// Задача для другого import сначала останавливается.
func (p *Poller) Start(ctx context.Context, importID string) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev := p.task; prev != nil && !prev.finished() {
		if prev.importID == importID {
			return prev
		}
		prev.Stop()
		p.logger.Debug("replaced poll task",
			"import_id", prev.importID,
			"new_import_id", importID,
		)
	}

	t := newTask(importID)
	p.task = t

	// тикер создаётся до возврата, чтобы первый тик отсчитывался от Start
	ticker := p.clock.NewTicker(p.interval)
	go p.run(ctx, t, ticker)

	p.logger.Debug("poll task started",
		"import_id", importID,
		"interval", p.interval,
	)
	return t
}

// Stop останавливает текущую задачу. Повторный вызов ничего не делает.
func (p *Poller) Stop() {
	p.mu.Lock()
	t := p.task
	p.task = nil
	p.mu.Unlock()

	if t != nil {
		t.Stop()
	}
}

// Cancel отправляет запрос отмены importID и останавливает его опрос,
// даже если запрос завершился ошибкой. Задача другого import не трогается.
func (p *Poller) Cancel(ctx context.Context, importID string) error {
	err := p.source.CancelImport(ctx, importID)
	p.stopImport(importID)

	if err != nil {
		p.logger.Warn("cancel request failed",
			"import_id", importID,
			"error", err,
		)
		return err
	}

	p.logger.Info("import cancelled", "import_id", importID)
	return nil
}

// stopImport останавливает текущую задачу, если она опрашивает importID.
func (p *Poller) stopImport(importID string) {
	p.mu.Lock()
	t := p.task
	if t == nil || t.importID != importID {
		p.mu.Unlock()
		return
	}
	p.task = nil
	p.mu.Unlock()

	t.Stop()
}

// Active возвращает importID активной задачи.
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.task == nil || p.task.finished() {
		return "", false
	}
	return p.task.importID, true
}

// release снимает задачу с учёта, если она всё ещё текущая.
func (p *Poller) release(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task == t {
		p.task = nil
	}
}

// run — цикл опроса одной задачи.
func (p *Poller) run(ctx context.Context, t *Task, ticker clockwork.Ticker) {
	defer ticker.Stop()
	defer p.release(t)

	logger := telemetry.WithImportID(p.logger, t.importID)

	// WithMaxRetries считает повторы: после max+1 ошибок подряд NextBackOff
	// возвращает Stop.
	budget := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxErrors-1))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("poll task context done", "error", ctx.Err())
			t.finish(ctx.Err())
			return
		case <-t.stop:
			t.finish(nil)
			return
		case <-ticker.Chan():
		}

		// select выбирает случайно, если готовы оба канала
		if t.stopped() {
			t.finish(nil)
			return
		}

		status, err := p.source.ImportStatus(ctx, t.importID)

		if t.stopped() {
			p.metrics.ObservePoll(telemetry.PollResultDropped)
			logger.Debug("poll result dropped after stop")
			t.finish(nil)
			return
		}

		if err != nil {
			p.metrics.ObservePoll(telemetry.PollResultError)
			logger.Warn("poll failed", "error", err)
			if p.onError != nil {
				p.onError(t.importID, err)
			}

			if budget.NextBackOff() == backoff.Stop {
				logger.Error("poll task stopped after consecutive errors",
					"max_errors", p.maxErrors,
				)
				t.finish(fmt.Errorf("%w: %v", ErrRetryExhausted, err))
				return
			}
			continue
		}

		budget.Reset()

		if p.onStatus != nil {
			p.onStatus(t.importID, status)
		}

		if status.State.IsTerminal() {
			p.metrics.ObservePoll(telemetry.PollResultTerminal)
			logger.Info("import reached terminal status",
				"status", status.State,
				"processed_rows", status.ProcessedRows,
			)
			t.finish(nil)
			return
		}

		p.metrics.ObservePoll(telemetry.PollResultOK)
		logger.Debug("poll",
			"status", status.State,
			"progress", status.Progress,
		)
	}
}

// Task — задача опроса одного import.
type Task struct {
	importID string

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	mu  sync.Mutex
	err error
}

func newTask(importID string) *Task {
	return &Task{
		importID: importID,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ImportID возвращает ID опрашиваемого import.
func (t *Task) ImportID() string {
	return t.importID
}

// Stop прекращает опрос. Запрос, выполняющийся в этот момент, не
// прерывается, но его результат отбрасывается. Идемпотентен.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Done закрывается, когда задача завершилась.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err возвращает причину завершения задачи: nil после финального
// статуса или Stop, ErrRetryExhausted после лимита ошибок, ошибку
// контекста при его отмене. До завершения возвращает nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

func (t *Task) finished() bool {
	if t.stopped() {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) finish(err error) {
	t.doneOnce.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}
