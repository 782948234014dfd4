package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/telemetry"
)

const waitTimeout = 2 * time.Second

var errTransport = errors.New("connection refused")

// fakeSource — StatusSource со сценарием ответов.
type fakeSource struct {
	mu        sync.Mutex
	states    []domain.ImportState
	errs      map[int]error // номер вызова (с 1) → ошибка
	calls     int
	cancels   int
	cancelErr error
	block     chan struct{}

	called chan int
}

func newFakeSource(states ...domain.ImportState) *fakeSource {
	return &fakeSource{
		states: states,
		errs:   make(map[int]error),
		called: make(chan int, 100),
	}
}

func (f *fakeSource) ImportStatus(ctx context.Context, importID string) (*domain.ImportStatus, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	err := f.errs[n]
	state := domain.ImportStatePending
	if len(f.states) > 0 {
		state = f.states[min(n, len(f.states))-1]
	}
	block := f.block
	f.mu.Unlock()

	f.called <- n

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &domain.ImportStatus{ID: importID, State: state, Progress: n * 10}, nil
}

func (f *fakeSource) CancelImport(ctx context.Context, importID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return f.cancelErr
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder собирает вызовы OnStatus и OnError.
type recorder struct {
	mu       sync.Mutex
	statuses []*domain.ImportStatus
	errs     []error
}

func (r *recorder) onStatus(_ string, st *domain.ImportStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
}

func (r *recorder) onError(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses), len(r.errs)
}

func newTestPoller(t *testing.T, src *fakeSource, rec *recorder, clk *clockwork.FakeClock) *Poller {
	t.Helper()

	p, err := New(Config{
		Source:   src,
		Clock:    clk,
		OnStatus: rec.onStatus,
		OnError:  rec.onError,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// tick двигает часы на интервал и ждёт очередной poll.
func tick(t *testing.T, clk *clockwork.FakeClock, src *fakeSource) int {
	t.Helper()
	clk.Advance(DefaultInterval)
	select {
	case n := <-src.called:
		return n
	case <-time.After(waitTimeout):
		t.Fatal("poll did not happen")
		return 0
	}
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(waitTimeout):
		t.Fatal("task did not finish")
	}
}

// assertNoPoll проверяет, что тик не приводит к запросу.
func assertNoPoll(t *testing.T, clk *clockwork.FakeClock, src *fakeSource) {
	t.Helper()
	clk.Advance(DefaultInterval)
	select {
	case n := <-src.called:
		t.Errorf("unexpected poll #%d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New(Config{Source: newFakeSource()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.interval != DefaultInterval {
		t.Errorf("interval = %v", p.interval)
	}
	if p.maxErrors != DefaultMaxConsecutiveErrors {
		t.Errorf("maxErrors = %d", p.maxErrors)
	}
	if p.clock == nil || p.logger == nil {
		t.Error("clock and logger should be defaulted")
	}
}

func TestPoller_StopsAtTerminalStatus(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(
		domain.ImportStatePending,
		domain.ImportStateProcessing,
		domain.ImportStateProcessing,
		domain.ImportStateCompleted,
	)
	rec := &recorder{}
	p := newTestPoller(t, src, rec, clk)

	task := p.Start(context.Background(), "job-1")

	// до первого тика запросов нет
	if src.Calls() != 0 {
		t.Fatalf("calls before first tick = %d", src.Calls())
	}

	for want := 1; want <= 4; want++ {
		if got := tick(t, clk, src); got != want {
			t.Fatalf("poll #%d, want #%d", got, want)
		}
	}
	waitDone(t, task)

	assertNoPoll(t, clk, src)

	if src.Calls() != 4 {
		t.Errorf("calls = %d, want 4", src.Calls())
	}
	if task.Err() != nil {
		t.Errorf("Err() = %v, want nil", task.Err())
	}
	if _, active := p.Active(); active {
		t.Error("poller should be idle after terminal status")
	}

	statuses, errs := rec.counts()
	if statuses != 4 || errs != 0 {
		t.Errorf("callbacks: statuses=%d errs=%d", statuses, errs)
	}
	if last := rec.statuses[3]; last.State != domain.ImportStateCompleted || last.ID != "job-1" {
		t.Errorf("last status = %+v", last)
	}
}

func TestPoller_Stop(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	rec := &recorder{}
	p := newTestPoller(t, src, rec, clk)

	task := p.Start(context.Background(), "job-1")
	tick(t, clk, src)

	p.Stop()
	p.Stop()
	task.Stop()
	waitDone(t, task)

	assertNoPoll(t, clk, src)

	if task.Err() != nil {
		t.Errorf("Err() = %v", task.Err())
	}
	if _, active := p.Active(); active {
		t.Error("poller should be idle after Stop")
	}
}

func TestPoller_StopDropsInFlightResult(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	src.block = make(chan struct{})
	rec := &recorder{}
	p := newTestPoller(t, src, rec, clk)

	task := p.Start(context.Background(), "job-1")
	tick(t, clk, src)

	// запрос в полёте
	task.Stop()
	close(src.block)
	waitDone(t, task)

	if statuses, _ := rec.counts(); statuses != 0 {
		t.Errorf("OnStatus called %d times after Stop", statuses)
	}
}

func TestPoller_StartSameIDReturnsRunningTask(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	p := newTestPoller(t, src, &recorder{}, clk)
	defer p.Stop()

	first := p.Start(context.Background(), "job-1")
	second := p.Start(context.Background(), "job-1")

	if first != second {
		t.Error("Start for the same import should return the running task")
	}
}

func TestPoller_StartReplacesTask(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	p := newTestPoller(t, src, &recorder{}, clk)
	defer p.Stop()

	first := p.Start(context.Background(), "job-1")
	second := p.Start(context.Background(), "job-2")

	waitDone(t, first)

	if first == second {
		t.Fatal("expected a new task")
	}
	if id, active := p.Active(); !active || id != "job-2" {
		t.Errorf("Active() = %q, %v", id, active)
	}

	// после остановки first опрашивается только один import
	if n := tick(t, clk, src); n != 1 {
		t.Errorf("poll #%d", n)
	}
	assertNoExtraPoll(t, src)
}

func assertNoExtraPoll(t *testing.T, src *fakeSource) {
	t.Helper()
	select {
	case n := <-src.called:
		t.Errorf("unexpected poll #%d", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPoller_CancelStopsPolling(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	p := newTestPoller(t, src, &recorder{}, clk)

	task := p.Start(context.Background(), "job-1")
	tick(t, clk, src)

	if err := p.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitDone(t, task)
	assertNoPoll(t, clk, src)

	if src.cancels != 1 {
		t.Errorf("cancels = %d", src.cancels)
	}
}

func TestPoller_CancelStopsPollingOnError(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	src.cancelErr = errTransport
	p := newTestPoller(t, src, &recorder{}, clk)

	task := p.Start(context.Background(), "job-1")

	err := p.Cancel(context.Background(), "job-1")
	if !errors.Is(err, errTransport) {
		t.Fatalf("Cancel error = %v", err)
	}

	waitDone(t, task)
	assertNoPoll(t, clk, src)

	if _, active := p.Active(); active {
		t.Error("poller should be idle after failed cancel")
	}
}

func TestPoller_CancelOtherImportKeepsTask(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	p := newTestPoller(t, src, &recorder{}, clk)
	defer p.Stop()

	task := p.Start(context.Background(), "job-1")

	if err := p.Cancel(context.Background(), "job-2"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case <-task.Done():
		t.Fatal("task of another import should keep running")
	default:
	}
	if id, active := p.Active(); !active || id != "job-1" {
		t.Errorf("Active() = %q, %v", id, active)
	}
	if n := tick(t, clk, src); n != 1 {
		t.Errorf("poll #%d", n)
	}
}

func TestPoller_RetryBudget(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	src.errs[1] = errTransport
	src.errs[2] = errTransport
	// третий успешен и сбрасывает счётчик
	src.errs[4] = errTransport
	src.errs[5] = errTransport
	src.errs[6] = errTransport
	rec := &recorder{}
	p := newTestPoller(t, src, rec, clk)

	task := p.Start(context.Background(), "job-1")
	for range 6 {
		tick(t, clk, src)
	}
	waitDone(t, task)

	if !errors.Is(task.Err(), ErrRetryExhausted) {
		t.Errorf("Err() = %v, want ErrRetryExhausted", task.Err())
	}
	statuses, errs := rec.counts()
	if statuses != 1 || errs != 5 {
		t.Errorf("callbacks: statuses=%d errs=%d", statuses, errs)
	}
	assertNoPoll(t, clk, src)
}

func TestPoller_ContextCancel(t *testing.T) {
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing)
	p := newTestPoller(t, src, &recorder{}, clk)

	ctx, cancel := context.WithCancel(context.Background())
	task := p.Start(ctx, "job-1")
	cancel()

	waitDone(t, task)
	if !errors.Is(task.Err(), context.Canceled) {
		t.Errorf("Err() = %v", task.Err())
	}
}

func TestPoller_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	clk := clockwork.NewFakeClock()
	src := newFakeSource(domain.ImportStateProcessing, domain.ImportStateFailed)
	src.errs[1] = errTransport

	p, err := New(Config{
		Source:  src,
		Clock:   clk,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: telemetry.NewMetrics(reg),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	task := p.Start(context.Background(), "job-1")
	tick(t, clk, src)
	tick(t, clk, src)
	waitDone(t, task)

	count, err := testutil.GatherAndCount(reg, "importer_polls_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Errorf("series = %d, want error and terminal", count)
	}
}
