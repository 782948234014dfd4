package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты poll для метки result.
const (
	PollResultOK       = "ok"
	PollResultError    = "error"
	PollResultTerminal = "terminal"
	PollResultDropped  = "dropped"
)

// Metrics — Prometheus метрики клиента.
//
// Nil *Metrics допустим: все методы тогда ничего не делают,
// поэтому компоненты не проверяют наличие метрик сами.
type Metrics struct {
	requests    *prometheus.CounterVec
	polls       *prometheus.CounterVec
	imports     *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_api_requests_total",
			Help: "Total backend API requests by operation and HTTP status code",
		}, []string{"op", "code"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_polls_total",
			Help: "Total import status polls by result",
		}, []string{"result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_imports_total",
			Help: "Imports observed by the wizard by state (pending on start, terminal state on finish)",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importer_wizard_transitions_total",
			Help: "Wizard step transitions by target step",
		}, []string{"to"}),
	}

	reg.MustRegister(m.requests, m.polls, m.imports, m.transitions)
	return m
}

// ObserveRequest учитывает запрос к API. code=0 означает транспортную ошибку.
func (m *Metrics) ObserveRequest(op string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
}

// ObservePoll учитывает один poll.
func (m *Metrics) ObservePoll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

// ObserveImport учитывает import в состоянии state.
func (m *Metrics) ObserveImport(state string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(state).Inc()
}

// ObserveTransition учитывает переход мастера на шаг to.
func (m *Metrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to).Inc()
}
