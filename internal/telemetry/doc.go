// Package telemetry обеспечивает наблюдаемость клиента.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики запросов, poll и import
//
// Логи пишутся в stderr: stdout CLI занят данными.
// Метрики регистрируются в переданном Registerer и по флагу
// --metrics-addr отдаются на /metrics.
package telemetry
