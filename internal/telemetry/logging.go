package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel преобразует строку в уровень логирования.
// Возможные значения: DEBUG, INFO, WARN, ERROR (без учёта регистра).
// По умолчанию: INFO
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger создаёт логгер по значениям LOG_LEVEL и LOG_FORMAT
// и делает его глобальным.
func SetupLogger(w io.Writer, level, format string) *slog.Logger {
	return NewLogger(w, level, format, true)
}

// NewLogger создаёт логгер.
//
// Формат вывода:
//   - "json" — JSON формат для сбора логов
//   - любое другое значение — человекочитаемый text формат
//
// Если setDefault=true, логгер становится глобальным.
func NewLogger(w io.Writer, level, format string, setDefault bool) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if setDefault {
		slog.SetDefault(logger)
	}

	return logger
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает fallback, а при nil fallback — глобальный.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// WithSessionID возвращает логгер с добавленным session_id.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("session_id", sessionID)
}

// WithImportID возвращает логгер с добавленным import_id.
func WithImportID(logger *slog.Logger, importID string) *slog.Logger {
	return logger.With("import_id", importID)
}

// WithConnectionID возвращает логгер с добавленным connection_id.
func WithConnectionID(logger *slog.Logger, connectionID string) *slog.Logger {
	return logger.With("connection_id", connectionID)
}
