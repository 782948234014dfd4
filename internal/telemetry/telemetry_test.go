package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json", false)

	WithImportID(logger, "imp-1").Info("poll")

	out := buf.String()
	if !strings.Contains(out, `"import_id":"imp-1"`) {
		t.Errorf("expected import_id in output, got %s", out)
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "text", false)

	other := NewLogger(&buf, "debug", "text", false)

	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx, other) != logger {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background(), other) != other {
		t.Error("expected fallback logger")
	}
	if FromContext(context.Background(), nil) != slog.Default() {
		t.Error("expected default logger")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("status", 200)
	m.ObserveRequest("status", 200)
	m.ObservePoll(PollResultOK)
	m.ObserveImport("completed")
	m.ObserveTransition("Upload File")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("status", "200")); got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.polls.WithLabelValues(PollResultOK)); got != 1 {
		t.Errorf("expected 1 poll, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", 0)
	m.ObservePoll(PollResultError)
	m.ObserveImport("failed")
	m.ObserveTransition("Import")
}
