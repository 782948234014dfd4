package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/config"
	"github.com/shaiso/Importer/internal/notify"
	"github.com/shaiso/Importer/internal/preflight"
	"github.com/shaiso/Importer/internal/telemetry"
	"github.com/shaiso/Importer/internal/wizard"
)

// UserAgent — User-Agent запросов CLI.
const UserAgent = "importer-cli"

// App — зависимости команд.
type App struct {
	Config  *config.Config
	Client  *client.Client
	Out     *Output
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Registry — реестр метрик, отдаётся через --metrics-addr.
	Registry *prometheus.Registry

	// Notifier публикует события import. Nil, если AMQP_URL не задан.
	Notifier wizard.Notifier

	// Clock — часы для poll. Nil — реальные.
	Clock clockwork.Clock

	amqp    *notify.Connection
	metrics *http.Server
}

// NewApp создаёт зависимости по конфигурации: клиент API, метрики,
// при необходимости сервер метрик и соединение с RabbitMQ.
func NewApp(cfg *config.Config, out *Output, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(reg)

	app := &App{
		Config:   cfg,
		Out:      out,
		Logger:   logger,
		Metrics:  metrics,
		Registry: reg,
		Client: client.New(client.Config{
			BaseURL:   cfg.API.URL,
			Token:     cfg.API.Token,
			Timeout:   cfg.API.Timeout,
			UserAgent: UserAgent,
			Logger:    logger,
			Metrics:   metrics,
		}),
	}

	if cfg.MetricsAddr != "" {
		if err := app.serveMetrics(cfg.MetricsAddr); err != nil {
			return nil, err
		}
	}

	if cfg.AMQPURL != "" {
		conn, err := notify.Dial(cfg.AMQPURL, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		app.amqp = conn

		if err := notify.SetupTopology(conn, ""); err != nil {
			app.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		app.Notifier = notify.NewPublisher(conn, logger)
	}

	return app, nil
}

// serveMetrics запускает HTTP сервер с /metrics.
func (a *App) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	a.metrics = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.Logger.Debug("metrics listening", "addr", ln.Addr().String())
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Prober возвращает проверку БД напрямую, если она включена.
func (a *App) Prober(enabled bool) wizard.Prober {
	if !enabled && !a.Config.Preflight {
		return nil
	}
	return preflight.New(preflight.Config{Logger: a.Logger})
}

// Close освобождает ресурсы App.
func (a *App) Close() error {
	var errs []error

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
		}
		a.metrics = nil
	}

	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			errs = append(errs, err)
		}
		a.amqp = nil
	}

	return errors.Join(errs...)
}
