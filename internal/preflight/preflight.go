// Package preflight проверяет доступность PostgreSQL напрямую,
// до обращения к backend.
//
// Проверка опциональна: она полезна, когда клиент и backend находятся
// в одной сети и нужно быстро отличить ошибку БД от ошибки backend.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/domain"
)

// Op — операция для RequestError.
const Op = "preflight"

// Значения по умолчанию.
const (
	DefaultTimeout = 5 * time.Second
	DefaultSSLMode = "prefer"
)

// Config — конфигурация Prober.
type Config struct {
	Timeout time.Duration // default: 5s
	SSLMode string        // default: prefer
	Logger  *slog.Logger
}

// Prober — проверка подключения к PostgreSQL через pgx.
type Prober struct {
	timeout time.Duration
	sslMode string
	logger  *slog.Logger
}

// New создаёт Prober.
func New(cfg Config) *Prober {
	p := &Prober{
		timeout: cfg.Timeout,
		sslMode: cfg.SSLMode,
		logger:  cfg.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.sslMode == "" {
		p.sslMode = DefaultSSLMode
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// DSN строит строку подключения PostgreSQL из параметров.
func DSN(creds domain.ConnectionCredentials, sslMode string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(creds.Username, creds.Password),
		Host:   net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port)),
		Path:   "/" + creds.Database,
	}
	if sslMode != "" {
		u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	}
	return u.String()
}

// ParseConfig возвращает конфигурацию pgx для параметров подключения.
func (p *Prober) ParseConfig(creds domain.ConnectionCredentials) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(DSN(creds, p.sslMode))
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnectTimeout = p.timeout
	return cfg, nil
}

// Probe подключается к БД и выполняет ping. Ошибка возвращается как
// *client.RequestError с Op "preflight".
func (p *Prober) Probe(ctx context.Context, creds domain.ConnectionCredentials) error {
	cfg, err := p.ParseConfig(creds)
	if err != nil {
		return client.NewRequestError(Op, 0, "Invalid connection parameters", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return client.NewRequestError(Op, 0, fmt.Sprintf("Database is unreachable: %v", err), err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if err := conn.Ping(ctx); err != nil {
		return client.NewRequestError(Op, 0, fmt.Sprintf("Database ping failed: %v", err), err)
	}

	p.logger.Debug("preflight ok",
		"host", creds.Host,
		"database", creds.Database,
		"duration", time.Since(start),
	)
	return nil
}
