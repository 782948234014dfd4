// Package config загружает конфигурацию клиента из переменных окружения.
//
// Перед чтением переменных подгружается .env (если файл есть).
// Переменные окружения имеют приоритет над значениями из .env.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/Importer/internal/domain"
)

// DefaultEnvFile — файл окружения, который читается по умолчанию.
const DefaultEnvFile = ".env"

// Config — конфигурация клиента.
type Config struct {
	API     APIConfig
	Poll    PollConfig
	Import  ImportConfig
	Logging LoggingConfig

	// Preflight включает прямую проверку БД перед test-connection.
	Preflight bool

	// AMQPURL — адрес RabbitMQ для событий import. Пустой — события отключены.
	AMQPURL string

	// MetricsAddr — адрес HTTP сервера метрик. Пустой — сервер не запускается.
	MetricsAddr string
}

// APIConfig — параметры backend API.
type APIConfig struct {
	URL     string        // IMPORTER_API_URL
	Token   string        // IMPORTER_API_TOKEN
	Timeout time.Duration // IMPORTER_REQUEST_TIMEOUT
}

// PollConfig — параметры опроса статуса.
type PollConfig struct {
	Interval  time.Duration // IMPORTER_POLL_INTERVAL
	MaxErrors int           // IMPORTER_MAX_POLL_ERRORS
}

// ImportConfig — параметры import по умолчанию.
type ImportConfig struct {
	IfExists      domain.IfExists // IMPORTER_IF_EXISTS
	BatchSize     int             // IMPORTER_BATCH_SIZE
	UniqueTargets bool            // IMPORTER_UNIQUE_TARGETS
}

// LoggingConfig — параметры логирования.
type LoggingConfig struct {
	Level  string // LOG_LEVEL
	Format string // LOG_FORMAT
}

// Options возвращает параметры import по умолчанию.
func (c *Config) Options() domain.ImportOptions {
	return domain.ImportOptions{
		IfExists:  c.Import.IfExists,
		BatchSize: c.Import.BatchSize,
	}
}

// Load читает .env (если есть) и переменные окружения,
// применяет значения по умолчанию и проверяет результат.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	var r reader
	cfg := &Config{
		API: APIConfig{
			URL:     r.string("IMPORTER_API_URL", "http://localhost:8000"),
			Token:   r.string("IMPORTER_API_TOKEN", ""),
			Timeout: r.duration("IMPORTER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Poll: PollConfig{
			Interval:  r.duration("IMPORTER_POLL_INTERVAL", 2*time.Second),
			MaxErrors: r.int("IMPORTER_MAX_POLL_ERRORS", 3),
		},
		Import: ImportConfig{
			IfExists:      domain.IfExists(strings.ToLower(r.string("IMPORTER_IF_EXISTS", string(domain.IfExistsAppend)))),
			BatchSize:     r.int("IMPORTER_BATCH_SIZE", domain.DefaultBatchSize),
			UniqueTargets: r.bool("IMPORTER_UNIQUE_TARGETS", false),
		},
		Logging: LoggingConfig{
			Level:  r.string("LOG_LEVEL", "info"),
			Format: r.string("LOG_FORMAT", "text"),
		},
		Preflight:   r.bool("PREFLIGHT", false),
		AMQPURL:     r.string("AMQP_URL", ""),
		MetricsAddr: r.string("METRICS_ADDR", ""),
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate проверяет конфигурацию и возвращает все найденные ошибки.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("IMPORTER_API_URL (%q) must be an absolute http(s) URL", c.API.URL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, "IMPORTER_REQUEST_TIMEOUT must be positive")
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, "IMPORTER_POLL_INTERVAL must be positive")
	}
	if c.Poll.MaxErrors <= 0 {
		errs = append(errs, "IMPORTER_MAX_POLL_ERRORS must be positive")
	}
	if !c.Import.IfExists.IsValid() {
		errs = append(errs, fmt.Sprintf("IMPORTER_IF_EXISTS (%q) must be one of fail, replace, append", c.Import.IfExists))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORTER_BATCH_SIZE must be positive")
	}
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			errs = append(errs, "AMQP_URL must use amqp:// or amqps:// scheme")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// loadEnvFiles подгружает существующие файлы окружения.
// Отсутствующие файлы пропускаются.
func loadEnvFiles(files []string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// reader читает переменные окружения и копит ошибки разбора.
type reader struct {
	errs []error
}

func (r *reader) string(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid value for %s=%q: %w", key, v, err))
		return def
	}
	return d
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid value for %s=%q: %w", key, v, err))
		return def
	}
	return i
}

func (r *reader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid value for %s=%q: %w", key, v, err))
		return def
	}
	return b
}
