package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/domain"
)

// EnvPassword — переменная окружения с паролем БД, если --password не задан.
const EnvPassword = "PGPASSWORD"

// connFlags — флаги подключения к БД.
type connFlags struct {
	host     string
	port     int
	database string
	username string
	password string
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "localhost", "Database host")
	cmd.Flags().IntVar(&f.port, "port", domain.DefaultPort, "Database port")
	cmd.Flags().StringVar(&f.database, "database", "", "Database name")
	cmd.Flags().StringVar(&f.username, "username", "", "Database user")
	cmd.Flags().StringVar(&f.password, "password", "", "Database password (default from "+EnvPassword+")")
}

func (f *connFlags) credentials() domain.ConnectionCredentials {
	password := f.password
	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	return domain.ConnectionCredentials{
		Host:     f.host,
		Port:     f.port,
		Database: f.database,
		Username: f.username,
		Password: password,
	}
}

// optionFlags — флаги параметров import.
type optionFlags struct {
	ifExists  string
	batchSize int
}

func (f *optionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ifExists, "if-exists", "", "Behaviour if the table exists: fail, replace, append (default from config)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Rows per insert batch (default from config)")
}

// options применяет явно заданные флаги к значениям из конфигурации.
func (f *optionFlags) options(defaults domain.ImportOptions) domain.ImportOptions {
	opts := defaults
	if f.ifExists != "" {
		opts.IfExists = domain.IfExists(strings.ToLower(f.ifExists))
	}
	if f.batchSize != 0 {
		opts.BatchSize = f.batchSize
	}
	return opts
}

// parseMappings разбирает пары FILE_COLUMN=TABLE_COLUMN.
// Пустая колонка таблицы допустима: колонка выбрана без цели.
func parseMappings(pairs []string) (domain.ColumnMapping, error) {
	m := make(domain.ColumnMapping, len(pairs))
	for _, pair := range pairs {
		file, table, ok := strings.Cut(pair, "=")
		file = strings.TrimSpace(file)
		if !ok || file == "" {
			return nil, fmt.Errorf("invalid mapping %q: expected FILE_COLUMN=TABLE_COLUMN", pair)
		}
		m[file] = strings.TrimSpace(table)
	}
	return m, nil
}

// signalContext отменяется по SIGINT/SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func statusHeaders() []string {
	return []string{"ID", "STATUS", "PROGRESS", "PROCESSED", "FAILED", "TOTAL", "MESSAGE"}
}

func statusRow(s *domain.ImportStatus) []string {
	return []string{
		s.ID,
		s.State.String(),
		strconv.Itoa(s.Progress) + "%",
		strconv.Itoa(s.ProcessedRows),
		strconv.Itoa(s.FailedRows),
		strconv.Itoa(s.TotalRows),
		s.Message,
	}
}

// rowsTable строит таблицу из строк превью. Если columns пустой,
// колонки берутся из ключей строк по алфавиту.
func rowsTable(rows []domain.Row, columns []string) ([]string, [][]string) {
	if len(columns) == 0 {
		for _, row := range rows {
			for k := range row {
				if !slices.Contains(columns, k) {
					columns = append(columns, k)
				}
			}
		}
		slices.Sort(columns)
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(columns))
		for j, col := range columns {
			out[i][j] = formatValue(row[col])
		}
	}
	return columns, out
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
