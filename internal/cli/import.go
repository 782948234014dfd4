package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/poller"
	"github.com/shaiso/Importer/internal/validation"
)

// cancelTimeout — таймаут запроса отмены после прерывания.
const cancelTimeout = 10 * time.Second

// NewImportCmd создаёт группу команд для управления import.
func NewImportCmd(appFn func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Manage imports",
	}

	cmd.AddCommand(
		newImportStartCmd(appFn),
		newImportStatusCmd(appFn),
		newImportCancelCmd(appFn),
		newImportHistoryCmd(appFn),
		newImportWatchCmd(appFn),
	)

	return cmd
}

func newImportStartCmd(appFn func() *App) *cobra.Command {
	var fileID, connectionID, table string
	var pairs []string
	var opts optionFlags
	var watch bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an import of an uploaded file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()
			ctx := cmd.Context()

			if err := validation.TableName(table); err != nil {
				return err
			}
			m, err := parseMappings(pairs)
			if err != nil {
				return err
			}
			options := opts.options(app.Config.Options())
			if err := validation.ImportOptions(options); err != nil {
				return err
			}

			schema, err := app.Client.TableSchema(ctx, connectionID, table)
			if err != nil {
				return err
			}
			final, err := checkMapping(app, m, m.Keys(), schema.Names())
			if err != nil {
				return err
			}

			resp, err := app.Client.StartImport(ctx, client.StartImportRequest{
				FileID:        fileID,
				ConnectionID:  connectionID,
				TableName:     table,
				ColumnMapping: final,
				Options:       options,
			})
			if err != nil {
				return err
			}

			app.Out.Success(fmt.Sprintf("Import started: %s", resp.ImportID))
			if !watch {
				app.Out.Print(
					[]string{"IMPORT_ID", "TOTAL_ROWS"},
					[][]string{{resp.ImportID, strconv.Itoa(resp.TotalRows)}},
					resp,
				)
				return nil
			}

			status, err := watchImport(ctx, app, resp.ImportID)
			return reportFinal(app, status, err)
		},
	}

	cmd.Flags().StringVar(&fileID, "file-id", "", "File ID from 'upload' (required)")
	cmd.Flags().StringVar(&connectionID, "connection-id", "", "Connection ID from 'connect' (required)")
	cmd.Flags().StringVar(&table, "table", "", "Target table (required)")
	cmd.Flags().StringArrayVar(&pairs, "map", nil, "Column mapping FILE_COLUMN=TABLE_COLUMN (repeatable, required)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Wait for the import to finish")
	opts.register(cmd)
	cmd.MarkFlagRequired("file-id")
	cmd.MarkFlagRequired("connection-id")
	cmd.MarkFlagRequired("map")

	return cmd
}

// checkMapping проверяет mapping, предупреждает о повторных целях
// и возвращает mapping без колонок без цели.
func checkMapping(app *App, m domain.ColumnMapping, fileColumns, tableColumns []string) (domain.ColumnMapping, error) {
	if err := validation.ColumnMapping(m, fileColumns, tableColumns); err != nil {
		return nil, err
	}

	if dupes := validation.DuplicateTargets(m); len(dupes) > 0 {
		if app.Config.Import.UniqueTargets {
			return nil, validation.UniqueTargets(m)
		}
		app.Out.Warn(fmt.Sprintf("database columns mapped more than once: %s", strings.Join(dupes, ", ")))
	}

	final := m.WithoutEmpty()
	if err := validation.ColumnMapping(final, fileColumns, tableColumns); err != nil {
		return nil, err
	}
	return final, nil
}

func newImportStatusCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status IMPORT_ID",
		Short: "Show the status of an import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			status, err := app.Client.ImportStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			app.Out.Print(statusHeaders(), [][]string{statusRow(status)}, status)
			return nil
		},
	}
}

func newImportCancelCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel IMPORT_ID",
		Short: "Cancel a running import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			if err := app.Client.CancelImport(cmd.Context(), args[0]); err != nil {
				return err
			}

			app.Out.Success(fmt.Sprintf("Import cancelled: %s", args[0]))
			return nil
		},
	}
}

func newImportHistoryCmd(appFn func() *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			records, err := app.Client.ImportHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "PROGRESS", "PROCESSED", "TOTAL", "STARTED", "COMPLETED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.ID,
					r.State.String(),
					strconv.Itoa(r.Progress) + "%",
					strconv.Itoa(r.ProcessedRows),
					strconv.Itoa(r.TotalRows),
					formatTime(r.StartedAt),
					formatTime(r.CompletedAt),
				}
			}

			app.Out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", client.DefaultHistoryLimit, "Maximum number of records")

	return cmd
}

func newImportWatchCmd(appFn func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch IMPORT_ID",
		Short: "Follow an import until it finishes (Ctrl+C cancels it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFn()

			status, err := watchImport(cmd.Context(), app, args[0])
			return reportFinal(app, status, err)
		},
	}
}

// watchImport опрашивает статус importID до финального статуса.
// По SIGINT отправляет отмену и возвращает статус после неё.
func watchImport(ctx context.Context, app *App, importID string) (*domain.ImportStatus, error) {
	bar := app.Out.Progress("Importing")

	var mu sync.Mutex
	var last *domain.ImportStatus

	p, err := poller.New(poller.Config{
		Source:               app.Client,
		Clock:                app.Clock,
		Interval:             app.Config.Poll.Interval,
		MaxConsecutiveErrors: app.Config.Poll.MaxErrors,
		OnStatus: func(_ string, s *domain.ImportStatus) {
			mu.Lock()
			last = s
			mu.Unlock()
			bar.Set(s.Progress)
		},
		OnError: func(id string, err error) {
			app.Logger.Warn("status check failed", "import_id", id, "error", err)
		},
		Logger:  app.Logger,
		Metrics: app.Metrics,
	})
	if err != nil {
		return nil, err
	}

	sigCtx, stop := signalContext(ctx)
	defer stop()

	task := p.Start(ctx, importID)

	select {
	case <-task.Done():
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			p.Stop()
			bar.Exit()
			return nil, ctx.Err()
		}
		return cancelImport(ctx, app, p, importID, bar.Exit)
	}

	mu.Lock()
	status := last
	mu.Unlock()

	if status != nil && status.State == domain.ImportStateCompleted {
		bar.Finish()
	} else {
		bar.Exit()
	}
	return status, task.Err()
}

// cancelImport отменяет import после прерывания пользователем.
func cancelImport(ctx context.Context, app *App, p *poller.Poller, importID string, done func() error) (*domain.ImportStatus, error) {
	done()
	app.Out.Warn("interrupted, cancelling import " + importID)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if err := p.Cancel(cctx, importID); err != nil {
		return nil, err
	}
	app.Out.Success(fmt.Sprintf("Import cancelled: %s", importID))

	return app.Client.ImportStatus(cctx, importID)
}

// reportFinal выводит итоговый статус. Неуспешный import — ошибка команды.
func reportFinal(app *App, status *domain.ImportStatus, err error) error {
	if err != nil {
		return err
	}
	if status == nil {
		return fmt.Errorf("import finished without status")
	}

	app.Out.Print(statusHeaders(), [][]string{statusRow(status)}, status)

	if status.State == domain.ImportStateFailed {
		return fmt.Errorf("import %s failed: %s", status.ID, status.Message)
	}
	if status.State == domain.ImportStateCompleted {
		app.Out.Success(fmt.Sprintf("Imported %d rows in %s", status.ProcessedRows, status.Duration().Round(time.Millisecond)))
	}
	return nil
}
