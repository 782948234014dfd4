package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/filemeta"
	"github.com/shaiso/Importer/internal/poller"
	"github.com/shaiso/Importer/internal/validation"
	"github.com/shaiso/Importer/internal/wizard"
)

// wizardFlags — флаги команды wizard.
type wizardFlags struct {
	conn      connFlags
	opts      optionFlags
	preflight bool
	table     string
	pairs     []string
	skip      []string
	detach    bool
}

// NewWizardCmd создаёт команду wizard: весь сценарий импорта за один запуск.
func NewWizardCmd(appFn func() *App) *cobra.Command {
	var flags wizardFlags

	cmd := &cobra.Command{
		Use:   "wizard PATH",
		Short: "Connect, upload, map and import a file in one go (Ctrl+C cancels the import)",
		Long: `Runs the import wizard non-interactively:

  1. Connect Database   test the connection (--host, --database, ...)
  2. Upload File        upload PATH (CSV or Excel)
  3. Select Table       pick --table
  4. Map Columns        auto-map by name, then apply --map and --skip
  5. Import             start the import and follow its progress`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd.Context(), appFn(), args[0], flags)
		},
	}

	flags.conn.register(cmd)
	flags.opts.register(cmd)
	cmd.Flags().BoolVar(&flags.preflight, "preflight", false, "Check the database directly before asking the backend")
	cmd.Flags().StringVar(&flags.table, "table", "", "Target table (required)")
	cmd.Flags().StringArrayVar(&flags.pairs, "map", nil, "Override mapping FILE_COLUMN=TABLE_COLUMN (repeatable)")
	cmd.Flags().StringArrayVar(&flags.skip, "skip", nil, "File column to leave out of the import (repeatable)")
	cmd.Flags().BoolVar(&flags.detach, "detach", false, "Return right after the import has started")
	cmd.MarkFlagRequired("table")

	return cmd
}

// statusBar передаёт прогресс import в progress bar.
// Bar создаётся при старте import, статусы до этого игнорируются.
type statusBar struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func (b *statusBar) attach(bar *progressbar.ProgressBar) {
	b.mu.Lock()
	b.bar = bar
	b.mu.Unlock()
}

func (b *statusBar) update(s *domain.ImportStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		b.bar.Set(s.Progress)
	}
}

func (b *statusBar) close(s *domain.ImportStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	if s != nil && s.State == domain.ImportStateCompleted {
		b.bar.Finish()
	} else {
		b.bar.Exit()
	}
	b.bar = nil
}

func runWizard(ctx context.Context, app *App, path string, flags wizardFlags) error {
	out := app.Out
	cfg := app.Config
	var bar statusBar

	session, err := wizard.New(wizard.Config{
		Backend:       app.Client,
		Prober:        app.Prober(flags.preflight),
		Notifier:      app.Notifier,
		Clock:         app.Clock,
		PollInterval:  cfg.Poll.Interval,
		MaxPollErrors: cfg.Poll.MaxErrors,
		UniqueTargets: cfg.Import.UniqueTargets,
		Options:       cfg.Options(),
		OnStatus:      bar.update,
		Logger:        app.Logger,
		Metrics:       app.Metrics,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	step := func(s domain.Step) {
		out.Success(fmt.Sprintf("[%d/%d] %s", int(s)+1, domain.StepCount, s))
	}

	// 1. Connect
	step(domain.StepConnect)
	conn, err := session.Connect(ctx, flags.conn.credentials())
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Connected to %s/%s (%s)", conn.Host, conn.Database, conn.ID))

	// 2. Upload
	step(domain.StepUpload)
	file, err := wizardUpload(ctx, app, session, path)
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Uploaded %s: %d rows, %d columns", file.Name, file.RowCount, len(file.Columns())))

	// 3. Select table
	step(domain.StepSelectTable)
	tables := session.Snapshot().Tables
	if !slices.Contains(tables, flags.table) {
		return fmt.Errorf("table %q not found (available: %s)", flags.table, strings.Join(tables, ", "))
	}
	if _, err := session.SelectTable(ctx, flags.table); err != nil {
		return err
	}

	// 4. Map columns
	step(domain.StepMapColumns)
	if err := applyOverrides(session, flags); err != nil {
		return err
	}
	if err := session.SetOptions(flags.opts.options(session.Snapshot().Options)); err != nil {
		return err
	}
	printMapping(out, session.Snapshot())

	// 5. Import
	step(domain.StepImport)
	started, err := session.StartImport(ctx)
	if err != nil {
		return err
	}
	out.Success(fmt.Sprintf("Import started: %s (%d rows)", started.ID, started.TotalRows))

	if flags.detach {
		out.Print(statusHeaders(), [][]string{statusRow(started)}, started)
		if session.Snapshot().ImportRunning() {
			out.Success("Follow the import with: importer import watch " + started.ID)
		}
		return nil
	}

	bar.attach(out.Progress("Importing"))
	status, err := waitSession(ctx, app, session, started.ID)
	bar.close(status)
	if errors.Is(err, poller.ErrRetryExhausted) {
		return fmt.Errorf("lost contact with import %s: %w", started.ID, err)
	}
	return reportFinal(app, status, err)
}

// wizardUpload загружает файл в рамках сессии.
func wizardUpload(ctx context.Context, app *App, session *wizard.Session, path string) (*domain.UploadedFile, error) {
	info, err := filemeta.Inspect(path, 0)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bar := app.Out.Progress("Uploading " + info.Name)
	file, err := session.Upload(ctx, wizard.FileSource{
		Name:     info.Name,
		Size:     info.Size,
		MIMEType: info.MIMEType,
		Reader:   f,
		OnProgress: func(percent int) {
			bar.Set(percent)
		},
	})
	if file == nil {
		bar.Exit()
		return nil, err
	}
	bar.Finish()

	// файл загружен, но список таблиц получить не удалось
	if err != nil {
		return nil, err
	}
	return file, nil
}

// applyOverrides применяет --map и --skip поверх auto-mapping.
func applyOverrides(session *wizard.Session, flags wizardFlags) error {
	overrides, err := parseMappings(flags.pairs)
	if err != nil {
		return err
	}

	for _, file := range overrides.Keys() {
		if err := session.SetColumn(file, overrides[file]); err != nil {
			return err
		}
	}
	for _, file := range flags.skip {
		if err := session.RemoveColumn(file); err != nil {
			return err
		}
	}
	return nil
}

// printMapping выводит итоговый mapping и предупреждения.
func printMapping(out *Output, st wizard.State) {
	rows := make([][]string, 0, len(st.Mapping))
	for _, file := range st.Mapping.Keys() {
		target := st.Mapping[file]
		if target == "" {
			target = "(none)"
		}
		rows = append(rows, []string{file, target})
	}
	if !out.JSONMode() {
		out.Table([]string{"FILE_COLUMN", "TABLE_COLUMN"}, rows)
	}

	if unmapped := st.Unmapped(); len(unmapped) > 0 {
		out.Warn(fmt.Sprintf("file columns not imported: %s", strings.Join(unmapped, ", ")))
	}
	if dupes := validation.DuplicateTargets(st.Mapping); len(dupes) > 0 {
		out.Warn(fmt.Sprintf("database columns mapped more than once: %s", strings.Join(dupes, ", ")))
	}
}

// waitSession ждёт завершения import. По SIGINT отменяет import
// и возвращает статус после отмены.
func waitSession(ctx context.Context, app *App, session *wizard.Session, importID string) (*domain.ImportStatus, error) {
	sigCtx, stop := signalContext(ctx)
	defer stop()

	status, err := session.Wait(sigCtx)
	if err == nil || sigCtx.Err() == nil || ctx.Err() != nil {
		return status, err
	}

	app.Out.Warn("interrupted, cancelling import " + importID)

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()

	if err := session.Cancel(cctx); err != nil {
		return nil, err
	}
	app.Out.Success(fmt.Sprintf("Import cancelled: %s", importID))

	return session.CheckStatus(cctx)
}
