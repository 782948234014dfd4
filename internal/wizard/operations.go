package wizard

import (
	"context"
	"errors"

	"github.com/shaiso/Importer/internal/client"
	"github.com/shaiso/Importer/internal/domain"
	"github.com/shaiso/Importer/internal/poller"
	"github.com/shaiso/Importer/internal/telemetry"
	"github.com/shaiso/Importer/internal/validation"
)

// --- Connect ---

// Connect проверяет параметры, при наличии Prober проверяет БД напрямую,
// тестирует подключение через backend и переходит на шаг Upload.
func (s *Session) Connect(ctx context.Context, creds domain.ConnectionCredentials) (*domain.Connection, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	gen, err := s.begin("connect", domain.StepConnect)
	if err != nil {
		return nil, err
	}

	if err := validation.Connection(creds); err != nil {
		return nil, err
	}

	if s.prober != nil {
		if err := s.prober.Probe(ctx, creds); err != nil {
			s.logger.Warn("preflight failed", "host", creds.Host, "error", err)
			return nil, s.fail(gen, err)
		}
	}

	conn, err := s.backend.TestConnection(ctx, creds)
	if err != nil {
		return nil, s.fail(gen, err)
	}

	telemetry.WithConnectionID(s.logger, conn.ID).Info("connected",
		"host", conn.Host,
		"database", conn.Database,
	)

	if err := s.advance(ctx, gen, domain.StepConnect, conn); err != nil {
		return conn, err
	}
	return conn, nil
}

// --- Upload ---

// Upload проверяет метаданные файла, загружает его и переходит на шаг
// SelectTable. Прогресс отправки доступен через Snapshot.
func (s *Session) Upload(ctx context.Context, src FileSource) (*domain.UploadedFile, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	gen, err := s.begin("upload", domain.StepUpload)
	if err != nil {
		return nil, err
	}

	err = validation.File(validation.FileInfo{
		Name:     src.Name,
		Size:     src.Size,
		MIMEType: src.MIMEType,
	})
	if err != nil {
		return nil, err
	}

	s.setUploadProgress(gen, 0)

	file, err := s.backend.UploadFile(ctx, client.FileUpload{
		Name:     src.Name,
		Size:     src.Size,
		MIMEType: src.MIMEType,
		Reader:   src.Reader,
		OnProgress: func(percent int) {
			s.setUploadProgress(gen, percent)
			if src.OnProgress != nil {
				src.OnProgress(percent)
			}
		},
	})
	if err != nil {
		s.setUploadProgress(gen, 0)
		return nil, s.fail(gen, err)
	}

	s.logger.Info("file uploaded",
		"file_id", file.ID,
		"name", file.Name,
		"rows", file.RowCount,
		"columns", len(file.Columns()),
	)

	if err := s.advance(ctx, gen, domain.StepUpload, file); err != nil {
		return file, err
	}
	return file, nil
}

func (s *Session) setUploadProgress(gen uint64, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.uploadProgress = percent
	}
}

// --- Select table ---

// RefreshTables заново запрашивает список таблиц текущего подключения.
func (s *Session) RefreshTables(ctx context.Context) ([]string, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	s.mu.Lock()
	if err := s.checkLocked("refresh tables", s.gen); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.conn == nil {
		err := stateError("refresh tables", s.step, ErrPrecondition, "connection is required")
		s.mu.Unlock()
		return nil, err
	}
	gen, connID := s.gen, s.conn.ID
	s.lastErr = ""
	s.mu.Unlock()

	return s.loadTables(ctx, gen, connID)
}

// SelectTable получает схему таблицы и переходит на шаг MapColumns.
// При выборе другой таблицы mapping строится заново.
func (s *Session) SelectTable(ctx context.Context, table string) (*domain.TableSchema, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	gen, err := s.begin("select table", domain.StepSelectTable)
	if err != nil {
		return nil, err
	}

	if err := validation.TableName(table); err != nil {
		return nil, err
	}

	s.mu.Lock()
	connID := s.conn.ID
	s.mu.Unlock()

	schema, err := s.backend.TableSchema(ctx, connID, table)
	if err != nil {
		return nil, s.fail(gen, err)
	}

	if err := s.advance(ctx, gen, domain.StepSelectTable, TableSelection{Name: table, Schema: schema}); err != nil {
		return schema, err
	}
	return schema.Clone(), nil
}

// --- Map columns ---

// SetColumn задаёт колонку таблицы для колонки файла. Пустая table
// оставляет колонку выбранной, но без цели.
func (s *Session) SetColumn(fileColumn, tableColumn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked("set column"); err != nil {
		return err
	}
	s.mapping[fileColumn] = tableColumn
	return nil
}

// RemoveColumn исключает колонку файла из mapping.
func (s *Session) RemoveColumn(fileColumn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked("remove column"); err != nil {
		return err
	}
	delete(s.mapping, fileColumn)
	return nil
}

// SetOptions задаёт параметры import. Проверка выполняется при старте.
func (s *Session) SetOptions(opts domain.ImportOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked("set options"); err != nil {
		return err
	}
	s.options = opts
	return nil
}

func (s *Session) editableLocked(op string) error {
	if err := s.checkLocked(op, s.gen); err != nil {
		return err
	}
	if s.step != domain.StepMapColumns {
		return stateError(op, s.step, ErrWrongStep, "expected "+domain.StepMapColumns.String())
	}
	if s.starting {
		return stateError(op, s.step, ErrImportInFlight, "")
	}
	return nil
}

// --- Import ---

// StartImport проверяет mapping и параметры, запускает import на backend,
// переходит на шаг Import и начинает poll статуса.
//
// Колонки без цели не отправляются. При ошибке backend сессия остаётся
// на шаге MapColumns.
func (s *Session) StartImport(ctx context.Context) (*domain.ImportStatus, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	const op = "start import"

	s.mu.Lock()
	if err := s.checkLocked(op, s.gen); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.starting || (s.step == domain.StepImport && s.status != nil && !s.status.IsFinished()) {
		err := stateError(op, s.step, ErrImportInFlight, "")
		s.mu.Unlock()
		return nil, err
	}
	if s.step != domain.StepMapColumns {
		err := stateError(op, s.step, ErrWrongStep, "expected "+domain.StepMapColumns.String())
		s.mu.Unlock()
		return nil, err
	}

	gen := s.gen
	m := s.mapping.Clone()
	fileCols := s.file.Columns()
	tableCols := s.schema.Names()
	opts := s.options
	req := client.StartImportRequest{
		FileID:       s.file.ID,
		ConnectionID: s.conn.ID,
		TableName:    s.table,
		Options:      opts,
	}
	fileName := s.file.Name
	s.lastErr = ""
	s.starting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if gen == s.gen {
			s.starting = false
		}
		s.mu.Unlock()
	}()

	final, err := s.finalizeMapping(m, fileCols, tableCols)
	if err != nil {
		return nil, err
	}
	if err := validation.ImportOptions(opts); err != nil {
		return nil, err
	}
	req.ColumnMapping = final

	resp, err := s.backend.StartImport(ctx, req)
	if err != nil {
		return nil, s.fail(gen, err)
	}

	logger := telemetry.WithImportID(s.logger, resp.ImportID)

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		// сессию сбросили, пока шёл запрос: import никому не нужен
		logger.Warn("session reset during import start, cancelling import")
		if err := s.backend.CancelImport(context.WithoutCancel(ctx), resp.ImportID); err != nil {
			logger.Warn("failed to cancel orphaned import", "error", err)
		}
		return nil, stateError(op, domain.StepMapColumns, ErrPrecondition, "session was reset")
	}

	s.mapping = final
	s.step = domain.StepImport
	s.importID = resp.ImportID
	s.status = domain.NewPendingStatus(resp.ImportID, resp.TotalRows, s.clock.Now())
	// poll запускается под блокировкой, чтобы Reset не пропустил задачу
	s.task = s.poller.Start(s.baseCtx, resp.ImportID)
	status := s.status.Clone()
	task := s.task
	s.mu.Unlock()

	go s.watch(gen, task)

	s.transitioned(domain.StepImport)
	s.metrics.ObserveImport(string(domain.ImportStatePending))
	logger.Info("import started",
		"table", req.TableName,
		"file", fileName,
		"columns", len(final),
		"total_rows", resp.TotalRows,
		"if_exists", opts.IfExists,
		"batch_size", opts.BatchSize,
	)

	s.publish(ctx, domain.ImportEvent{
		Type:      domain.EventImportStarted,
		ImportID:  resp.ImportID,
		SessionID: s.id,
		Table:     req.TableName,
		FileName:  fileName,
		Status:    status.Clone(),
	})

	if s.onStatus != nil {
		s.onStatus(status.Clone())
	}
	return status, nil
}

// finalizeMapping проверяет mapping и убирает колонки без цели.
func (s *Session) finalizeMapping(m domain.ColumnMapping, fileCols, tableCols []string) (domain.ColumnMapping, error) {
	if err := validation.ColumnMapping(m, fileCols, tableCols); err != nil {
		return nil, err
	}
	if s.uniqueTargets {
		if err := validation.UniqueTargets(m); err != nil {
			return nil, err
		}
	}

	final := m.WithoutEmpty()
	// после удаления пустых целей mapping может оказаться пустым
	if err := validation.ColumnMapping(final, fileCols, tableCols); err != nil {
		return nil, err
	}
	return final, nil
}

// Cancel отменяет выполняющийся import. Poll прекращается, даже если
// запрос отмены завершился ошибкой. После подтверждения отмены статус
// сессии становится cancelled.
func (s *Session) Cancel(ctx context.Context) error {
	ctx = telemetry.WithLogger(ctx, s.logger)
	const op = "cancel"

	s.mu.Lock()
	if err := s.checkLocked(op, s.gen); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.step != domain.StepImport || s.importID == "" {
		err := stateError(op, s.step, ErrWrongStep, "no import to cancel")
		s.mu.Unlock()
		return err
	}
	if s.status != nil && s.status.IsFinished() {
		err := stateError(op, s.step, ErrPrecondition, "import already finished")
		s.mu.Unlock()
		return err
	}
	gen, importID := s.gen, s.importID
	s.lastErr = ""
	s.mu.Unlock()

	if err := s.poller.Cancel(ctx, importID); err != nil {
		return s.fail(gen, err)
	}

	s.mu.Lock()
	var cancelled *domain.ImportStatus
	if gen == s.gen && s.status != nil {
		cancelled = s.status.Clone()
		cancelled.State = domain.ImportStateCancelled
		cancelled.Message = "Import cancelled"
		now := s.clock.Now()
		cancelled.CompletedAt = &now
	}
	s.mu.Unlock()

	if cancelled != nil {
		s.applyStatus(importID, cancelled)
	}
	return nil
}

// CheckStatus запрашивает статус import вручную.
//
// Не синхронизирован с автоматическим poll: при одновременном вызове
// применяется тот ответ, который пришёл последним.
func (s *Session) CheckStatus(ctx context.Context) (*domain.ImportStatus, error) {
	ctx = telemetry.WithLogger(ctx, s.logger)
	const op = "check status"

	s.mu.Lock()
	if err := s.checkLocked(op, s.gen); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.importID == "" {
		err := stateError(op, s.step, ErrWrongStep, "no import started")
		s.mu.Unlock()
		return nil, err
	}
	gen, importID := s.gen, s.importID
	s.mu.Unlock()

	status, err := s.backend.ImportStatus(ctx, importID)
	if err != nil {
		return nil, s.fail(gen, err)
	}

	s.applyStatus(importID, status)
	return status.Clone(), nil
}

// Wait ждёт завершения poll текущего import и возвращает последний
// статус. Ошибка — причина остановки poll или ошибка ctx.
func (s *Session) Wait(ctx context.Context) (*domain.ImportStatus, error) {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()

	if task == nil {
		return nil, stateError("wait", s.Step(), ErrWrongStep, "no import started")
	}

	select {
	case <-task.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	status := s.status.Clone()
	s.mu.Unlock()

	return status, task.Err()
}

// --- poll callbacks ---

// applyStatus применяет новый статус. Обновление принимается, только
// если оно относится к активному import этой сессии (Reset очищает
// importID) и текущий статус ещё не финальный.
func (s *Session) applyStatus(importID string, status *domain.ImportStatus) {
	s.mu.Lock()
	if s.closed || importID != s.importID || s.status == nil || s.status.IsFinished() {
		s.mu.Unlock()
		return
	}

	s.status = status.Clone()
	if s.status.ID == "" {
		s.status.ID = importID
	}
	applied := s.status.Clone()
	table, fileName := s.table, ""
	if s.file != nil {
		fileName = s.file.Name
	}
	s.mu.Unlock()

	if s.onStatus != nil {
		s.onStatus(applied.Clone())
	}

	if !applied.IsFinished() {
		return
	}

	s.metrics.ObserveImport(string(applied.State))
	telemetry.WithImportID(s.logger, importID).Info("import finished",
		"status", applied.State,
		"processed_rows", applied.ProcessedRows,
		"failed_rows", applied.FailedRows,
		"duration", applied.Duration(),
	)

	s.publish(s.baseCtx, domain.ImportEvent{
		Type:      domain.EventImportFinished,
		ImportID:  importID,
		SessionID: s.id,
		Table:     table,
		FileName:  fileName,
		Status:    applied,
	})
}

// pollFailed записывает ошибку poll как ошибку сессии.
func (s *Session) pollFailed(importID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || importID != s.importID {
		return
	}
	s.lastErr = errorDetail(err)
}

// watch ждёт завершения задачи poll и сообщает об исчерпании лимита ошибок.
func (s *Session) watch(gen uint64, task *poller.Task) {
	<-task.Done()

	if !errors.Is(task.Err(), poller.ErrRetryExhausted) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.task == task {
		s.lastErr = "Lost contact with the import: " + s.lastErr
	}
	s.logger.Error("status polling stopped", "import_id", task.ImportID(), "error", task.Err())
}

func (s *Session) publish(ctx context.Context, ev domain.ImportEvent) {
	if s.notifier == nil {
		return
	}

	ev.OccurredAt = s.clock.Now().UTC()
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish import event",
			"type", ev.Type,
			"import_id", ev.ImportID,
			"error", err,
		)
	}
}
