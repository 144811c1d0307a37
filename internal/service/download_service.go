package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/config"
	"github.com/yourorg/market-data-sync/internal/model"
	"github.com/yourorg/market-data-sync/internal/repository"
)

// marketGateway is the slice of the rate-limited gateway the executor needs
type marketGateway interface {
	FetchDailyQuotes(ctx context.Context, date time.Time) ([]model.DailyQuote, error)
	FetchSymbolHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.DailyQuote, error)
}

// quoteWriter persists fetched rows with conflict-tolerant inserts
type quoteWriter interface {
	BatchInsert(ctx context.Context, quotes []model.DailyQuote) (int, error)
}

// statusLedger records per-instrument download state
type statusLedger interface {
	Upsert(ctx context.Context, p repository.UpsertParams) (*model.StatusRecord, error)
}

// runStore persists run summaries
type runStore interface {
	InsertRun(ctx context.Context, result model.ExecutionResult) error
}

// RunPublisher announces finished runs to interested consumers. Optional.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, result model.ExecutionResult) error
}

// DownloadService executes download plans task by task. Tasks run strictly
// sequentially; a task failure is isolated and never aborts the run.
type DownloadService struct {
	gateway   marketGateway
	quotes    quoteWriter
	ledger    statusLedger
	runs      runStore
	publisher RunPublisher
	cfg       config.DownloadConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewDownloadService creates a new download service. publisher may be nil.
func NewDownloadService(gateway marketGateway, quotes quoteWriter, ledger statusLedger, runs runStore, publisher RunPublisher, cfg config.DownloadConfig, logger *zap.Logger) *DownloadService {
	return &DownloadService{
		gateway:   gateway,
		quotes:    quotes,
		ledger:    ledger,
		runs:      runs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs every task in plan order. Cancellation is checked between
// tasks only; an in-flight upstream call is allowed to complete and its
// result is kept. In dry-run mode nothing is fetched or written.
func (s *DownloadService) Execute(ctx context.Context, plan *model.DownloadPlan, dryRun bool) (*model.ExecutionResult, error) {
	result := &model.ExecutionResult{
		RunID:      uuid.New().String(),
		PlanID:     plan.ID,
		Mode:       plan.Mode,
		DryRun:     dryRun,
		StartedAt:  s.now(),
		TotalTasks: len(plan.Tasks),
	}

	s.logger.Info("Starting plan execution",
		zap.String("run_id", result.RunID),
		zap.String("plan_id", plan.ID),
		zap.Int("tasks", len(plan.Tasks)),
		zap.Bool("dry_run", dryRun))

	cancelled := false
	for i := range plan.Tasks {
		task := &plan.Tasks[i]

		if cancelled || ctx.Err() != nil {
			cancelled = true
			task.Status = model.TaskSkipped
			result.SkippedTasks++
			result.TaskResults = append(result.TaskResults, skippedResult(task))
			continue
		}

		var tr model.TaskResult
		if dryRun {
			tr = s.simulateTask(task)
		} else {
			tr = s.runTask(ctx, task)
			if s.cfg.TaskInterval > 0 && i < len(plan.Tasks)-1 {
				select {
				case <-time.After(s.cfg.TaskInterval):
				case <-ctx.Done():
					cancelled = true
				}
			}
		}

		switch tr.Status {
		case model.TaskCompleted, model.TaskSimulated:
			result.CompletedTasks++
		case model.TaskFailed:
			result.FailedTasks++
		case model.TaskSkipped:
			result.SkippedTasks++
		}
		result.RecordsWritten += tr.RecordsWritten
		result.CallsMade += tr.CallsMade
		result.TaskResults = append(result.TaskResults, tr)
	}

	result.FinishedAt = s.now()
	executed := result.CompletedTasks + result.FailedTasks
	if executed > 0 {
		result.SuccessRate = float64(result.CompletedTasks) / float64(executed) * 100
	}

	s.logger.Info("Finished plan execution",
		zap.String("run_id", result.RunID),
		zap.Int("completed", result.CompletedTasks),
		zap.Int("failed", result.FailedTasks),
		zap.Int("skipped", result.SkippedTasks),
		zap.Int("records_written", result.RecordsWritten),
		zap.Float64("success_rate", result.SuccessRate))

	if err := s.runs.InsertRun(ctx, *result); err != nil {
		s.logger.Error("Failed to persist run summary",
			zap.Error(err),
			zap.String("run_id", result.RunID))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRunCompleted(ctx, *result); err != nil {
			s.logger.Error("Failed to publish run event",
				zap.Error(err),
				zap.String("run_id", result.RunID))
		}
	}

	return result, nil
}

// simulateTask marks a task simulated without touching the upstream or the
// store. Estimated units stand in for fetched counts in the report.
func (s *DownloadService) simulateTask(task *model.DownloadTask) model.TaskResult {
	task.Status = model.TaskSimulated
	return model.TaskResult{
		TaskID:         task.ID,
		Kind:           task.Kind,
		Status:         model.TaskSimulated,
		TradeDate:      taskDate(task),
		Symbol:         task.Symbol,
		RecordsFetched: task.EstimatedUnits,
	}
}

func (s *DownloadService) runTask(ctx context.Context, task *model.DownloadTask) model.TaskResult {
	started := s.now()

	var (
		written int
		fetched int
		err     error
	)
	switch task.Kind {
	case model.TaskByDay:
		fetched, written, err = s.runDayTask(ctx, task.TradeDate)
	case model.TaskByInstrument:
		fetched, written, err = s.runInstrumentTask(ctx, task)
	}

	tr := model.TaskResult{
		TaskID:         task.ID,
		Kind:           task.Kind,
		TradeDate:      taskDate(task),
		Symbol:         task.Symbol,
		RecordsFetched: fetched,
		RecordsWritten: written,
		CallsMade:      1,
		Duration:       s.now().Sub(started),
	}

	if err != nil {
		task.Status = model.TaskFailed
		task.RetryCount++
		tr.Status = model.TaskFailed
		tr.ErrorMessage = err.Error()
		s.logger.Warn("Task failed",
			zap.Int("task_id", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.Error(err))
		return tr
	}

	task.Status = model.TaskCompleted
	tr.Status = model.TaskCompleted
	return tr
}

// runDayTask fetches one trading day for the whole market and folds the
// outcome into the ledger per instrument seen in the response.
func (s *DownloadService) runDayTask(ctx context.Context, date time.Time) (fetched, written int, err error) {
	quotes, err := s.gateway.FetchDailyQuotes(ctx, date)
	if err != nil {
		return 0, 0, err
	}

	written, err = s.quotes.BatchInsert(ctx, quotes)
	if err != nil {
		return len(quotes), 0, err
	}

	cleared := ""
	for _, q := range quotes {
		d := q.TradeDate
		if _, uerr := s.ledger.Upsert(ctx, repository.UpsertParams{
			Symbol:           q.Symbol,
			Status:           model.StatusCompleted,
			LastDownloadDate: &d,
			AddRecords:       1,
			ErrorMessage:     &cleared,
		}); uerr != nil {
			s.logger.Error("Failed to update status ledger",
				zap.Error(uerr),
				zap.String("symbol", q.Symbol))
		}
	}

	return len(quotes), written, nil
}

// runInstrumentTask backfills one instrument's history from the task's start
// bound, normally its listing date, and records the outcome, success or
// failure, in the ledger.
func (s *DownloadService) runInstrumentTask(ctx context.Context, task *model.DownloadTask) (fetched, written int, err error) {
	symbol := task.Symbol

	var start time.Time
	if task.StartDate != nil {
		start = *task.StartDate
	} else {
		start, err = time.Parse("2006-01-02", s.cfg.DefaultStartDate)
		if err != nil {
			return 0, 0, err
		}
	}
	end := s.now()

	if _, uerr := s.ledger.Upsert(ctx, repository.UpsertParams{
		Symbol: symbol,
		Status: model.StatusInProgress,
	}); uerr != nil {
		s.logger.Error("Failed to update status ledger",
			zap.Error(uerr),
			zap.String("symbol", symbol))
	}

	quotes, err := s.gateway.FetchSymbolHistory(ctx, symbol, start, end)
	if err != nil {
		msg := err.Error()
		if _, uerr := s.ledger.Upsert(ctx, repository.UpsertParams{
			Symbol:         symbol,
			Status:         model.StatusFailed,
			ErrorMessage:   &msg,
			IncrementRetry: true,
		}); uerr != nil {
			s.logger.Error("Failed to update status ledger",
				zap.Error(uerr),
				zap.String("symbol", symbol))
		}
		return 0, 0, err
	}

	written, err = s.quotes.BatchInsert(ctx, quotes)
	if err != nil {
		msg := err.Error()
		if _, uerr := s.ledger.Upsert(ctx, repository.UpsertParams{
			Symbol:         symbol,
			Status:         model.StatusFailed,
			ErrorMessage:   &msg,
			IncrementRetry: true,
		}); uerr != nil {
			s.logger.Error("Failed to update status ledger",
				zap.Error(uerr),
				zap.String("symbol", symbol))
		}
		return len(quotes), 0, err
	}

	var last *time.Time
	for i := range quotes {
		if last == nil || quotes[i].TradeDate.After(*last) {
			last = &quotes[i].TradeDate
		}
	}

	total := len(quotes)
	cleared := ""
	if _, uerr := s.ledger.Upsert(ctx, repository.UpsertParams{
		Symbol:           symbol,
		Status:           model.StatusCompleted,
		LastDownloadDate: last,
		TotalRecords:     &total,
		ErrorMessage:     &cleared,
	}); uerr != nil {
		s.logger.Error("Failed to update status ledger",
			zap.Error(uerr),
			zap.String("symbol", symbol))
	}

	return len(quotes), written, nil
}

func skippedResult(task *model.DownloadTask) model.TaskResult {
	return model.TaskResult{
		TaskID:    task.ID,
		Kind:      task.Kind,
		Status:    model.TaskSkipped,
		TradeDate: taskDate(task),
		Symbol:    task.Symbol,
	}
}

func taskDate(task *model.DownloadTask) *time.Time {
	if task.Kind != model.TaskByDay {
		return nil
	}
	d := task.TradeDate
	return &d
}
