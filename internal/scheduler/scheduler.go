package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/calendar"
	"github.com/yourorg/market-data-sync/internal/config"
	"github.com/yourorg/market-data-sync/internal/model"
)

// planRunner is the build+execute unit the scheduler triggers
type planRunner interface {
	Build(ctx context.Context, req model.PlanRequest) (*model.DownloadPlan, error)
}

// planExecutor runs a built plan
type planExecutor interface {
	Execute(ctx context.Context, plan *model.DownloadPlan, dryRun bool) (*model.ExecutionResult, error)
}

// Scheduler triggers a recent-window catch-up run on a cron cadence. Runs
// never overlap; a trigger that fires while a run is in progress is dropped.
type Scheduler struct {
	plans    planRunner
	executor planExecutor
	calendar *calendar.Calendar
	cfg      config.SchedulerConfig
	logger   *zap.Logger
	cron     *cron.Cron
	running  sync.Mutex
	now      func() time.Time
}

// New creates a new scheduler
func New(plans planRunner, executor planExecutor, cal *calendar.Calendar, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		plans:    plans,
		executor: executor,
		calendar: cal,
		cfg:      cfg,
		logger:   logger,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the cron entry and begins firing. Returns an error only
// when the configured cron expression is invalid.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Cron, func() {
		s.trigger(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("cron", s.cfg.Cron),
		zap.Int("window_days", s.cfg.WindowDays))
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running.Lock()
	s.running.Unlock()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) trigger(ctx context.Context) {
	if s.cfg.TradingDaysOnly && !s.calendar.IsTradingDay(s.now()) {
		s.logger.Debug("Skipping scheduled run on non-trading day")
		return
	}

	if !s.running.TryLock() {
		s.logger.Warn("Skipping scheduled run, previous run still in progress")
		return
	}
	defer s.running.Unlock()

	s.RunOnce(ctx)
}

// RunOnce builds and executes one recent-window plan. Exposed so a run can
// also be kicked off outside the cron cadence.
func (s *Scheduler) RunOnce(ctx context.Context) {
	plan, err := s.plans.Build(ctx, model.PlanRequest{
		Mode:     model.ModeRecentWindow,
		MaxUnits: s.cfg.WindowDays,
	})
	if err != nil {
		s.logger.Error("Scheduled plan build failed", zap.Error(err))
		return
	}

	if len(plan.Tasks) == 0 {
		s.logger.Info("Scheduled run found no gaps", zap.String("plan_id", plan.ID))
		return
	}

	result, err := s.executor.Execute(ctx, plan, false)
	if err != nil {
		s.logger.Error("Scheduled run failed", zap.Error(err))
		return
	}

	s.logger.Info("Scheduled run finished",
		zap.String("run_id", result.RunID),
		zap.Int("completed", result.CompletedTasks),
		zap.Int("failed", result.FailedTasks),
		zap.Float64("success_rate", result.SuccessRate))
}
