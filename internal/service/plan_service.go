package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/market-data-sync/internal/calendar"
	"github.com/yourorg/market-data-sync/internal/config"
	"github.com/yourorg/market-data-sync/internal/model"
)

// gapDetector is the slice of the gap service the plan builder needs
type gapDetector interface {
	MissingTradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)
	MissingInstrumentsForDay(ctx context.Context, date time.Time) ([]model.Instrument, error)
	LowCoverage(ctx context.Context, start, end time.Time, threshold float64, limit int) ([]model.InstrumentCoverage, error)
}

// instrumentCounter reports registry sizes for run analysis
type instrumentCounter interface {
	Counts(ctx context.Context) (int, int, error)
}

// PlanService turns detected gaps into ordered download plans
type PlanService struct {
	gaps        gapDetector
	instruments instrumentCounter
	calendar    *calendar.Calendar
	cfg         config.DownloadConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewPlanService creates a new plan service
func NewPlanService(gaps gapDetector, instruments instrumentCounter, cal *calendar.Calendar, cfg config.DownloadConfig, logger *zap.Logger) *PlanService {
	return &PlanService{
		gaps:        gaps,
		instruments: instruments,
		calendar:    cal,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Build constructs a download plan for the requested mode. Tasks are ordered
// high priority first with relative order preserved, then renumbered from 1.
func (s *PlanService) Build(ctx context.Context, req model.PlanRequest) (*model.DownloadPlan, error) {
	maxUnits := req.MaxUnits
	if maxUnits <= 0 {
		maxUnits = s.cfg.DefaultMaxUnits
	}

	today := calendar.Normalize(s.now())

	var (
		tasks []model.DownloadTask
		err   error
	)
	switch req.Mode {
	case model.ModeMissingDays:
		start, perr := s.startDate()
		if perr != nil {
			return nil, perr
		}
		tasks, err = s.buildDayTasks(ctx, start, today, maxUnits, req.PrioritySymbols)
	case model.ModeRecentWindow:
		windowStart := today.AddDate(0, 0, -maxUnits)
		tasks, err = s.buildDayTasks(ctx, windowStart, today, maxUnits, req.PrioritySymbols)
	case model.ModeLowCoverageInstruments:
		start, perr := s.startDate()
		if perr != nil {
			return nil, perr
		}
		tasks, err = s.buildInstrumentTasks(ctx, start, today, req.PrioritySymbols)
	default:
		return nil, fmt.Errorf("unknown plan mode: %s", req.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s plan: %w", req.Mode, err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority == model.PriorityHigh && tasks[j].Priority != model.PriorityHigh
	})
	for i := range tasks {
		tasks[i].ID = i + 1
	}

	plan := &model.DownloadPlan{
		ID:        uuid.New().String(),
		Mode:      req.Mode,
		CreatedAt: s.now(),
		Tasks:     tasks,
		Stats:     planStats(tasks, s.cfg.PerCallEstimate),
	}

	s.logger.Info("Built download plan",
		zap.String("plan_id", plan.ID),
		zap.String("mode", string(plan.Mode)),
		zap.Int("tasks", plan.Stats.TotalTasks),
		zap.Int("estimated_calls", plan.Stats.EstimatedCalls),
		zap.String("priority", string(plan.Stats.Priority)))

	return plan, nil
}

// buildDayTasks emits one by_day task per missing trading day in the range,
// truncated to the most recent maxUnits days, newest first.
func (s *PlanService) buildDayTasks(ctx context.Context, start, end time.Time, maxUnits int, prioritySymbols []string) ([]model.DownloadTask, error) {
	missing, err := s.gaps.MissingTradingDays(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(missing) > maxUnits {
		missing = missing[len(missing)-maxUnits:]
	}

	priority := symbolSet(prioritySymbols)

	var tasks []model.DownloadTask
	for i := len(missing) - 1; i >= 0; i-- {
		date := missing[i]
		instruments, err := s.gaps.MissingInstrumentsForDay(ctx, date)
		if err != nil {
			return nil, err
		}

		p := model.PriorityNormal
		for _, inst := range instruments {
			if _, ok := priority[inst.Symbol]; ok {
				p = model.PriorityHigh
				break
			}
		}

		tasks = append(tasks, model.DownloadTask{
			Kind:           model.TaskByDay,
			TradeDate:      date,
			Priority:       p,
			EstimatedUnits: len(instruments),
			Status:         model.TaskPending,
		})
	}

	return tasks, nil
}

// buildInstrumentTasks emits one by_instrument task per low-coverage
// instrument, worst coverage first.
func (s *PlanService) buildInstrumentTasks(ctx context.Context, start, end time.Time, prioritySymbols []string) ([]model.DownloadTask, error) {
	low, err := s.gaps.LowCoverage(ctx, start, end, s.cfg.LowCoverageRate, s.cfg.LowCoverageLimit)
	if err != nil {
		return nil, err
	}

	priority := symbolSet(prioritySymbols)

	var tasks []model.DownloadTask
	for _, cov := range low {
		p := model.PriorityNormal
		if _, ok := priority[cov.Symbol]; ok {
			p = model.PriorityHigh
		}

		missing := cov.ExpectedDays - cov.ActualDays
		if missing < 0 {
			missing = 0
		}

		// Fetch from the instrument's listing date onward, never from
		// before it existed.
		from := start
		if cov.ListDate.After(from) {
			from = calendar.Normalize(cov.ListDate)
		}

		tasks = append(tasks, model.DownloadTask{
			Kind:           model.TaskByInstrument,
			Symbol:         cov.Symbol,
			StartDate:      &from,
			Priority:       p,
			EstimatedUnits: missing,
			Status:         model.TaskPending,
		})
	}

	return tasks, nil
}

// Analyze reports the scope of work a full catch-up run would face without
// building a plan.
func (s *PlanService) Analyze(ctx context.Context) (*model.DownloadAnalysis, error) {
	start, err := s.startDate()
	if err != nil {
		return nil, err
	}
	today := calendar.Normalize(s.now())

	missing, err := s.gaps.MissingTradingDays(ctx, start, today)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze gaps: %w", err)
	}

	total, active, err := s.instruments.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count instruments: %w", err)
	}

	sample := make([]string, 0, 10)
	for i := len(missing) - 1; i >= 0 && len(sample) < 10; i-- {
		sample = append(sample, missing[i].Format("2006-01-02"))
	}

	calls := len(missing)
	analysis := &model.DownloadAnalysis{
		AnalyzedAt:        s.now(),
		StartDate:         start,
		EndDate:           today,
		TotalInstruments:  total,
		ActiveInstruments: active,
		MissingDays:       len(missing),
		MissingDaysSample: sample,
		MissingRecords:    len(missing) * active,
		EstimatedCalls:    calls,
		EstimatedDuration: time.Duration(calls) * s.cfg.PerCallEstimate,
		Priority:          priorityForCount(calls),
	}

	return analysis, nil
}

func (s *PlanService) startDate() (time.Time, error) {
	start, err := time.Parse("2006-01-02", s.cfg.DefaultStartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid default start date %q: %w", s.cfg.DefaultStartDate, err)
	}
	return start, nil
}

func planStats(tasks []model.DownloadTask, perCall time.Duration) model.PlanStats {
	calls := 0
	for _, t := range tasks {
		if t.Kind == model.TaskByDay {
			calls++
		}
	}

	return model.PlanStats{
		TotalTasks:        len(tasks),
		EstimatedCalls:    calls,
		EstimatedDuration: time.Duration(calls) * perCall,
		Priority:          priorityForCount(len(tasks)),
	}
}

func priorityForCount(n int) model.PlanPriority {
	switch {
	case n > 20:
		return model.PlanPriorityHigh
	case n > 10:
		return model.PlanPriorityMedium
	default:
		return model.PlanPriorityLow
	}
}

func symbolSet(symbols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return set
}
