package model

import (
	"time"
)

// DownloadStatus is the per-instrument download state kept in the status ledger
type DownloadStatus string

const (
	StatusPending    DownloadStatus = "pending"
	StatusInProgress DownloadStatus = "in_progress"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusPartial    DownloadStatus = "partial"
	StatusSkipped    DownloadStatus = "skipped"
)

// StatusRecord is one instrument's durable download state
type StatusRecord struct {
	Symbol           string         `json:"symbol" db:"symbol"`
	Status           DownloadStatus `json:"status" db:"status"`
	LastDownloadDate *time.Time     `json:"last_download_date,omitempty" db:"last_download_date"`
	TotalRecords     int            `json:"total_records" db:"total_records"`
	ErrorMessage     *string        `json:"error_message,omitempty" db:"error_message"`
	RetryCount       int            `json:"retry_count" db:"retry_count"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// TaskKind distinguishes the two shapes of download work
type TaskKind string

const (
	TaskByDay        TaskKind = "by_day"
	TaskByInstrument TaskKind = "by_instrument"
)

// TaskStatus is the lifecycle state of a single plan task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskSimulated TaskStatus = "simulated"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// TaskPriority orders tasks within a plan
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityNormal TaskPriority = "normal"
)

// DownloadTask is one discrete unit of download work. Tasks are transient;
// their outcome is folded into the status ledger and run statistics.
type DownloadTask struct {
	ID             int          `json:"task_id"`
	Kind           TaskKind     `json:"kind"`
	TradeDate      time.Time    `json:"trade_date,omitempty"`
	Symbol         string       `json:"symbol,omitempty"`
	StartDate      *time.Time   `json:"start_date,omitempty"`
	Priority       TaskPriority `json:"priority"`
	EstimatedUnits int          `json:"estimated_units"`
	Status         TaskStatus   `json:"status"`
	RetryCount     int          `json:"retry_count"`
}

// PlanMode selects how a download plan is built
type PlanMode string

const (
	ModeMissingDays            PlanMode = "missing_days"
	ModeRecentWindow           PlanMode = "recent_window"
	ModeLowCoverageInstruments PlanMode = "low_coverage_instruments"
)

// PlanPriority is the overall urgency label of a plan
type PlanPriority string

const (
	PlanPriorityHigh   PlanPriority = "high"
	PlanPriorityMedium PlanPriority = "medium"
	PlanPriorityLow    PlanPriority = "low"
)

// PlanStats aggregates a plan's estimated effort
type PlanStats struct {
	TotalTasks        int           `json:"total_tasks"`
	EstimatedCalls    int           `json:"estimated_calls"`
	EstimatedDuration time.Duration `json:"estimated_duration_seconds"`
	Priority          PlanPriority  `json:"priority"`
}

// DownloadPlan is an ordered list of tasks built once per run. Only task
// statuses change after construction.
type DownloadPlan struct {
	ID        string         `json:"plan_id"`
	Mode      PlanMode       `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
	Tasks     []DownloadTask `json:"tasks"`
	Stats     PlanStats      `json:"statistics"`
}

// PlanRequest is the API request to build a download plan
type PlanRequest struct {
	Mode            PlanMode `json:"mode" binding:"required,oneof=missing_days recent_window low_coverage_instruments"`
	MaxUnits        int      `json:"max_units" binding:"omitempty,min=1"`
	PrioritySymbols []string `json:"priority_symbols"`
}

// ExecuteRequest is the API request to build and run a plan
type ExecuteRequest struct {
	PlanRequest
	DryRun bool `json:"dry_run"`
}

// TaskResult records the outcome of a single executed task
type TaskResult struct {
	TaskID          int           `json:"task_id"`
	Kind            TaskKind      `json:"kind"`
	Status          TaskStatus    `json:"status"`
	TradeDate       *time.Time    `json:"trade_date,omitempty"`
	Symbol          string        `json:"symbol,omitempty"`
	RecordsFetched  int           `json:"records_fetched"`
	RecordsWritten  int           `json:"records_written"`
	CallsMade       int           `json:"calls_made"`
	Duration        time.Duration `json:"duration_ms"`
	ErrorMessage    string        `json:"error_message,omitempty"`
}

// ExecutionResult aggregates a full plan execution
type ExecutionResult struct {
	RunID          string        `json:"run_id" db:"run_id"`
	PlanID         string        `json:"plan_id" db:"plan_id"`
	Mode           PlanMode      `json:"mode" db:"mode"`
	DryRun         bool          `json:"dry_run" db:"dry_run"`
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	FinishedAt     time.Time     `json:"finished_at" db:"finished_at"`
	TotalTasks     int           `json:"total_tasks" db:"total_tasks"`
	CompletedTasks int           `json:"completed_tasks" db:"completed_tasks"`
	FailedTasks    int           `json:"failed_tasks" db:"failed_tasks"`
	SkippedTasks   int           `json:"skipped_tasks" db:"skipped_tasks"`
	RecordsWritten int           `json:"records_written" db:"records_written"`
	CallsMade      int           `json:"calls_made" db:"calls_made"`
	SuccessRate    float64       `json:"success_rate" db:"success_rate"`
	TaskResults    []TaskResult  `json:"task_results,omitempty" db:"-"`
}

// DownloadAnalysis summarizes what a download run would have to cover
type DownloadAnalysis struct {
	AnalyzedAt        time.Time     `json:"analyzed_at"`
	StartDate         time.Time     `json:"start_date"`
	EndDate           time.Time     `json:"end_date"`
	TotalInstruments  int           `json:"total_instruments"`
	ActiveInstruments int           `json:"active_instruments"`
	MissingDays       int           `json:"missing_days"`
	MissingDaysSample []string      `json:"missing_days_sample"`
	MissingRecords    int           `json:"missing_records"`
	EstimatedCalls    int           `json:"estimated_calls"`
	EstimatedDuration time.Duration `json:"estimated_duration_seconds"`
	Priority          PlanPriority  `json:"priority"`
}
