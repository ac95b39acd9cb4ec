package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskDashboardWarmup pre-computes dashboards for the standard windows.
	TaskDashboardWarmup = "reports:dashboard_warmup"
	// TaskAlertScan evaluates alert rules over the recent window.
	TaskAlertScan = "reports:alert_scan"
	// TaskCacheBump invalidates every cached provider snapshot.
	TaskCacheBump = "reports:cache_bump"
)

// DefaultWarmupWindows are the trailing day counts warmed when a payload names none.
var DefaultWarmupWindows = []int{7, 30, 90}

// DashboardWarmupPayload lists the trailing windows, in days, to warm.
type DashboardWarmupPayload struct {
	WindowDays []int `json:"window_days"`
}

// AlertScanPayload configures the alert scan window and filters.
type AlertScanPayload struct {
	LookbackDays int    `json:"lookback_days"`
	Severity     string `json:"severity,omitempty"`
}

// CacheBumpPayload records why the snapshot cache was invalidated.
type CacheBumpPayload struct {
	Reason string `json:"reason"`
}

// NewDashboardWarmupTask builds a warm-up task for the given windows.
func NewDashboardWarmupTask(windowDays ...int) (*asynq.Task, error) {
	return newTask(TaskDashboardWarmup, DashboardWarmupPayload{WindowDays: windowDays})
}

// NewAlertScanTask builds an alert scan task.
func NewAlertScanTask(lookbackDays int, severity string) (*asynq.Task, error) {
	return newTask(TaskAlertScan, AlertScanPayload{LookbackDays: lookbackDays, Severity: severity})
}

// NewCacheBumpTask builds a cache invalidation task.
func NewCacheBumpTask(reason string) (*asynq.Task, error) {
	return newTask(TaskCacheBump, CacheBumpPayload{Reason: reason})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
