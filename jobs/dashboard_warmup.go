package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockflow/internal/jobs"
	"github.com/odyssey-erp/stockflow/internal/reporting"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const warmupWindowTimeout = 20 * time.Second

// DashboardBuilder computes the analytics dashboard.
type DashboardBuilder interface {
	GetAnalyticsDashboard(ctx context.Context, req reporting.DashboardRequest) (reporting.Dashboard, error)
}

// DashboardWarmupJob computes dashboards for trailing windows so the provider
// snapshots they read land in the cache ahead of user requests.
type DashboardWarmupJob struct {
	Reports DashboardBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(reports DashboardBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes dashboard warmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	windows := payload.WindowDays
	if len(windows) == 0 {
		windows = DefaultWarmupWindows
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting dashboard warmup", slog.Any("window_days", windows))

	now := j.now()
	warmed := 0
	for _, days := range windows {
		if days <= 0 {
			logger.Warn("skip non-positive warmup window", slog.Int("days", days))
			continue
		}
		rng := WarmupRange(now, days)
		if err := j.warmWindow(ctx, rng); err != nil {
			resultErr = err
			logger.Error("warm window", slog.Int("days", days), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed dashboard warmup", slog.Int("windows", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *DashboardWarmupJob) warmWindow(ctx context.Context, rng reporting.TimeRange) error {
	windowCtx, cancel := context.WithTimeout(ctx, warmupWindowTimeout)
	defer cancel()
	_, err := j.Reports.GetAnalyticsDashboard(windowCtx, reporting.DashboardRequest{Range: rng})
	return err
}

// WarmupRange returns the day-aligned window covering the last days calendar
// days up to and including the day of now. It matches the window the HTTP
// layer builds for date-only start and end parameters.
func WarmupRange(now time.Time, days int) reporting.TimeRange {
	now = now.UTC()
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return reporting.TimeRange{Start: tomorrow.AddDate(0, 0, -days), End: tomorrow}
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DashboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
