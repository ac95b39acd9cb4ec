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

const defaultAlertLookbackDays = 7

// AlertEvaluator evaluates the alert rules.
type AlertEvaluator interface {
	GetAlerts(ctx context.Context, req reporting.AlertsRequest) ([]reporting.Alert, error)
}

// AlertScanJob evaluates alerts on a schedule, logging each raised alert and
// counting them by type and severity.
type AlertScanJob struct {
	Reports AlertEvaluator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAlertScanJob initialises the alert scan handler.
func NewAlertScanJob(reports AlertEvaluator, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertScanJob {
	return &AlertScanJob{
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the alert scan.
func (j *AlertScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("alert scan: handler not configured")
	}
	var payload AlertScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.LookbackDays <= 0 {
		payload.LookbackDays = defaultAlertLookbackDays
	}

	start := j.now()
	tracker := j.metrics().Track(TaskAlertScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("lookback_days", payload.LookbackDays))
	logger.Info("starting alert scan")

	since := start.AddDate(0, 0, -payload.LookbackDays)
	alerts, err := j.Reports.GetAlerts(ctx, reporting.AlertsRequest{Severity: payload.Severity, Since: &since})
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, a := range alerts {
		level := slog.LevelInfo
		if a.Severity == reporting.SeverityHigh {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "report alert raised",
			slog.String("type", string(a.Type)),
			slog.String("severity", string(a.Severity)),
			slog.String("title", a.Title),
			slog.String("message", a.Message),
			slog.Bool("actionable", a.IsActionable),
		)
		j.metrics().AddAlerts(string(a.Type), string(a.Severity), 1)
	}

	logger.Info("completed alert scan",
		slog.Int("alerts", len(alerts)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *AlertScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAlertScan))
	}
	return slog.Default().With(slog.String("job", TaskAlertScan))
}

func (j *AlertScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AlertScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
