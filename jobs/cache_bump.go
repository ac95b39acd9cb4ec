package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockflow/internal/jobs"
)

// VersionBumper invalidates cached snapshots by advancing their version.
type VersionBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// CacheBumpJob invalidates the provider snapshot cache.
type CacheBumpJob struct {
	Cache   VersionBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheBumpJob wires the cache invalidation handler.
func NewCacheBumpJob(cache VersionBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheBumpJob {
	return &CacheBumpJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle bumps the cache version.
func (j *CacheBumpJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache bump: handler not configured")
	}
	var payload CacheBumpPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "manual"
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskCacheBump)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskCacheBump), slog.String("reason", payload.Reason))

	version, err := j.Cache.Bump(ctx)
	if err != nil {
		resultErr = err
		logger.Error("bump snapshot cache", slog.Any("error", err))
		return resultErr
	}
	logger.Info("snapshot cache bumped", slog.Int64("version", version))
	return resultErr
}
