package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/stockflow/internal/observability"
	"github.com/odyssey-erp/stockflow/internal/reporting"
	"github.com/odyssey-erp/stockflow/internal/source"
)

// NewReportCache builds the snapshot cache from configuration. A nil client
// disables caching.
func NewReportCache(cfg *Config, client *redis.Client) *source.Cache {
	return source.NewCache(client, cfg.ReportCacheTTL, cfg.ReportInvalidationChannel)
}

// NewReportService wires the Postgres providers behind the snapshot cache.
func NewReportService(pool *pgxpool.Pool, cache *source.Cache, logger *slog.Logger, metrics *observability.Metrics) *reporting.Service {
	opts := source.Options{Logger: logger}
	if metrics != nil {
		opts.Recorder = metrics
	}
	products := source.NewCachedProducts(source.NewPostgresProducts(pool), cache, opts)
	sales := source.NewCachedSales(source.NewPostgresSales(pool), cache, opts)
	return reporting.NewService(products, sales, logger)
}
