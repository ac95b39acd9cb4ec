package source

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/stockflow/internal/reporting"
)

var (
	_ reporting.ProductDataProvider = (*CachedProducts)(nil)
	_ reporting.SalesDataProvider   = (*CachedSales)(nil)
)

// LookupRecorder counts cache lookups by result.
type LookupRecorder interface {
	RecordCacheLookup(result string)
}

// Cache lookup results reported to a LookupRecorder.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Options tunes the cached decorators. Zero values are valid.
type Options struct {
	Logger   *slog.Logger
	Recorder LookupRecorder
}

// CachedProducts serves catalog snapshots through the Redis cache.
type CachedProducts struct {
	next  reporting.ProductDataProvider
	cache *Cache
	opts  Options
}

// NewCachedProducts decorates next with the snapshot cache.
func NewCachedProducts(next reporting.ProductDataProvider, cache *Cache, opts Options) *CachedProducts {
	return &CachedProducts{next: next, cache: cache, opts: opts.withDefaults()}
}

// FetchAll returns the cached catalog, loading it on a miss.
func (p *CachedProducts) FetchAll(ctx context.Context) ([]reporting.ProductRecord, error) {
	return readThrough(ctx, p.cache, p.opts, []string{"products", "all"}, p.next.FetchAll)
}

// FetchLowStock returns the cached low stock listing for threshold.
func (p *CachedProducts) FetchLowStock(ctx context.Context, threshold int64) ([]reporting.ProductRecord, error) {
	parts := []string{"products", "lowstock", strconv.FormatInt(threshold, 10)}
	return readThrough(ctx, p.cache, p.opts, parts, func(ctx context.Context) ([]reporting.ProductRecord, error) {
		return p.next.FetchLowStock(ctx, threshold)
	})
}

// CachedSales serves invoice snapshots through the Redis cache. Windows are
// keyed by their exact bounds in UTC.
type CachedSales struct {
	next  reporting.SalesDataProvider
	cache *Cache
	opts  Options
}

// NewCachedSales decorates next with the snapshot cache.
func NewCachedSales(next reporting.SalesDataProvider, cache *Cache, opts Options) *CachedSales {
	return &CachedSales{next: next, cache: cache, opts: opts.withDefaults()}
}

// FetchByDateRange returns the cached window, loading it on a miss.
func (s *CachedSales) FetchByDateRange(ctx context.Context, start, end time.Time) ([]reporting.SalesRecord, error) {
	parts := []string{"sales", windowToken(start), windowToken(end)}
	return readThrough(ctx, s.cache, s.opts, parts, func(ctx context.Context) ([]reporting.SalesRecord, error) {
		return s.next.FetchByDateRange(ctx, start, end)
	})
}

func windowToken(t time.Time) string {
	return strconv.FormatInt(t.UTC().UnixNano(), 10)
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) record(result string) {
	if o.Recorder != nil {
		o.Recorder.RecordCacheLookup(result)
	}
}

// readThrough consults the cache before calling load. Cache failures degrade
// to a direct load; load failures are returned unchanged.
func readThrough[T any](ctx context.Context, cache *Cache, opts Options, parts []string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := cache.BuildKey(ctx, parts...)
	if err != nil {
		opts.record(LookupError)
		opts.Logger.Warn("snapshot cache unavailable", slog.Any("error", err))
		return load(ctx)
	}

	var (
		out     T
		loaded  T
		loadErr error
		called  bool
	)
	err = cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		called = true
		loaded, loadErr = load(ctx)
		return loaded, loadErr
	})
	switch {
	case err == nil && called:
		opts.record(LookupMiss)
		return out, nil
	case err == nil:
		opts.record(LookupHit)
		return out, nil
	case called && loadErr != nil:
		opts.record(LookupMiss)
		return zero, loadErr
	case called:
		opts.record(LookupError)
		opts.Logger.Warn("snapshot cache store failed", slog.String("key", key), slog.Any("error", err))
		return loaded, nil
	default:
		opts.record(LookupError)
		opts.Logger.Warn("snapshot cache read failed", slog.String("key", key), slog.Any("error", err))
		return load(ctx)
	}
}
