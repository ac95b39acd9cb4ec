package reporting

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ProductDataProvider supplies read-only catalog snapshots.
type ProductDataProvider interface {
	FetchAll(ctx context.Context) ([]ProductRecord, error)
	FetchLowStock(ctx context.Context, threshold int64) ([]ProductRecord, error)
}

// SalesDataProvider supplies read-only invoice snapshots for [start, end).
type SalesDataProvider interface {
	FetchByDateRange(ctx context.Context, start, end time.Time) ([]SalesRecord, error)
}

const (
	defaultRecentDays   = 30
	defaultHistoryYears = 1
)

// Service composes the reporting computations over provider snapshots.
type Service struct {
	products ProductDataProvider
	sales    SalesDataProvider
	logger   *slog.Logger
	now      func() time.Time
	widgets  widgetBuilder
}

// NewService wires the data providers.
func NewService(products ProductDataProvider, sales SalesDataProvider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		products: products,
		sales:    sales,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		widgets:  buildWidgetChart,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// KPIRequest selects the current window and an optional comparison window.
type KPIRequest struct {
	Current    TimeRange
	Comparison *TimeRange
}

// GetKpiMetrics computes the KPI snapshot, with growth rates when a
// comparison window is supplied.
func (s *Service) GetKpiMetrics(ctx context.Context, req KPIRequest) (KPISnapshot, error) {
	now := s.now()
	current, err := resolveRange(req.Current, now, lastDays(defaultRecentDays))
	if err != nil {
		return KPISnapshot{}, err
	}
	var comparison *TimeRange
	if req.Comparison != nil {
		if err := req.Comparison.Validate(); err != nil {
			return KPISnapshot{}, err
		}
		comparison = req.Comparison
	}

	var (
		products []ProductRecord
		records  []SalesRecord
		previous []SalesRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.fetchProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.fetchSales(gctx, current)
		return err
	})
	if comparison != nil {
		g.Go(func() (err error) {
			previous, err = s.fetchSales(gctx, *comparison)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return KPISnapshot{}, err
	}

	var cmp *Comparison
	if comparison != nil {
		cmp = &Comparison{Records: previous}
	}
	return ComputeKPIs(records, products, cmp), nil
}

// ChartRequest selects a chart type, window and filters.
type ChartRequest struct {
	ChartType string
	Range     TimeRange
	Filters   ChartFilters
}

// GetChartData builds a single chart payload.
func (s *Service) GetChartData(ctx context.Context, req ChartRequest) (ChartPayload, error) {
	chartType, err := ParseChartType(req.ChartType)
	if err != nil {
		return ChartPayload{}, err
	}
	rng, err := resolveRange(req.Range, s.now(), lastDays(defaultRecentDays))
	if err != nil {
		return ChartPayload{}, err
	}
	products, records, err := s.fetchSnapshot(ctx, rng)
	if err != nil {
		return ChartPayload{}, err
	}
	return BuildChart(chartType, rng, records, products, req.Filters)
}

// TrendRequest selects the window and bucket size of a trend analysis.
type TrendRequest struct {
	Range       TimeRange
	Granularity string
}

// GetTrendAnalysis buckets the window's sales and revenue.
func (s *Service) GetTrendAnalysis(ctx context.Context, req TrendRequest) (TrendAnalysis, error) {
	rng, err := resolveRange(req.Range, s.now(), lastDays(defaultRecentDays))
	if err != nil {
		return TrendAnalysis{}, err
	}
	products, records, err := s.fetchSnapshot(ctx, rng)
	if err != nil {
		return TrendAnalysis{}, err
	}
	return AnalyzeTrend(records, products, ParseGranularity(req.Granularity)), nil
}

// ProfitabilityRequest selects the window and period grouping.
type ProfitabilityRequest struct {
	Range   TimeRange
	GroupBy string
}

// ProfitabilityAnalysis is the profit breakdown of a window.
type ProfitabilityAnalysis struct {
	TotalRevenue         decimal.Decimal          `json:"totalRevenue"`
	TotalCost            decimal.Decimal          `json:"totalCost"`
	GrossProfit          decimal.Decimal          `json:"grossProfit"`
	GrossProfitMargin    decimal.Decimal          `json:"grossProfitMargin"`
	ProductProfitability []ProfitabilityRow       `json:"productProfitability"`
	PeriodProfitability  []PeriodProfitabilityRow `json:"periodProfitability"`
}

// GetProfitabilityAnalysis reports totals, per-product rows for products
// that sold, and per-period rows.
func (s *Service) GetProfitabilityAnalysis(ctx context.Context, req ProfitabilityRequest) (ProfitabilityAnalysis, error) {
	rng, err := resolveRange(req.Range, s.now(), lastYears(defaultHistoryYears))
	if err != nil {
		return ProfitabilityAnalysis{}, err
	}
	products, records, err := s.fetchSnapshot(ctx, rng)
	if err != nil {
		return ProfitabilityAnalysis{}, err
	}

	revenue := summariseSales(records).revenue
	cost := soldCost(records, newCostIndex(products))
	profit := revenue.Sub(cost)

	rows := lo.Filter(RankProducts(records, products, SortByProfit, 0), func(row ProfitabilityRow, _ int) bool {
		return row.UnitsSold > 0
	})
	return ProfitabilityAnalysis{
		TotalRevenue:         revenue,
		TotalCost:            cost,
		GrossProfit:          profit,
		GrossProfitMargin:    safeDiv(profit, revenue),
		ProductProfitability: rows,
		PeriodProfitability:  RankPeriods(records, products, ParseGranularity(req.GroupBy)),
	}, nil
}

// PerformanceRequest selects the window, ranking key and row limit.
type PerformanceRequest struct {
	Range  TimeRange
	SortBy string
	Limit  int
}

// GetProductPerformance ranks every catalog product.
func (s *Service) GetProductPerformance(ctx context.Context, req PerformanceRequest) ([]ProfitabilityRow, error) {
	rng, err := resolveRange(req.Range, s.now(), lastYears(defaultHistoryYears))
	if err != nil {
		return nil, err
	}
	products, records, err := s.fetchSnapshot(ctx, rng)
	if err != nil {
		return nil, err
	}
	return RankProducts(records, products, ParseSortKey(req.SortBy), req.Limit), nil
}

// AlertsRequest filters generated alerts. Since defaults to thirty days ago.
type AlertsRequest struct {
	Severity   string
	Actionable *bool
	Since      *time.Time
}

// GetAlerts evaluates the alert rules.
func (s *Service) GetAlerts(ctx context.Context, req AlertsRequest) ([]Alert, error) {
	now := s.now()
	since := now.AddDate(0, 0, -defaultRecentDays)
	if req.Since != nil {
		since = *req.Since
	}
	rng := TimeRange{Start: since, End: now}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	products, records, err := s.fetchSnapshot(ctx, rng)
	if err != nil {
		return nil, err
	}
	return EvaluateAlerts(products, records, since, now, AlertFilter{
		Severity:   req.Severity,
		Actionable: req.Actionable,
	}), nil
}

// fetchSnapshot loads the catalog and the window's records concurrently.
func (s *Service) fetchSnapshot(ctx context.Context, rng TimeRange) ([]ProductRecord, []SalesRecord, error) {
	var (
		products []ProductRecord
		records  []SalesRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.fetchProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		records, err = s.fetchSales(gctx, rng)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return products, records, nil
}

func (s *Service) fetchProducts(ctx context.Context) ([]ProductRecord, error) {
	products, err := s.products.FetchAll(ctx)
	if err != nil {
		return nil, upstream("products", err)
	}
	return products, nil
}

func (s *Service) fetchSales(ctx context.Context, rng TimeRange) ([]SalesRecord, error) {
	records, err := s.sales.FetchByDateRange(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, upstream("sales", err)
	}
	return records, nil
}

func lastDays(days int) func(end time.Time) time.Time {
	return func(end time.Time) time.Time { return end.AddDate(0, 0, -days) }
}

func lastYears(years int) func(end time.Time) time.Time {
	return func(end time.Time) time.Time { return end.AddDate(-years, 0, 0) }
}

// resolveRange fills missing bounds: End defaults to now and Start to
// defaultStart(End). The result is validated.
func resolveRange(rng TimeRange, now time.Time, defaultStart func(end time.Time) time.Time) (TimeRange, error) {
	if rng.End.IsZero() {
		rng.End = now
	}
	if rng.Start.IsZero() {
		rng.Start = defaultStart(rng.End)
	}
	if err := rng.Validate(); err != nil {
		return TimeRange{}, err
	}
	return rng, nil
}
