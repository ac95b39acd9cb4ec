package reporting

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dashboard widgets selectable through DashboardRequest.Widgets.
const (
	WidgetRevenue   = "revenue"
	WidgetProducts  = "products"
	WidgetInventory = "inventory"
)

const dashboardAlertDays = 7

var dashboardWidgets = []string{WidgetRevenue, WidgetProducts, WidgetInventory}

// DashboardRequest configures a composed dashboard. A nil Widgets slice
// selects every widget. Chart widgets listed in OptionalWidgets are skipped
// instead of failing the request when they cannot be built.
type DashboardRequest struct {
	Range           TimeRange
	Period          string
	Widgets         []string
	OptionalWidgets []string
}

// WidgetChart is a chart payload tagged with the widget that produced it.
type WidgetChart struct {
	Widget string `json:"widget"`
	ChartPayload
}

// PerformanceMeta describes how a dashboard was produced.
type PerformanceMeta struct {
	GeneratedAt           time.Time     `json:"generatedAt"`
	QueryDuration         time.Duration `json:"queryDuration"`
	TotalRecordsProcessed int           `json:"totalRecordsProcessed"`
	DataSources           []string      `json:"dataSources"`
	DataFreshness         string        `json:"dataFreshness"`
	SkippedWidgets        []string      `json:"skippedWidgets,omitempty"`
}

// Dashboard is the consolidated analytics payload.
type Dashboard struct {
	Range           TimeRange       `json:"range"`
	KPIMetrics      KPISnapshot     `json:"kpiMetrics"`
	Charts          []WidgetChart   `json:"charts"`
	Alerts          []Alert         `json:"alerts"`
	PerformanceMeta PerformanceMeta `json:"performanceMeta"`
}

type dashboardSnapshot struct {
	products   []ProductRecord
	current    []SalesRecord
	comparison []SalesRecord
	recent     []SalesRecord
}

// GetAnalyticsDashboard composes KPIs against the preceding month, the
// selected charts and the actionable alerts of the last week. Provider
// fetches run concurrently; the composition checks ctx between widgets.
func (s *Service) GetAnalyticsDashboard(ctx context.Context, req DashboardRequest) (Dashboard, error) {
	now := s.now()
	rng, err := resolveRange(req.Range, now, lastDays(defaultRecentDays))
	if err != nil {
		return Dashboard{}, err
	}
	comparison := TimeRange{Start: rng.Start.AddDate(0, -1, 0), End: rng.Start}
	alertSince := now.AddDate(0, 0, -dashboardAlertDays)

	snap, err := s.loadDashboardSnapshot(ctx, rng, comparison, TimeRange{Start: alertSince, End: now})
	if err != nil {
		return Dashboard{}, err
	}

	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}
	out := Dashboard{
		Range:      rng,
		KPIMetrics: ComputeKPIs(snap.current, snap.products, &Comparison{Records: snap.comparison}),
		Charts:     make([]WidgetChart, 0, len(dashboardWidgets)),
	}

	var skipped []string
	for _, widget := range selectedWidgets(req.Widgets) {
		if err := ctx.Err(); err != nil {
			return Dashboard{}, err
		}
		payload, err := s.widgets(widget, rng, snap, req.Period)
		if err != nil {
			if !containsFold(req.OptionalWidgets, widget) {
				return Dashboard{}, err
			}
			s.logger.Warn("skip optional dashboard widget", slog.String("widget", widget), slog.Any("error", err))
			skipped = append(skipped, widget)
			continue
		}
		out.Charts = append(out.Charts, WidgetChart{Widget: widget, ChartPayload: payload})
	}

	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}
	actionable := true
	out.Alerts = EvaluateAlerts(snap.products, snap.recent, alertSince, now, AlertFilter{Actionable: &actionable})

	finished := s.now()
	out.PerformanceMeta = PerformanceMeta{
		GeneratedAt:           finished,
		QueryDuration:         finished.Sub(now),
		TotalRecordsProcessed: len(snap.products) + len(snap.current) + len(snap.comparison) + len(snap.recent),
		DataSources:           []string{"Products", "Invoices"},
		DataFreshness:         "Real-time",
		SkippedWidgets:        skipped,
	}
	return out, nil
}

func (s *Service) loadDashboardSnapshot(ctx context.Context, current, comparison, recent TimeRange) (dashboardSnapshot, error) {
	var snap dashboardSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.products, err = s.fetchProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.current, err = s.fetchSales(gctx, current)
		return err
	})
	g.Go(func() (err error) {
		snap.comparison, err = s.fetchSales(gctx, comparison)
		return err
	})
	g.Go(func() (err error) {
		snap.recent, err = s.fetchSales(gctx, recent)
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboardSnapshot{}, err
	}
	return snap, nil
}

type widgetBuilder func(widget string, rng TimeRange, snap dashboardSnapshot, period string) (ChartPayload, error)

func buildWidgetChart(widget string, rng TimeRange, snap dashboardSnapshot, period string) (ChartPayload, error) {
	switch widget {
	case WidgetRevenue:
		return BuildChart(ChartLine, rng, snap.current, snap.products, ChartFilters{GroupBy: period})
	case WidgetProducts:
		return BuildChart(ChartBar, rng, snap.current, snap.products, ChartFilters{Limit: defaultChartLimit, SortBy: string(SortByRevenue)})
	default:
		return BuildChart(ChartDoughnut, rng, snap.current, snap.products, ChartFilters{})
	}
}

// selectedWidgets keeps the canonical widget order. Unknown names are ignored.
func selectedWidgets(requested []string) []string {
	if requested == nil {
		return dashboardWidgets
	}
	out := make([]string, 0, len(dashboardWidgets))
	for _, w := range dashboardWidgets {
		if containsFold(requested, w) {
			out = append(out, w)
		}
	}
	return out
}

func containsFold(values []string, target string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), target)
	})
}
