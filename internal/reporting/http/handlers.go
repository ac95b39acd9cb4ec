package reportinghttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockflow/internal/platform/httpx"
	"github.com/odyssey-erp/stockflow/internal/reporting"
	"github.com/odyssey-erp/stockflow/internal/reporting/export"
)

const defaultRequestTimeout = 10 * time.Second

// ReportService is the reporting contract used by the handler.
type ReportService interface {
	GetKpiMetrics(ctx context.Context, req reporting.KPIRequest) (reporting.KPISnapshot, error)
	GetChartData(ctx context.Context, req reporting.ChartRequest) (reporting.ChartPayload, error)
	GetTrendAnalysis(ctx context.Context, req reporting.TrendRequest) (reporting.TrendAnalysis, error)
	GetProfitabilityAnalysis(ctx context.Context, req reporting.ProfitabilityRequest) (reporting.ProfitabilityAnalysis, error)
	GetProductPerformance(ctx context.Context, req reporting.PerformanceRequest) ([]reporting.ProfitabilityRow, error)
	GetAlerts(ctx context.Context, req reporting.AlertsRequest) ([]reporting.Alert, error)
	GetAnalyticsDashboard(ctx context.Context, req reporting.DashboardRequest) (reporting.Dashboard, error)
	GetReport(ctx context.Context, req reporting.ReportRequest) (reporting.Report, error)
}

// Handler serves the reporting endpoints as JSON and CSV.
type Handler struct {
	logger   *slog.Logger
	service  ReportService
	validate *validator.Validate
	timeout  time.Duration
	csvPool  sync.Pool
}

// NewHandler constructs the reporting HTTP handler. A non-positive timeout
// selects the default per-request budget.
func NewHandler(logger *slog.Logger, service ReportService, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	h := &Handler{logger: logger, service: service, validate: v, timeout: timeout}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

type windowQuery struct {
	Start string `query:"start" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
	End   string `query:"end" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
}

func (q windowQuery) timeRange() reporting.TimeRange {
	return reporting.TimeRange{Start: parseDate(q.Start, false), End: parseDate(q.End, true)}
}

type kpiQuery struct {
	windowQuery
	CompareStart string `query:"compare_start" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
	CompareEnd   string `query:"compare_end" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
}

type chartQuery struct {
	windowQuery
	GroupBy string `query:"group_by" validate:"max=16"`
	SortBy  string `query:"sort_by" validate:"max=32"`
	Limit   int    `query:"limit" validate:"gte=0,lte=1000"`
}

type performanceQuery struct {
	windowQuery
	SortBy string `query:"sort_by" validate:"max=32"`
	Limit  int    `query:"limit" validate:"gte=0,lte=1000"`
}

type alertsQuery struct {
	Severity   string `query:"severity" validate:"omitempty,oneof=low medium high info"`
	Actionable string `query:"actionable" validate:"omitempty,oneof=true false"`
	Since      string `query:"since" validate:"omitempty,datetime=2006-01-02|datetime=2006-01-02T15:04:05Z07:00"`
}

type dashboardQuery struct {
	windowQuery
	Period   string   `query:"period" validate:"max=16"`
	Widgets  []string `query:"widgets" validate:"omitempty,dive,oneof=revenue products inventory"`
	Optional []string `query:"optional" validate:"omitempty,dive,oneof=revenue products inventory"`
}

type basicQuery struct {
	windowQuery
	Limit     int    `query:"limit" validate:"gte=0,lte=1000"`
	SortBy    string `query:"sort_by" validate:"max=32"`
	GroupBy   string `query:"group_by" validate:"max=16"`
	Threshold int64  `query:"threshold" validate:"gte=0"`
}

func (h *Handler) handleKPI(w http.ResponseWriter, r *http.Request) {
	snap, rng, err := h.loadKPI(r)
	if err != nil {
		h.respondError(w, "kpi", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"range": rng, "kpi": snap})
}

func (h *Handler) handleKPICSV(w http.ResponseWriter, r *http.Request) {
	snap, rng, err := h.loadKPI(r)
	if err != nil {
		h.respondError(w, "kpi export", err)
		return
	}
	h.writeCSV(w, "kpi", func(buf io.Writer) error { return export.WriteKPICSV(buf, snap, rng) })
}

func (h *Handler) loadKPI(r *http.Request) (reporting.KPISnapshot, reporting.TimeRange, error) {
	values := r.URL.Query()
	q := kpiQuery{
		windowQuery:  bindWindow(values.Get),
		CompareStart: strings.TrimSpace(values.Get("compare_start")),
		CompareEnd:   strings.TrimSpace(values.Get("compare_end")),
	}
	if err := h.check(q); err != nil {
		return reporting.KPISnapshot{}, reporting.TimeRange{}, err
	}
	if (q.CompareStart == "") != (q.CompareEnd == "") {
		return reporting.KPISnapshot{}, reporting.TimeRange{}, validationError{field: "compare_start, compare_end"}
	}
	req := reporting.KPIRequest{Current: q.timeRange()}
	if q.CompareStart != "" {
		req.Comparison = &reporting.TimeRange{Start: parseDate(q.CompareStart, false), End: parseDate(q.CompareEnd, true)}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	snap, err := h.service.GetKpiMetrics(ctx, req)
	return snap, req.Current, err
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := chartQuery{
		windowQuery: bindWindow(values.Get),
		GroupBy:     strings.TrimSpace(values.Get("group_by")),
		SortBy:      strings.TrimSpace(values.Get("sort_by")),
	}
	if err := h.bindInt(values.Get, "limit", &q.Limit); err != nil {
		h.respondError(w, "chart", err)
		return
	}
	if err := h.check(q); err != nil {
		h.respondError(w, "chart", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	payload, err := h.service.GetChartData(ctx, reporting.ChartRequest{
		ChartType: chi.URLParam(r, "type"),
		Range:     q.timeRange(),
		Filters:   reporting.ChartFilters{GroupBy: q.GroupBy, Limit: q.Limit, SortBy: q.SortBy},
	})
	if err != nil {
		h.respondError(w, "chart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := bindWindow(values.Get)
	if err := h.check(q); err != nil {
		h.respondError(w, "trends", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	trend, err := h.service.GetTrendAnalysis(ctx, reporting.TrendRequest{
		Range:       q.timeRange(),
		Granularity: strings.TrimSpace(values.Get("granularity")),
	})
	if err != nil {
		h.respondError(w, "trends", err)
		return
	}
	httpx.JSON(w, http.StatusOK, trend)
}

func (h *Handler) handleProfitability(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := bindWindow(values.Get)
	if err := h.check(q); err != nil {
		h.respondError(w, "profitability", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	analysis, err := h.service.GetProfitabilityAnalysis(ctx, reporting.ProfitabilityRequest{
		Range:   q.timeRange(),
		GroupBy: strings.TrimSpace(values.Get("group_by")),
	})
	if err != nil {
		h.respondError(w, "profitability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, analysis)
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.loadPerformance(r)
	if err != nil {
		h.respondError(w, "performance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handlePerformanceCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.loadPerformance(r)
	if err != nil {
		h.respondError(w, "performance export", err)
		return
	}
	h.writeCSV(w, "product-performance", func(buf io.Writer) error { return export.WritePerformanceCSV(buf, rows) })
}

func (h *Handler) loadPerformance(r *http.Request) ([]reporting.ProfitabilityRow, error) {
	values := r.URL.Query()
	q := performanceQuery{
		windowQuery: bindWindow(values.Get),
		SortBy:      strings.TrimSpace(values.Get("sort_by")),
	}
	if err := h.bindInt(values.Get, "limit", &q.Limit); err != nil {
		return nil, err
	}
	if err := h.check(q); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	return h.service.GetProductPerformance(ctx, reporting.PerformanceRequest{
		Range:  q.timeRange(),
		SortBy: q.SortBy,
		Limit:  q.Limit,
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.loadAlerts(r)
	if err != nil {
		h.respondError(w, "alerts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleAlertsCSV(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.loadAlerts(r)
	if err != nil {
		h.respondError(w, "alerts export", err)
		return
	}
	h.writeCSV(w, "alerts", func(buf io.Writer) error { return export.WriteAlertsCSV(buf, alerts) })
}

func (h *Handler) loadAlerts(r *http.Request) ([]reporting.Alert, error) {
	values := r.URL.Query()
	q := alertsQuery{
		Severity:   strings.ToLower(strings.TrimSpace(values.Get("severity"))),
		Actionable: strings.ToLower(strings.TrimSpace(values.Get("actionable"))),
		Since:      strings.TrimSpace(values.Get("since")),
	}
	if err := h.check(q); err != nil {
		return nil, err
	}
	req := reporting.AlertsRequest{Severity: q.Severity}
	if q.Actionable != "" {
		actionable := q.Actionable == "true"
		req.Actionable = &actionable
	}
	if q.Since != "" {
		since := parseDate(q.Since, false)
		req.Since = &since
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	return h.service.GetAlerts(ctx, req)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := dashboardQuery{
		windowQuery: bindWindow(values.Get),
		Period:      strings.TrimSpace(values.Get("period")),
		Widgets:     splitList(values.Get("widgets")),
		Optional:    splitList(values.Get("optional")),
	}
	if err := h.check(q); err != nil {
		h.respondError(w, "dashboard", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	dash, err := h.service.GetAnalyticsDashboard(ctx, reporting.DashboardRequest{
		Range:           q.timeRange(),
		Period:          q.Period,
		Widgets:         q.Widgets,
		OptionalWidgets: q.Optional,
	})
	if err != nil {
		h.respondError(w, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) handleBasicReport(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := basicQuery{
		windowQuery: bindWindow(values.Get),
		SortBy:      strings.TrimSpace(values.Get("sort_by")),
		GroupBy:     strings.TrimSpace(values.Get("group_by")),
	}
	if err := h.bindInt(values.Get, "limit", &q.Limit); err != nil {
		h.respondError(w, "basic report", err)
		return
	}
	var threshold int
	if err := h.bindInt(values.Get, "threshold", &threshold); err != nil {
		h.respondError(w, "basic report", err)
		return
	}
	q.Threshold = int64(threshold)
	if err := h.check(q); err != nil {
		h.respondError(w, "basic report", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	report, err := h.service.GetReport(ctx, reporting.ReportRequest{
		Type:      chi.URLParam(r, "type"),
		Range:     q.timeRange(),
		Limit:     q.Limit,
		SortBy:    q.SortBy,
		GroupBy:   q.GroupBy,
		Threshold: q.Threshold,
	})
	if err != nil {
		h.respondError(w, "basic report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) writeCSV(w http.ResponseWriter, name string, write func(io.Writer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.respondError(w, "write "+name+" csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", name))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.String("export", name), slog.Any("error", err))
	}
}

// check validates a bound query struct.
func (h *Handler) check(q any) error {
	err := h.validate.Struct(q)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fe.Field())
		}
		return validationError{field: strings.Join(fields, ", ")}
	}
	return err
}

func (h *Handler) bindInt(get func(string) string, key string, dest *int) error {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return validationError{field: key}
	}
	*dest = v
	return nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	classified := classify(err)
	switch {
	case errors.Is(classified, httpx.ErrValidation):
		h.logger.Debug("reject report request", slog.String("op", op), slog.Any("error", err))
	case errors.Is(classified, httpx.ErrTimeout), errors.Is(classified, httpx.ErrUnavailable):
		h.logger.Warn("report request degraded", slog.String("op", op), slog.Any("error", err))
	default:
		h.logger.Error("report request failed", slog.String("op", op), slog.Any("error", err))
	}
	httpx.RespondError(w, classified)
}

// classify attaches the transport sentinel for err. Deadlines are checked
// before upstream failures because providers surface them wrapped.
func classify(err error) error {
	var vErr validationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, reporting.ErrInvalidRange),
		errors.Is(err, reporting.ErrUnsupportedChartType),
		errors.Is(err, reporting.ErrUnsupportedReportType):
		return fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", httpx.ErrTimeout, err)
	case errors.Is(err, reporting.ErrUpstreamUnavailable):
		return fmt.Errorf("%w: %w", httpx.ErrUnavailable, err)
	default:
		return err
	}
}

type validationError struct {
	field string
}

func (v validationError) Error() string {
	return fmt.Sprintf("invalid %s", v.field)
}

func bindWindow(get func(string) string) windowQuery {
	return windowQuery{Start: strings.TrimSpace(get("start")), End: strings.TrimSpace(get("end"))}
}

// parseDate reads an already validated date. A date-only end bound covers
// the whole day.
func parseDate(value string, end bool) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
