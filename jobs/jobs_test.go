package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/stockflow/internal/jobs"
	"github.com/odyssey-erp/stockflow/internal/reporting"
	"github.com/odyssey-erp/stockflow/internal/source"
)

var jobNow = time.Date(2024, time.June, 15, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubReports struct {
	mu         sync.Mutex
	dashboards []reporting.DashboardRequest
	alertReqs  []reporting.AlertsRequest
	alerts     []reporting.Alert
	err        error
}

func (s *stubReports) GetAnalyticsDashboard(ctx context.Context, req reporting.DashboardRequest) (reporting.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards = append(s.dashboards, req)
	return reporting.Dashboard{Range: req.Range}, s.err
}

func (s *stubReports) GetAlerts(ctx context.Context, req reporting.AlertsRequest) ([]reporting.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertReqs = append(s.alertReqs, req)
	return s.alerts, s.err
}

func TestWarmupRangeIsDayAligned(t *testing.T) {
	rng := WarmupRange(jobNow, 7)
	assert.Equal(t, time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2024, time.June, 16, 0, 0, 0, 0, time.UTC), rng.End)
}

func TestDashboardWarmupDefaultsWindows(t *testing.T) {
	reports := &stubReports{}
	job := NewDashboardWarmupJob(reports, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return jobNow }

	task, err := NewDashboardWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, reports.dashboards, 3)
	for i, days := range DefaultWarmupWindows {
		assert.Equal(t, WarmupRange(jobNow, days), reports.dashboards[i].Range)
	}
}

func TestDashboardWarmupSkipsInvalidWindowsAndStopsOnError(t *testing.T) {
	reports := &stubReports{}
	job := NewDashboardWarmupJob(reports, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return jobNow }

	task, err := NewDashboardWarmupTask(0, 14)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, reports.dashboards, 1)
	assert.Equal(t, WarmupRange(jobNow, 14), reports.dashboards[0].Range)

	reports.err = reporting.ErrUpstreamUnavailable
	task, err = NewDashboardWarmupTask(7, 30)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, reporting.ErrUpstreamUnavailable)
	assert.Len(t, reports.dashboards, 2)
}

func TestMalformedPayloadsSkipRetry(t *testing.T) {
	bad := []byte("{not json")
	reports := &stubReports{}
	cases := []struct {
		name   string
		handle asynq.HandlerFunc
		task   string
	}{
		{"warmup", NewDashboardWarmupJob(reports, quietLogger(), nil).Handle, TaskDashboardWarmup},
		{"alert scan", NewAlertScanJob(reports, quietLogger(), nil).Handle, TaskAlertScan},
		{"cache bump", NewCacheBumpJob(source.NewCache(nil, time.Minute, ""), quietLogger(), nil).Handle, TaskCacheBump},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.handle(context.Background(), asynq.NewTask(tc.task, bad))
			assert.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestAlertScanRecordsAlerts(t *testing.T) {
	reports := &stubReports{alerts: []reporting.Alert{
		{Type: reporting.AlertInventory, Severity: reporting.SeverityHigh, Title: "Products Out of Stock"},
		{Type: reporting.AlertInventory, Severity: reporting.SeverityMedium, Title: "Low Stock Warning"},
		{Type: reporting.AlertInventory, Severity: reporting.SeverityHigh, Title: "High Value Inventory"},
	}}
	registry := prometheus.NewRegistry()
	job := NewAlertScanJob(reports, quietLogger(), jobmetrics.NewMetrics(registry))
	job.clock = func() time.Time { return jobNow }

	task, err := NewAlertScanTask(0, "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, reports.alertReqs, 1)
	require.NotNil(t, reports.alertReqs[0].Since)
	assert.Equal(t, jobNow.AddDate(0, 0, -7), *reports.alertReqs[0].Since)

	expected := `
# HELP stockflow_report_alerts_total Report alerts raised by the alert scan, by type and severity.
# TYPE stockflow_report_alerts_total counter
stockflow_report_alerts_total{severity="High",type="Inventory"} 2
stockflow_report_alerts_total{severity="Medium",type="Inventory"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "stockflow_report_alerts_total"))
}

func TestAlertScanFailureCountsAsJobFailure(t *testing.T) {
	reports := &stubReports{err: errors.New("boom")}
	registry := prometheus.NewRegistry()
	job := NewAlertScanJob(reports, quietLogger(), jobmetrics.NewMetrics(registry))

	task, err := NewAlertScanTask(3, "high")
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
	assert.Equal(t, "high", reports.alertReqs[0].Severity)

	count, err := testutil.GatherAndCount(registry, "stockflow_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCacheBumpAdvancesVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := source.NewCache(client, time.Minute, "")

	ctx := context.Background()
	before, err := cache.Version(ctx)
	require.NoError(t, err)

	task, err := NewCacheBumpTask("import finished")
	require.NoError(t, err)
	require.NoError(t, NewCacheBumpJob(cache, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry())).Handle(ctx, task))

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestTasksCarryPayloads(t *testing.T) {
	task, err := NewAlertScanTask(14, "high")
	require.NoError(t, err)
	assert.Equal(t, TaskAlertScan, task.Type())

	var payload AlertScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, AlertScanPayload{LookbackDays: 14, Severity: "high"}, payload)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthEndpoint(t *testing.T) {
	serve := func(inspector QueueInspector) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		NewHandler(inspector, quietLogger()).MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}

	rr := serve(nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0,"paused":false,"processed":0,"failed":0}`, rr.Body.String())

	rr = serve(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Failed: 1}})
	require.Equal(t, http.StatusOK, rr.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Pending)
	assert.Equal(t, 1, body.Failed)

	rr = serve(stubInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
