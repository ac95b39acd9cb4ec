package reportinghttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// ClientHeader identifies the calling client for export rate limiting.
const ClientHeader = "X-Client-ID"

// MountRoutes registers the reporting endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/reports", func(rr chi.Router) {
		rr.Get("/kpi", h.handleKPI)
		rr.Get("/charts/{type}", h.handleChart)
		rr.Get("/trends", h.handleTrends)
		rr.Get("/profitability", h.handleProfitability)
		rr.Get("/performance", h.handlePerformance)
		rr.Get("/alerts", h.handleAlerts)
		rr.Get("/dashboard", h.handleDashboard)
		rr.Get("/basic/{type}", h.handleBasicReport)
		rr.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/kpi/export.csv", h.handleKPICSV)
			gr.Get("/performance/export.csv", h.handlePerformanceCSV)
			gr.Get("/alerts/export.csv", h.handleAlertsCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if client := strings.TrimSpace(r.Header.Get(ClientHeader)); client != "" {
		return "client:" + client, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
