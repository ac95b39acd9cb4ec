package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ReportType discriminates the named basic reports.
type ReportType string

const (
	ReportInventory  ReportType = "inventory"
	ReportSales      ReportType = "sales"
	ReportProducts   ReportType = "products"
	ReportLowStock   ReportType = "lowstock"
	ReportOutOfStock ReportType = "outofstock"
	ReportTopSelling ReportType = "topselling"
	ReportRevenue    ReportType = "revenue"
)

const (
	defaultLowStockThreshold = 10
	defaultTopSellingLimit   = 10
)

var reportTitles = map[ReportType]string{
	ReportInventory:  "Inventory Overview Report",
	ReportSales:      "Sales Overview Report",
	ReportProducts:   "Product Performance Report",
	ReportLowStock:   "Low Stock Report",
	ReportOutOfStock: "Out of Stock Report",
	ReportTopSelling: "Top Selling Products Report",
	ReportRevenue:    "Revenue Analysis Report",
}

// ParseReportType resolves a report discriminator. Unknown values are rejected.
func ParseReportType(value string) (ReportType, error) {
	t := ReportType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := reportTitles[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedReportType, value)
	}
	return t, nil
}

// ReportRequest configures a basic report.
type ReportRequest struct {
	Type      string
	Range     TimeRange
	Limit     int
	SortBy    string
	GroupBy   string
	Threshold int64
}

// Report is a named basic report. Data holds the report-specific result.
type Report struct {
	Type        ReportType `json:"type"`
	Name        string     `json:"name"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Range       TimeRange  `json:"range"`
	Data        any        `json:"data"`
}

// GetReport dispatches a named report.
func (s *Service) GetReport(ctx context.Context, req ReportRequest) (Report, error) {
	reportType, err := ParseReportType(req.Type)
	if err != nil {
		return Report{}, err
	}
	now := s.now()
	rng, err := resolveRange(req.Range, now, lastYears(defaultHistoryYears))
	if err != nil {
		return Report{}, err
	}

	report := Report{Type: reportType, Name: reportTitles[reportType], GeneratedAt: now, Range: rng}
	switch reportType {
	case ReportInventory:
		products, err := s.fetchProducts(ctx)
		if err != nil {
			return Report{}, err
		}
		report.Data = InventoryOverview(products)
	case ReportSales:
		records, err := s.fetchSales(ctx, rng)
		if err != nil {
			return Report{}, err
		}
		report.Data = SalesOverview(records)
	case ReportProducts:
		products, records, err := s.fetchSnapshot(ctx, rng)
		if err != nil {
			return Report{}, err
		}
		report.Data = RankProducts(records, products, ParseSortKey(req.SortBy), req.Limit)
	case ReportLowStock:
		threshold := req.Threshold
		if threshold <= 0 {
			threshold = defaultLowStockThreshold
		}
		products, err := s.products.FetchLowStock(ctx, threshold)
		if err != nil {
			return Report{}, upstream("low stock products", err)
		}
		report.Data = lo.Filter(products, func(p ProductRecord, _ int) bool { return p.IsActive })
	case ReportOutOfStock:
		products, err := s.fetchProducts(ctx)
		if err != nil {
			return Report{}, err
		}
		report.Data = lo.Filter(products, func(p ProductRecord, _ int) bool { return ClassifyStock(p) == StockOut })
	case ReportTopSelling:
		limit := req.Limit
		if limit <= 0 {
			limit = defaultTopSellingLimit
		}
		products, records, err := s.fetchSnapshot(ctx, rng)
		if err != nil {
			return Report{}, err
		}
		sold := lo.Filter(RankProducts(records, products, SortByQuantity, 0), func(row ProfitabilityRow, _ int) bool {
			return row.UnitsSold > 0
		})
		if len(sold) > limit {
			sold = sold[:limit]
		}
		report.Data = sold
	case ReportRevenue:
		records, err := s.fetchSales(ctx, rng)
		if err != nil {
			return Report{}, err
		}
		report.Data = RevenueByPeriod(records, ParseGranularity(req.GroupBy))
	default:
		return Report{}, fmt.Errorf("%w: %q", ErrUnsupportedReportType, reportType)
	}
	return report, nil
}
