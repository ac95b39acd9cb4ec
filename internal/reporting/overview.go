package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventorySummary is the catalog-wide stock position.
type InventorySummary struct {
	TotalProducts       int             `json:"totalProducts"`
	ActiveProducts      int             `json:"activeProducts"`
	InactiveProducts    int             `json:"inactiveProducts"`
	InStockProducts     int             `json:"inStockProducts"`
	OutOfStockProducts  int             `json:"outOfStockProducts"`
	LowStockProducts    int             `json:"lowStockProducts"`
	TotalInventoryValue decimal.Decimal `json:"totalInventoryValue"`
	AverageProductValue decimal.Decimal `json:"averageProductValue"`
}

// InventoryOverview summarises the catalog. A product counts as out of stock
// when it is inactive or has no units on hand.
func InventoryOverview(products []ProductRecord) InventorySummary {
	s := InventorySummary{TotalProducts: len(products)}
	for _, p := range products {
		if p.IsActive {
			s.ActiveProducts++
		} else {
			s.InactiveProducts++
		}
		status := ClassifyStock(p)
		if p.IsActive && status != StockOut {
			s.InStockProducts++
		} else {
			s.OutOfStockProducts++
		}
		if status == StockLow {
			s.LowStockProducts++
		}
	}
	s.TotalInventoryValue = inventoryValue(products)
	s.AverageProductValue = safeDiv(s.TotalInventoryValue, decimal.NewFromInt(int64(len(products)))).Round(2)
	return s
}

// SalesSummary aggregates the active records of a window.
type SalesSummary struct {
	TotalInvoices       int             `json:"totalInvoices"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	AverageInvoiceValue decimal.Decimal `json:"averageInvoiceValue"`
	TotalItemsSold      int64           `json:"totalItemsSold"`
	FirstSaleDate       *time.Time      `json:"firstSaleDate,omitempty"`
	LastSaleDate        *time.Time      `json:"lastSaleDate,omitempty"`
}

// SalesOverview summarises the active records.
func SalesOverview(records []SalesRecord) SalesSummary {
	active := activeRecords(records)
	totals := summariseSales(active)
	s := SalesSummary{
		TotalInvoices:       totals.orders,
		TotalRevenue:        totals.revenue,
		AverageInvoiceValue: totals.aov.Round(2),
	}
	for i := range active {
		rec := active[i]
		for _, item := range rec.LineItems {
			s.TotalItemsSold += item.Quantity
		}
		if s.FirstSaleDate == nil || rec.CreatedDate.Before(*s.FirstSaleDate) {
			s.FirstSaleDate = &active[i].CreatedDate
		}
		if s.LastSaleDate == nil || rec.CreatedDate.After(*s.LastSaleDate) {
			s.LastSaleDate = &active[i].CreatedDate
		}
	}
	return s
}

// RevenueByPeriod sums active revenue per bucket.
func RevenueByPeriod(records []SalesRecord, g Granularity) []DataPoint {
	buckets := Bucketize(activeRecords(records), g, func(r SalesRecord) time.Time { return r.CreatedDate })
	points := make([]DataPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, DataPoint{
			BucketStart: b.Start,
			Label:       g.Label(b.Start),
			Value:       summariseSales(b.Items).revenue,
		})
	}
	return points
}

// TrendAnalysis is the bucketed sales, revenue and inventory movement of a window.
type TrendAnalysis struct {
	Granularity       Granularity     `json:"granularity"`
	SalesTrend        []DataPoint     `json:"salesTrend"`
	RevenueTrend      []DataPoint     `json:"revenueTrend"`
	InventoryTrend    []DataPoint     `json:"inventoryTrend"`
	SalesGrowthRate   decimal.Decimal `json:"salesGrowthRate"`
	RevenueGrowthRate decimal.Decimal `json:"revenueGrowthRate"`
	TrendDirection    string          `json:"trendDirection"`
}

// AnalyzeTrend buckets the active records by g. Inventory history is not
// tracked, so every inventory point carries the current catalog value.
// Growth compares the first and last bucket and is zero with fewer than two.
func AnalyzeTrend(records []SalesRecord, products []ProductRecord, g Granularity) TrendAnalysis {
	buckets := Bucketize(activeRecords(records), g, func(r SalesRecord) time.Time { return r.CreatedDate })
	invValue := inventoryValue(products)

	out := TrendAnalysis{
		Granularity:    g,
		SalesTrend:     make([]DataPoint, 0, len(buckets)),
		RevenueTrend:   make([]DataPoint, 0, len(buckets)),
		InventoryTrend: make([]DataPoint, 0, len(buckets)),
	}
	for _, b := range buckets {
		label := g.Label(b.Start)
		out.SalesTrend = append(out.SalesTrend, DataPoint{BucketStart: b.Start, Label: label, Value: decimal.NewFromInt(int64(len(b.Items)))})
		out.RevenueTrend = append(out.RevenueTrend, DataPoint{BucketStart: b.Start, Label: label, Value: summariseSales(b.Items).revenue})
		out.InventoryTrend = append(out.InventoryTrend, DataPoint{BucketStart: b.Start, Label: label, Value: invValue})
	}
	out.SalesGrowthRate = seriesGrowth(out.SalesTrend)
	out.RevenueGrowthRate = seriesGrowth(out.RevenueTrend)
	out.TrendDirection = TrendDirection(out.RevenueGrowthRate)
	return out
}

func seriesGrowth(points []DataPoint) decimal.Decimal {
	if len(points) < 2 {
		return decimal.Zero
	}
	return Growth(points[0].Value, points[len(points)-1].Value)
}

var (
	strongUpward = decimal.RequireFromString("0.1")
	upward       = decimal.RequireFromString("0.05")
	downward     = decimal.RequireFromString("-0.05")
	strongDown   = decimal.RequireFromString("-0.1")
)

// TrendDirection classifies a growth rate.
func TrendDirection(growth decimal.Decimal) string {
	switch {
	case growth.GreaterThan(strongUpward):
		return "Strong Upward"
	case growth.GreaterThan(upward):
		return "Upward"
	case growth.GreaterThan(downward):
		return "Stable"
	case growth.GreaterThan(strongDown):
		return "Downward"
	default:
		return "Strong Downward"
	}
}
