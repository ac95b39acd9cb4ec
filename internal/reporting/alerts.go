package reporting

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
	SeverityInfo   Severity = "Info"
)

// AlertType groups alerts by the snapshot they were derived from.
type AlertType string

const (
	AlertInventory   AlertType = "Inventory"
	AlertSales       AlertType = "Sales"
	AlertPerformance AlertType = "Performance"
)

// Alert thresholds.
var (
	highValueInventoryThreshold = decimal.NewFromInt(10000)
	largeOrderThreshold         = decimal.NewFromInt(1000)
)

// Alert is one triggered rule with aggregated counts in Data.
type Alert struct {
	Type              AlertType      `json:"type"`
	Severity          Severity       `json:"severity"`
	Title             string         `json:"title"`
	Message           string         `json:"message"`
	CreatedAt         time.Time      `json:"createdAt"`
	IsActionable      bool           `json:"isActionable"`
	RecommendedAction string         `json:"recommendedAction"`
	Data              map[string]any `json:"data"`
}

// AlertFilter narrows generated alerts. Zero values disable a filter.
type AlertFilter struct {
	Severity   string
	Actionable *bool
}

func (f AlertFilter) match(a Alert) bool {
	if sev := strings.TrimSpace(f.Severity); sev != "" && !strings.EqualFold(sev, string(a.Severity)) {
		return false
	}
	if f.Actionable != nil && *f.Actionable != a.IsActionable {
		return false
	}
	return true
}

// EvaluateAlerts runs the fixed rule set over the product catalog and the
// records created since the given instant. Every alert is stamped with now.
// Results are ordered newest first, ties keeping generation order, and the
// filter is applied last.
func EvaluateAlerts(products []ProductRecord, recent []SalesRecord, since, now time.Time, filter AlertFilter) []Alert {
	active := make([]SalesRecord, 0, len(recent))
	for _, rec := range recent {
		if rec.IsActive && !rec.CreatedDate.Before(since) {
			active = append(active, rec)
		}
	}

	msg := message.NewPrinter(language.English)
	alerts := make([]Alert, 0, 8)
	alerts = append(alerts, inventoryAlerts(msg, products, now)...)
	alerts = append(alerts, salesAlerts(msg, active, since, now)...)
	alerts = append(alerts, performanceAlerts(msg, products, active, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})

	out := alerts[:0]
	for _, a := range alerts {
		if filter.match(a) {
			out = append(out, a)
		}
	}
	return out
}

func inventoryAlerts(msg *message.Printer, products []ProductRecord, now time.Time) []Alert {
	var alerts []Alert
	var outOfStock, lowStock, highValue int
	highValueTotal := decimal.Zero
	for _, p := range products {
		status := ClassifyStock(p)
		if p.IsActive && status == StockOut {
			outOfStock++
		}
		if p.IsActive && status == StockLow {
			lowStock++
		}
		if value := p.StockValue(); value.GreaterThan(highValueInventoryThreshold) {
			highValue++
			highValueTotal = highValueTotal.Add(value)
		}
	}

	if outOfStock > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertInventory,
			Severity:          SeverityHigh,
			Title:             "Products Out of Stock",
			Message:           msg.Sprintf("%d active products are currently out of stock", outOfStock),
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Reorder stock for out-of-stock products",
			Data:              map[string]any{"ProductCount": outOfStock},
		})
	}
	if lowStock > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertInventory,
			Severity:          SeverityMedium,
			Title:             "Low Stock Warning",
			Message:           msg.Sprintf("%d products have low stock levels", lowStock),
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Review and reorder low stock products",
			Data:              map[string]any{"ProductCount": lowStock},
		})
	}
	if highValue > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertInventory,
			Severity:          SeverityInfo,
			Title:             "High Value Inventory",
			Message:           msg.Sprintf("%d products have high inventory value", highValue),
			CreatedAt:         now,
			IsActionable:      false,
			RecommendedAction: "Monitor high-value inventory for optimization opportunities",
			Data:              map[string]any{"ProductCount": highValue, "TotalValue": highValueTotal},
		})
	}
	return alerts
}

func salesAlerts(msg *message.Printer, active []SalesRecord, since, now time.Time) []Alert {
	days := int(now.Sub(since).Hours() / 24)
	if len(active) == 0 {
		return []Alert{{
			Type:              AlertSales,
			Severity:          SeverityHigh,
			Title:             "No Sales Activity",
			Message:           "No sales recorded since " + since.Format("Jan 02, 2006"),
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Review sales processes and marketing strategies",
			Data:              map[string]any{"DaysSinceLastSale": days},
		}}
	}

	var alerts []Alert
	average := decimal.NewFromInt(int64(len(active))).Div(decimal.NewFromInt(int64(max(1, days))))
	if average.LessThan(decimal.NewFromInt(1)) {
		alerts = append(alerts, Alert{
			Type:              AlertSales,
			Severity:          SeverityMedium,
			Title:             "Low Sales Volume",
			Message:           "Average daily sales (" + average.StringFixed(1) + ") is below expected levels",
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Analyze sales trends and implement improvement strategies",
			Data:              map[string]any{"AverageDailySales": average.Round(2)},
		})
	}

	largeCount := 0
	largeTotal := decimal.Zero
	for _, rec := range active {
		if rec.Total.GreaterThan(largeOrderThreshold) {
			largeCount++
			largeTotal = largeTotal.Add(rec.Total)
		}
	}
	if largeCount > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertSales,
			Severity:          SeverityInfo,
			Title:             "Large Orders Detected",
			Message:           msg.Sprintf("%d orders exceed $%d in value", largeCount, largeOrderThreshold.IntPart()),
			CreatedAt:         now,
			IsActionable:      false,
			RecommendedAction: "Ensure adequate inventory for high-value customers",
			Data:              map[string]any{"LargeOrderCount": largeCount, "TotalValue": largeTotal},
		})
	}
	return alerts
}

func performanceAlerts(msg *message.Printer, products []ProductRecord, active []SalesRecord, now time.Time) []Alert {
	var alerts []Alert
	sold := make(map[uuid.UUID]struct{})
	for _, rec := range active {
		for _, item := range rec.LineItems {
			sold[item.ProductID] = struct{}{}
		}
	}

	inactive, unsold := 0, 0
	for _, p := range products {
		if !p.IsActive {
			inactive++
		}
		if _, ok := sold[p.ID]; !ok {
			unsold++
		}
	}

	if inactive > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertPerformance,
			Severity:          SeverityLow,
			Title:             "Inactive Products",
			Message:           msg.Sprintf("%d products are marked as inactive", inactive),
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Review inactive products for potential reactivation or removal",
			Data:              map[string]any{"InactiveProductCount": inactive},
		})
	}
	if unsold > 0 {
		alerts = append(alerts, Alert{
			Type:              AlertPerformance,
			Severity:          SeverityMedium,
			Title:             "Products with No Sales",
			Message:           msg.Sprintf("%d products have no sales in the selected period", unsold),
			CreatedAt:         now,
			IsActionable:      true,
			RecommendedAction: "Analyze slow-moving products and consider promotional strategies",
			Data:              map[string]any{"ProductCount": unsold},
		})
	}
	return alerts
}
