package reporting

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func alertTitles(alerts []Alert) []string {
	titles := make([]string, 0, len(alerts))
	for _, a := range alerts {
		titles = append(titles, a.Title)
	}
	return titles
}

func TestEvaluateAlertsStockoutsWithoutSales(t *testing.T) {
	now := day(2024, time.June, 15).Add(9 * time.Hour)
	since := now.AddDate(0, 0, -7)
	products := []ProductRecord{
		product("Empty", 0, 5, "1", "2"),
		product("Scarce", 3, 5, "1", "2"),
		product("Plenty", 50, 5, "1", "2"),
	}

	alerts := EvaluateAlerts(products, nil, since, now, AlertFilter{})
	want := []string{"Products Out of Stock", "Low Stock Warning", "No Sales Activity", "Products with No Sales"}
	if got := alertTitles(alerts); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	if alerts[0].Severity != SeverityHigh || alerts[0].Data["ProductCount"] != 1 {
		t.Fatalf("unexpected out of stock alert %+v", alerts[0])
	}
	if alerts[0].Message != "1 active products are currently out of stock" {
		t.Fatalf("unexpected message %q", alerts[0].Message)
	}
	if alerts[1].Severity != SeverityMedium || alerts[1].Data["ProductCount"] != 1 {
		t.Fatalf("unexpected low stock alert %+v", alerts[1])
	}
	noSales := alerts[2]
	if noSales.Severity != SeverityHigh || !noSales.IsActionable || noSales.Data["DaysSinceLastSale"] != 7 {
		t.Fatalf("unexpected no sales alert %+v", noSales)
	}
	if noSales.Message != "No sales recorded since Jun 08, 2024" {
		t.Fatalf("unexpected message %q", noSales.Message)
	}
	if alerts[3].Data["ProductCount"] != 3 {
		t.Fatalf("expected every product unsold, got %+v", alerts[3].Data)
	}
	for _, a := range alerts {
		if !a.CreatedAt.Equal(now) {
			t.Fatalf("alert %q not stamped with evaluation time", a.Title)
		}
	}
}

func TestEvaluateAlertsIsIdempotent(t *testing.T) {
	now := day(2024, time.June, 15)
	since := now.AddDate(0, 0, -7)
	products := []ProductRecord{product("Empty", 0, 5, "1", "2")}
	records := []SalesRecord{sale(now.AddDate(0, 0, -1), "1500", item(products[0], 1, "1500"))}

	first := EvaluateAlerts(products, records, since, now, AlertFilter{})
	second := EvaluateAlerts(products, records, since, now, AlertFilter{})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical alerts across runs")
	}
}

func TestEvaluateAlertsSalesRules(t *testing.T) {
	now := day(2024, time.June, 15)
	since := now.AddDate(0, 0, -7)
	widget := product("Widget", 100, 5, "1", "2")
	idle := product("Idle", 100, 5, "1", "2")
	idle.IsActive = false

	stale := sale(now.AddDate(0, 0, -30), "5000", item(widget, 1, "5000"))
	voided := sale(now.AddDate(0, 0, -1), "9000", item(widget, 1, "9000"))
	voided.IsActive = false
	records := []SalesRecord{
		sale(now.AddDate(0, 0, -1), "1500", item(widget, 1, "1500")),
		sale(now.AddDate(0, 0, -2), "200", item(widget, 1, "200")),
		sale(now.AddDate(0, 0, -3), "1000.01", item(widget, 1, "1000.01")),
		stale,
		voided,
	}

	alerts := EvaluateAlerts([]ProductRecord{widget, idle}, records, since, now, AlertFilter{})
	want := []string{"Low Sales Volume", "Large Orders Detected", "Inactive Products", "Products with No Sales"}
	if got := alertTitles(alerts); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	if alerts[0].Message != "Average daily sales (0.4) is below expected levels" {
		t.Fatalf("unexpected low volume message %q", alerts[0].Message)
	}
	avg, ok := alerts[0].Data["AverageDailySales"].(decimal.Decimal)
	if !ok {
		t.Fatalf("expected decimal average, got %T", alerts[0].Data["AverageDailySales"])
	}
	expectDecimal(t, "average daily sales", avg, "0.43")

	large := alerts[1]
	if large.Message != "2 orders exceed $1,000 in value" {
		t.Fatalf("unexpected large order message %q", large.Message)
	}
	if large.Data["LargeOrderCount"] != 2 || large.IsActionable {
		t.Fatalf("unexpected large order alert %+v", large)
	}
	total, _ := large.Data["TotalValue"].(decimal.Decimal)
	expectDecimal(t, "large order total", total, "2500.01")
	if alerts[3].Data["ProductCount"] != 1 {
		t.Fatalf("expected only the inactive product unsold, got %+v", alerts[3].Data)
	}
}

func TestEvaluateAlertsHighValueInventory(t *testing.T) {
	now := day(2024, time.June, 15)
	rich := product("Rich", 100, 5, "150", "200")
	records := []SalesRecord{sale(now.AddDate(0, 0, -1), "200", item(rich, 1, "200"))}
	for i := 0; i < 7; i++ {
		records = append(records, sale(now.AddDate(0, 0, -1), "200", item(rich, 1, "200")))
	}

	alerts := EvaluateAlerts([]ProductRecord{rich}, records, now.AddDate(0, 0, -7), now, AlertFilter{})
	if got := alertTitles(alerts); !reflect.DeepEqual(got, []string{"High Value Inventory"}) {
		t.Fatalf("expected only the high value alert, got %v", got)
	}
	total, _ := alerts[0].Data["TotalValue"].(decimal.Decimal)
	expectDecimal(t, "high value total", total, "15000")
}

func TestEvaluateAlertsFilters(t *testing.T) {
	now := day(2024, time.June, 15)
	products := []ProductRecord{
		product("Empty", 0, 5, "1", "2"),
		product("Scarce", 3, 5, "1", "2"),
	}
	since := now.AddDate(0, 0, -7)

	high := EvaluateAlerts(products, nil, since, now, AlertFilter{Severity: "high"})
	if got := alertTitles(high); !reflect.DeepEqual(got, []string{"Products Out of Stock", "No Sales Activity"}) {
		t.Fatalf("unexpected high severity alerts %v", got)
	}

	yes, no := true, false
	for _, a := range EvaluateAlerts(products, nil, since, now, AlertFilter{Actionable: &yes}) {
		if !a.IsActionable {
			t.Fatalf("non actionable alert %q passed the filter", a.Title)
		}
	}
	if got := EvaluateAlerts(products, nil, since, now, AlertFilter{Actionable: &no}); len(got) != 0 {
		t.Fatalf("expected no informational alerts, got %v", alertTitles(got))
	}
}
