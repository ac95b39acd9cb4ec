package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/stockflow/internal/reporting"
)

// WriteKPICSV serialises a KPI snapshot to a CSV representation. Growth rows
// are written only when the snapshot carries them.
func WriteKPICSV(w io.Writer, snap reporting.KPISnapshot, rng reporting.TimeRange) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Start", formatTime(rng.Start)},
		{"End", formatTime(rng.End)},
		{"Revenue", formatMoney(snap.Revenue)},
		{"Orders", strconv.Itoa(snap.Orders)},
		{"Average Order Value", formatMoney(snap.AverageOrderValue)},
		{"Inventory Value", formatMoney(snap.InventoryValue)},
		{"Inventory Turnover", formatRatio(snap.InventoryTurnover)},
		{"Gross Margin", formatRatio(snap.GrossMargin)},
		{"Active Products", strconv.Itoa(snap.ActiveProducts)},
		{"Low Stock Products", strconv.Itoa(snap.LowStockProducts)},
		{"Out of Stock Products", strconv.Itoa(snap.OutOfStockProducts)},
	}
	growth := []struct {
		label string
		value *decimal.Decimal
	}{
		{"Revenue Growth", snap.RevenueGrowth},
		{"Order Growth", snap.OrderGrowth},
		{"AOV Growth", snap.AOVGrowth},
	}
	for _, g := range growth {
		if g.value != nil {
			records = append(records, []string{g.label, formatRatio(*g.value)})
		}
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePerformanceCSV emits one row per ranked product.
func WritePerformanceCSV(w io.Writer, rows []reporting.ProfitabilityRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{
		"Product ID", "Product", "Revenue", "Cost", "Profit", "Profit Margin",
		"Units Sold", "Profit Per Unit", "Times Ordered", "Average Order Quantity",
		"Current Stock", "Current Value",
	}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.ProductID.String(),
			row.ProductName,
			formatMoney(row.Revenue),
			formatMoney(row.Cost),
			formatMoney(row.Profit),
			formatRatio(row.ProfitMargin),
			strconv.FormatInt(row.UnitsSold, 10),
			formatMoney(row.ProfitPerUnit),
			strconv.Itoa(row.TimesOrdered),
			formatRatio(row.AverageOrderQuantity),
			strconv.FormatInt(row.CurrentStock, 10),
			formatMoney(row.CurrentValue),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAlertsCSV prints alerts to CSV.
func WriteAlertsCSV(w io.Writer, alerts []reporting.Alert) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Created At", "Type", "Severity", "Title", "Message", "Actionable", "Recommended Action"}); err != nil {
		return err
	}
	for _, alert := range alerts {
		if err := writer.Write([]string{
			formatTime(alert.CreatedAt),
			string(alert.Type),
			string(alert.Severity),
			alert.Title,
			alert.Message,
			strconv.FormatBool(alert.IsActionable),
			alert.RecommendedAction,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatMoney(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func formatRatio(v decimal.Decimal) string {
	return v.StringFixed(4)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
