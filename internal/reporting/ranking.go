package reporting

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SortKey orders product rankings. Every key sorts descending.
type SortKey string

const (
	SortByRevenue      SortKey = "totalRevenue"
	SortByQuantity     SortKey = "totalQuantitySold"
	SortByTimesOrdered SortKey = "timesOrdered"
	SortByCurrentValue SortKey = "currentValue"
	SortByProfit       SortKey = "profit"
)

// ParseSortKey resolves a sort key. Unknown values fall back to SortByRevenue.
func ParseSortKey(value string) SortKey {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "totalquantitysold", "quantity":
		return SortByQuantity
	case "timesordered":
		return SortByTimesOrdered
	case "currentvalue":
		return SortByCurrentValue
	case "profit":
		return SortByProfit
	default:
		return SortByRevenue
	}
}

func (k SortKey) less(a, b ProfitabilityRow) bool {
	switch k {
	case SortByQuantity:
		return a.UnitsSold > b.UnitsSold
	case SortByTimesOrdered:
		return a.TimesOrdered > b.TimesOrdered
	case SortByCurrentValue:
		return a.CurrentValue.GreaterThan(b.CurrentValue)
	case SortByProfit:
		return a.Profit.GreaterThan(b.Profit)
	default:
		return a.Revenue.GreaterThan(b.Revenue)
	}
}

type productTally struct {
	revenue decimal.Decimal
	units   int64
	lines   int
}

// RankProducts builds one row per catalog product from the active records'
// line items and sorts them by key. A positive limit truncates after sorting.
func RankProducts(records []SalesRecord, products []ProductRecord, key SortKey, limit int) []ProfitabilityRow {
	tallies := make(map[uuid.UUID]*productTally, len(products))
	for _, rec := range records {
		if !rec.IsActive {
			continue
		}
		for _, item := range rec.LineItems {
			t, ok := tallies[item.ProductID]
			if !ok {
				t = &productTally{}
				tallies[item.ProductID] = t
			}
			t.revenue = t.revenue.Add(item.LineTotal())
			t.units += item.Quantity
			t.lines++
		}
	}

	rows := make([]ProfitabilityRow, 0, len(products))
	for _, p := range products {
		row := ProfitabilityRow{
			ProductID:    p.ID,
			ProductName:  p.Name,
			CurrentStock: p.QuantityInStock,
			CurrentValue: p.StockValue(),
		}
		if t, ok := tallies[p.ID]; ok {
			row.Revenue = t.revenue
			row.UnitsSold = t.units
			row.TimesOrdered = t.lines
		}
		units := decimal.NewFromInt(row.UnitsSold)
		row.Cost = p.CostPerItem.Mul(units)
		row.Profit = row.Revenue.Sub(row.Cost)
		row.ProfitMargin = safeDiv(row.Profit, row.Revenue)
		row.ProfitPerUnit = safeDiv(row.Profit, units)
		row.AverageOrderQuantity = safeDiv(units, decimal.NewFromInt(int64(row.TimesOrdered)))
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool { return key.less(rows[i], rows[j]) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// RankPeriods reports revenue, cost and profit per bucket in ascending order.
// Revenue is the sum of record totals; cost uses the catalog cost basis.
func RankPeriods(records []SalesRecord, products []ProductRecord, g Granularity) []PeriodProfitabilityRow {
	costs := newCostIndex(products)
	buckets := Bucketize(activeRecords(records), g, func(r SalesRecord) time.Time { return r.CreatedDate })
	rows := make([]PeriodProfitabilityRow, 0, len(buckets))
	for _, b := range buckets {
		revenue := summariseSales(b.Items).revenue
		cost := soldCost(b.Items, costs)
		profit := revenue.Sub(cost)
		rows = append(rows, PeriodProfitabilityRow{
			PeriodStart:  b.Start,
			Label:        g.Label(b.Start),
			Revenue:      revenue,
			Cost:         cost,
			Profit:       profit,
			ProfitMargin: safeDiv(profit, revenue),
		})
	}
	return rows
}
