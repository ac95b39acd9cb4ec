package reporting

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Comparison carries the records of the baseline window used for growth rates.
type Comparison struct {
	Records []SalesRecord
}

// StockStatus classifies a product's inventory position.
type StockStatus int

const (
	StockInStock StockStatus = iota
	StockLow
	StockOut
)

// ClassifyStock evaluates out-of-stock first, then low stock (at or below the
// threshold), then in stock.
func ClassifyStock(p ProductRecord) StockStatus {
	switch {
	case p.QuantityInStock <= 0:
		return StockOut
	case p.QuantityInStock <= p.LowStockThreshold:
		return StockLow
	default:
		return StockInStock
	}
}

// Growth returns (curr-prev)/prev. A zero baseline yields 1 when curr is
// positive and 0 otherwise.
func Growth(prev, curr decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		if curr.IsPositive() {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}
	return curr.Sub(prev).Div(prev)
}

type salesTotals struct {
	revenue decimal.Decimal
	orders  int
	aov     decimal.Decimal
}

func summariseSales(records []SalesRecord) salesTotals {
	active := activeRecords(records)
	revenue := decimal.Sum(decimal.Zero, lo.Map(active, func(rec SalesRecord, _ int) decimal.Decimal {
		return rec.Total
	})...)
	orders := len(active)
	return salesTotals{
		revenue: revenue,
		orders:  orders,
		aov:     safeDiv(revenue, decimal.NewFromInt(int64(orders))),
	}
}

// soldCost sums costPerItem × quantity over every line item of the active
// records. Unknown product ids contribute zero.
func soldCost(records []SalesRecord, costs costIndex) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		if !rec.IsActive {
			continue
		}
		for _, item := range rec.LineItems {
			total = total.Add(costs.lookup(item.ProductID).Mul(decimal.NewFromInt(item.Quantity)))
		}
	}
	return total
}

func inventoryValue(products []ProductRecord) decimal.Decimal {
	return lo.Reduce(products, func(acc decimal.Decimal, p ProductRecord, _ int) decimal.Decimal {
		return acc.Add(p.StockValue())
	}, decimal.Zero)
}

// ComputeKPIs derives the headline metrics for the current records. Growth
// fields are populated only when comparison is non-nil.
func ComputeKPIs(current []SalesRecord, products []ProductRecord, comparison *Comparison) KPISnapshot {
	totals := summariseSales(current)
	invValue := inventoryValue(products)
	cost := soldCost(current, newCostIndex(products))

	snap := KPISnapshot{
		Revenue:           totals.revenue,
		Orders:            totals.orders,
		AverageOrderValue: totals.aov,
		InventoryValue:    invValue,
		InventoryTurnover: safeDiv(cost, invValue),
		GrossMargin:       safeDiv(totals.revenue.Sub(cost), totals.revenue),
	}
	for _, p := range products {
		if p.IsActive {
			snap.ActiveProducts++
		}
		switch ClassifyStock(p) {
		case StockLow:
			snap.LowStockProducts++
		case StockOut:
			snap.OutOfStockProducts++
		}
	}

	if comparison != nil {
		prev := summariseSales(comparison.Records)
		revenueGrowth := Growth(prev.revenue, totals.revenue)
		orderGrowth := Growth(decimal.NewFromInt(int64(prev.orders)), decimal.NewFromInt(int64(totals.orders)))
		aovGrowth := Growth(prev.aov, totals.aov)
		snap.RevenueGrowth = &revenueGrowth
		snap.OrderGrowth = &orderGrowth
		snap.AOVGrowth = &aovGrowth
	}
	return snap
}
