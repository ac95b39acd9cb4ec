package reporting

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TimeRange is a half-open window [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Validate rejects windows whose start falls after their end.
func (r TimeRange) Validate() error {
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// Contains reports whether t lies inside the window.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// LineItem is a single product entry within a sales record.
type LineItem struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal is the extended price of the item.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
}

// SalesRecord is an invoice snapshot supplied by a SalesDataProvider.
type SalesRecord struct {
	ID          uuid.UUID       `json:"id"`
	CreatedDate time.Time       `json:"createdDate"`
	IsActive    bool            `json:"isActive"`
	Total       decimal.Decimal `json:"total"`
	LineItems   []LineItem      `json:"lineItems"`
}

// ProductRecord is a catalog snapshot supplied by a ProductDataProvider.
type ProductRecord struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	IsActive          bool            `json:"isActive"`
	CostPerItem       decimal.Decimal `json:"costPerItem"`
	Price             decimal.Decimal `json:"price"`
	QuantityInStock   int64           `json:"quantityInStock"`
	LowStockThreshold int64           `json:"lowStockThreshold"`
}

// StockValue is the cost basis of the units on hand.
func (p ProductRecord) StockValue() decimal.Decimal {
	return p.CostPerItem.Mul(decimal.NewFromInt(p.QuantityInStock))
}

// DataPoint is one aggregate per bucket.
type DataPoint struct {
	BucketStart time.Time       `json:"bucketStart"`
	Label       string          `json:"label"`
	Value       decimal.Decimal `json:"value"`
}

// KPISnapshot carries the headline metrics for a window. Growth fields are nil
// when no comparison window was requested.
type KPISnapshot struct {
	Revenue            decimal.Decimal  `json:"revenue"`
	RevenueGrowth      *decimal.Decimal `json:"revenueGrowth,omitempty"`
	Orders             int              `json:"orders"`
	OrderGrowth        *decimal.Decimal `json:"orderGrowth,omitempty"`
	AverageOrderValue  decimal.Decimal  `json:"averageOrderValue"`
	AOVGrowth          *decimal.Decimal `json:"averageOrderValueGrowth,omitempty"`
	InventoryValue     decimal.Decimal  `json:"inventoryValue"`
	InventoryTurnover  decimal.Decimal  `json:"inventoryTurnover"`
	GrossMargin        decimal.Decimal  `json:"grossMargin"`
	ActiveProducts     int              `json:"activeProducts"`
	LowStockProducts   int              `json:"lowStockProducts"`
	OutOfStockProducts int              `json:"outOfStockProducts"`
}

// ProfitabilityRow summarises revenue and cost for a single product.
type ProfitabilityRow struct {
	ProductID            uuid.UUID       `json:"productId"`
	ProductName          string          `json:"productName"`
	Revenue              decimal.Decimal `json:"revenue"`
	Cost                 decimal.Decimal `json:"cost"`
	Profit               decimal.Decimal `json:"profit"`
	ProfitMargin         decimal.Decimal `json:"profitMargin"`
	UnitsSold            int64           `json:"unitsSold"`
	ProfitPerUnit        decimal.Decimal `json:"profitPerUnit"`
	TimesOrdered         int             `json:"timesOrdered"`
	AverageOrderQuantity decimal.Decimal `json:"averageOrderQuantity"`
	CurrentStock         int64           `json:"currentStock"`
	CurrentValue         decimal.Decimal `json:"currentValue"`
}

// PeriodProfitabilityRow summarises revenue and cost for one bucket.
type PeriodProfitabilityRow struct {
	PeriodStart  time.Time       `json:"periodStart"`
	Label        string          `json:"label"`
	Revenue      decimal.Decimal `json:"revenue"`
	Cost         decimal.Decimal `json:"cost"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitMargin decimal.Decimal `json:"profitMargin"`
}

// activeRecords returns the records that count towards sales aggregates.
func activeRecords(records []SalesRecord) []SalesRecord {
	return lo.Filter(records, func(rec SalesRecord, _ int) bool { return rec.IsActive })
}

// costIndex resolves a product's unit cost, treating unknown ids as zero cost.
type costIndex map[uuid.UUID]decimal.Decimal

func newCostIndex(products []ProductRecord) costIndex {
	return lo.SliceToMap(products, func(p ProductRecord) (uuid.UUID, decimal.Decimal) {
		return p.ID, p.CostPerItem
	})
}

func (c costIndex) lookup(id uuid.UUID) decimal.Decimal {
	if cost, ok := c[id]; ok {
		return cost
	}
	return decimal.Zero
}

// safeDiv returns num/den, or zero when den is zero.
func safeDiv(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}
