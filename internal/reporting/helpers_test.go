package reporting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expectDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s got %s", name, want, got.String())
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func product(name string, stock, threshold int64, cost, price string) ProductRecord {
	return ProductRecord{
		ID:                uuid.New(),
		Name:              name,
		IsActive:          true,
		CostPerItem:       dec(cost),
		Price:             dec(price),
		QuantityInStock:   stock,
		LowStockThreshold: threshold,
	}
}

func sale(at time.Time, total string, items ...LineItem) SalesRecord {
	return SalesRecord{
		ID:          uuid.New(),
		CreatedDate: at,
		IsActive:    true,
		Total:       dec(total),
		LineItems:   items,
	}
}

func item(p ProductRecord, qty int64, unitPrice string) LineItem {
	return LineItem{ProductID: p.ID, Quantity: qty, UnitPrice: dec(unitPrice)}
}
