package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/reporting"
)

var (
	_ reporting.ProductDataProvider = (*PostgresProducts)(nil)
	_ reporting.SalesDataProvider   = (*PostgresSales)(nil)
)

const (
	productColumns = `id, name, is_active, cost_per_item, price, quantity_in_stock, low_stock_threshold`

	selectProducts = `SELECT ` + productColumns + ` FROM products ORDER BY name, id`

	selectLowStockProducts = `SELECT ` + productColumns + `
		FROM products
		WHERE quantity_in_stock <= $1
		ORDER BY quantity_in_stock, name, id`

	selectInvoices = `SELECT id, created_at, is_active, total
		FROM invoices
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`

	selectInvoiceItems = `SELECT invoice_id, product_id, quantity, unit_price
		FROM invoice_items
		WHERE invoice_id = ANY($1::uuid[])
		ORDER BY invoice_id, id`
)

// Querier is the subset of pgx used by catalog reads. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresProducts reads the product catalog.
type PostgresProducts struct {
	q Querier
}

// NewPostgresProducts builds the catalog provider.
func NewPostgresProducts(q Querier) *PostgresProducts {
	return &PostgresProducts{q: q}
}

// FetchAll returns every product, active or not.
func (p *PostgresProducts) FetchAll(ctx context.Context) ([]reporting.ProductRecord, error) {
	return p.query(ctx, selectProducts)
}

// FetchLowStock returns products with at most threshold units on hand.
func (p *PostgresProducts) FetchLowStock(ctx context.Context, threshold int64) ([]reporting.ProductRecord, error) {
	return p.query(ctx, selectLowStockProducts, threshold)
}

func (p *PostgresProducts) query(ctx context.Context, sql string, args ...any) ([]reporting.ProductRecord, error) {
	rows, err := p.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("source: query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reporting.ProductRecord, error) {
		var rec reporting.ProductRecord
		err := row.Scan(&rec.ID, &rec.Name, &rec.IsActive, &rec.CostPerItem, &rec.Price, &rec.QuantityInStock, &rec.LowStockThreshold)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("source: scan products: %w", err)
	}
	return products, nil
}

// PostgresSales reads invoices and their line items from one snapshot.
type PostgresSales struct {
	pool db.Beginner
}

// NewPostgresSales builds the invoice provider. Pass a *pgxpool.Pool.
func NewPostgresSales(pool db.Beginner) *PostgresSales {
	return &PostgresSales{pool: pool}
}

type invoiceItemRow struct {
	invoiceID uuid.UUID
	item      reporting.LineItem
}

// FetchByDateRange returns the invoices created in [start, end) with their
// line items attached.
func (s *PostgresSales) FetchByDateRange(ctx context.Context, start, end time.Time) ([]reporting.SalesRecord, error) {
	var records []reporting.SalesRecord
	err := db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectInvoices, start, end)
		if err != nil {
			return fmt.Errorf("source: query invoices: %w", err)
		}
		records, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (reporting.SalesRecord, error) {
			var rec reporting.SalesRecord
			err := row.Scan(&rec.ID, &rec.CreatedDate, &rec.IsActive, &rec.Total)
			return rec, err
		})
		if err != nil {
			return fmt.Errorf("source: scan invoices: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		ids := lo.Map(records, func(rec reporting.SalesRecord, _ int) string { return rec.ID.String() })
		rows, err = tx.Query(ctx, selectInvoiceItems, ids)
		if err != nil {
			return fmt.Errorf("source: query invoice items: %w", err)
		}
		items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoiceItemRow, error) {
			var r invoiceItemRow
			err := row.Scan(&r.invoiceID, &r.item.ProductID, &r.item.Quantity, &r.item.UnitPrice)
			return r, err
		})
		if err != nil {
			return fmt.Errorf("source: scan invoice items: %w", err)
		}
		attachItems(records, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// attachItems appends each item to its invoice, keeping the row order.
// Items whose invoice is not in records are dropped.
func attachItems(records []reporting.SalesRecord, items []invoiceItemRow) {
	index := make(map[uuid.UUID]int, len(records))
	for i, rec := range records {
		index[rec.ID] = i
	}
	for _, row := range items {
		if i, ok := index[row.invoiceID]; ok {
			records[i].LineItems = append(records[i].LineItems, row.item)
		}
	}
}
