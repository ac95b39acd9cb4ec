package source

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/odyssey-erp/stockflow/internal/platform/db"
	"github.com/odyssey-erp/stockflow/internal/reporting"
)

func TestAttachItemsGroupsByInvoice(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	records := []reporting.SalesRecord{{ID: a}, {ID: b}}
	p1, p2 := uuid.New(), uuid.New()
	items := []invoiceItemRow{
		{invoiceID: b, item: reporting.LineItem{ProductID: p1, Quantity: 1}},
		{invoiceID: a, item: reporting.LineItem{ProductID: p2, Quantity: 2}},
		{invoiceID: b, item: reporting.LineItem{ProductID: p2, Quantity: 3}},
		{invoiceID: uuid.New(), item: reporting.LineItem{ProductID: p1, Quantity: 9}},
	}

	attachItems(records, items)
	require.Len(t, records[0].LineItems, 1)
	require.Len(t, records[1].LineItems, 2)
	assert.Equal(t, p1, records[1].LineItems[0].ProductID)
	assert.EqualValues(t, 3, records[1].LineItems[1].Quantity)
}

const integrationSchema = `
CREATE TEMP TABLE products (
	id uuid PRIMARY KEY,
	name text NOT NULL,
	is_active boolean NOT NULL,
	cost_per_item numeric(12,2) NOT NULL,
	price numeric(12,2) NOT NULL,
	quantity_in_stock bigint NOT NULL,
	low_stock_threshold bigint NOT NULL
);
CREATE TEMP TABLE invoices (
	id uuid PRIMARY KEY,
	created_at timestamptz NOT NULL,
	is_active boolean NOT NULL,
	total numeric(12,2) NOT NULL
);
CREATE TEMP TABLE invoice_items (
	id bigserial PRIMARY KEY,
	invoice_id uuid NOT NULL,
	product_id uuid NOT NULL,
	quantity bigint NOT NULL,
	unit_price numeric(12,2) NOT NULL
);`

// PostgresProviderSuite runs against the database named by
// STOCKFLOW_TEST_PG_DSN using session-scoped temporary tables.
type PostgresProviderSuite struct {
	suite.Suite
	pool *pgxpool.Pool
	ctx  context.Context
}

func TestPostgresProviderSuite(t *testing.T) {
	if os.Getenv("STOCKFLOW_TEST_PG_DSN") == "" {
		t.Skip("STOCKFLOW_TEST_PG_DSN not set")
	}
	suite.Run(t, new(PostgresProviderSuite))
}

func (s *PostgresProviderSuite) SetupTest() {
	s.ctx = context.Background()
	cfg, err := pgxpool.ParseConfig(os.Getenv("STOCKFLOW_TEST_PG_DSN"))
	s.Require().NoError(err)
	// Temporary tables live on one session.
	cfg.MaxConns = 1
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}
	pool, err := pgxpool.NewWithConfig(s.ctx, cfg)
	s.Require().NoError(err)
	s.pool = pool
	_, err = pool.Exec(s.ctx, integrationSchema)
	s.Require().NoError(err)
}

func (s *PostgresProviderSuite) TearDownTest() {
	s.pool.Close()
}

func (s *PostgresProviderSuite) TestFetchProductsAndInvoices() {
	t := s.T()
	widget, gadget := uuid.New(), uuid.New()
	_, err := s.pool.Exec(s.ctx, `INSERT INTO products VALUES
		($1, 'Widget', true, 2.50, 9.99, 3, 5),
		($2, 'Gadget', false, 10.00, 25.00, 40, 5)`, widget.String(), gadget.String())
	require.NoError(t, err)

	inside, outside := uuid.New(), uuid.New()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.pool.Exec(s.ctx, `INSERT INTO invoices VALUES
		($1, $3, true, 44.97),
		($2, $4, true, 10.00)`, inside.String(), outside.String(), start.Add(time.Hour), start.AddDate(0, 1, 0))
	require.NoError(t, err)
	_, err = s.pool.Exec(s.ctx, `INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price) VALUES
		($1, $2, 3, 9.99), ($1, $3, 1, 15.00), ($4, $2, 1, 10.00)`,
		inside.String(), widget.String(), gadget.String(), outside.String())
	require.NoError(t, err)

	products, err := NewPostgresProducts(s.pool).FetchAll(s.ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Gadget", products[0].Name)
	assert.True(t, products[1].Price.Equal(decimal.RequireFromString("9.99")))

	low, err := NewPostgresProducts(s.pool).FetchLowStock(s.ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, widget, low[0].ID)

	records, err := NewPostgresSales(s.pool).FetchByDateRange(s.ctx, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, inside, records[0].ID)
	assert.True(t, records[0].Total.Equal(decimal.RequireFromString("44.97")))
	require.Len(t, records[0].LineItems, 2)
	assert.EqualValues(t, 3, records[0].LineItems[0].Quantity)
}

func (s *PostgresProviderSuite) TestSnapshotIsReadOnly() {
	err := db.WithSnapshot(s.ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(s.ctx, `INSERT INTO invoices VALUES ($1, now(), true, 1)`, uuid.New().String())
		return err
	})
	s.Error(err)
}
