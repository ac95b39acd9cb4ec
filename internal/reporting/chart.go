package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ChartType discriminates the supported chart payloads.
type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartDoughnut ChartType = "doughnut"
	ChartPie      ChartType = "pie"
	ChartArea     ChartType = "area"
)

const defaultChartLimit = 10

// ParseChartType resolves a chart discriminator. Unknown values are rejected.
func ParseChartType(value string) (ChartType, error) {
	switch t := ChartType(strings.ToLower(strings.TrimSpace(value))); t {
	case ChartLine, ChartBar, ChartDoughnut, ChartPie, ChartArea:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChartType, value)
	}
}

// ChartFilters tune chart construction. Bar charts rank by revenue
// regardless of SortBy.
type ChartFilters struct {
	GroupBy string `json:"groupBy,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	SortBy  string `json:"sortBy,omitempty"`
}

// Dataset is one renderer-agnostic series.
type Dataset struct {
	Label           string            `json:"label"`
	Values          []decimal.Decimal `json:"data"`
	Type            string            `json:"type,omitempty"`
	BorderColor     string            `json:"borderColor,omitempty"`
	BackgroundColor string            `json:"backgroundColor,omitempty"`
	Colors          []string          `json:"colors,omitempty"`
	Fill            bool              `json:"fill,omitempty"`
}

// ChartPayload is a chart-ready result. Every dataset has one value per label.
type ChartPayload struct {
	ChartType ChartType `json:"chartType"`
	Title     string    `json:"title"`
	Labels    []string  `json:"labels"`
	Datasets  []Dataset `json:"datasets"`
}

// BuildChart constructs the payload for chartType from already-fetched
// snapshots. Records outside a non-zero rng are ignored.
func BuildChart(chartType ChartType, rng TimeRange, records []SalesRecord, products []ProductRecord, filters ChartFilters) (ChartPayload, error) {
	if !rng.IsZero() {
		records = recordsInRange(records, rng)
	}

	var payload ChartPayload
	switch chartType {
	case ChartLine:
		payload = lineChart(records, chartGranularity(filters.GroupBy))
	case ChartArea:
		payload = areaChart(records, chartGranularity(filters.GroupBy))
	case ChartBar:
		payload = barChart(records, products, filters)
	case ChartDoughnut, ChartPie:
		payload = inventoryChart(chartType, products)
	default:
		return ChartPayload{}, fmt.Errorf("%w: %q", ErrUnsupportedChartType, chartType)
	}
	if err := validatePayload(payload); err != nil {
		return ChartPayload{}, err
	}
	return payload, nil
}

// chartGranularity defaults to daily buckets when no grouping was requested.
func chartGranularity(groupBy string) Granularity {
	if strings.TrimSpace(groupBy) == "" {
		return GranularityDay
	}
	return ParseGranularity(groupBy)
}

func recordsInRange(records []SalesRecord, rng TimeRange) []SalesRecord {
	return lo.Filter(records, func(rec SalesRecord, _ int) bool { return rng.Contains(rec.CreatedDate) })
}

func lineChart(records []SalesRecord, g Granularity) ChartPayload {
	buckets := Bucketize(activeRecords(records), g, func(r SalesRecord) time.Time { return r.CreatedDate })
	labels := make([]string, 0, len(buckets))
	revenue := make([]decimal.Decimal, 0, len(buckets))
	orders := make([]decimal.Decimal, 0, len(buckets))
	for _, b := range buckets {
		labels = append(labels, g.Label(b.Start))
		revenue = append(revenue, summariseSales(b.Items).revenue)
		orders = append(orders, decimal.NewFromInt(int64(len(b.Items))))
	}
	return ChartPayload{
		ChartType: ChartLine,
		Title:     "Revenue and Orders Trend",
		Labels:    labels,
		Datasets: []Dataset{
			{Label: "Revenue", Values: revenue, Type: "line", BorderColor: "#3B82F6", BackgroundColor: "rgba(59, 130, 246, 0.1)"},
			{Label: "Orders", Values: orders, Type: "line", BorderColor: "#10B981", BackgroundColor: "rgba(16, 185, 129, 0.1)"},
		},
	}
}

func areaChart(records []SalesRecord, g Granularity) ChartPayload {
	buckets := Bucketize(activeRecords(records), g, func(r SalesRecord) time.Time { return r.CreatedDate })
	labels := make([]string, 0, len(buckets))
	cumulative := make([]decimal.Decimal, 0, len(buckets))
	running := decimal.Zero
	for _, b := range buckets {
		running = running.Add(summariseSales(b.Items).revenue)
		labels = append(labels, g.Label(b.Start))
		cumulative = append(cumulative, running)
	}
	return ChartPayload{
		ChartType: ChartArea,
		Title:     "Cumulative Revenue",
		Labels:    labels,
		Datasets: []Dataset{
			{Label: "Cumulative Revenue", Values: cumulative, Type: "line", BorderColor: "#8B5CF6", BackgroundColor: "rgba(139, 92, 246, 0.2)", Fill: true},
		},
	}
}

type productSales struct {
	id       uuid.UUID
	revenue  decimal.Decimal
	quantity int64
}

// aggregateProductSales sums line items per product in first-encountered order.
func aggregateProductSales(records []SalesRecord) []productSales {
	index := make(map[uuid.UUID]int)
	out := make([]productSales, 0)
	for _, rec := range records {
		if !rec.IsActive {
			continue
		}
		for _, item := range rec.LineItems {
			pos, ok := index[item.ProductID]
			if !ok {
				pos = len(out)
				index[item.ProductID] = pos
				out = append(out, productSales{id: item.ProductID})
			}
			out[pos].revenue = out[pos].revenue.Add(item.LineTotal())
			out[pos].quantity += item.Quantity
		}
	}
	return out
}

// barChart ranks products by revenue, or by units when sortBy asks for quantity.
func barChart(records []SalesRecord, products []ProductRecord, filters ChartFilters) ChartPayload {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultChartLimit
	}
	names := make(map[uuid.UUID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}

	sales := aggregateProductSales(records)
	sort.SliceStable(sales, func(i, j int) bool {
		return sales[i].revenue.GreaterThan(sales[j].revenue)
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}

	labels := make([]string, 0, len(sales))
	revenue := make([]decimal.Decimal, 0, len(sales))
	units := make([]decimal.Decimal, 0, len(sales))
	for _, s := range sales {
		name, ok := names[s.id]
		if !ok {
			name = "Unknown"
		}
		labels = append(labels, name)
		revenue = append(revenue, s.revenue)
		units = append(units, decimal.NewFromInt(s.quantity))
	}
	return ChartPayload{
		ChartType: ChartBar,
		Title:     "Top Products by Revenue",
		Labels:    labels,
		Datasets: []Dataset{
			{Label: "Revenue", Values: revenue, Type: "bar", BorderColor: "#1D4ED8", BackgroundColor: "#3B82F6"},
			{Label: "Units Sold", Values: units, Type: "bar", BorderColor: "#047857", BackgroundColor: "#10B981"},
		},
	}
}

func inventoryChart(chartType ChartType, products []ProductRecord) ChartPayload {
	var inStock, low, out int64
	for _, p := range products {
		switch ClassifyStock(p) {
		case StockOut:
			out++
		case StockLow:
			low++
		default:
			inStock++
		}
	}
	return ChartPayload{
		ChartType: chartType,
		Title:     "Inventory Status Distribution",
		Labels:    []string{"In Stock", "Low Stock", "Out of Stock"},
		Datasets: []Dataset{
			{
				Label:  "Products",
				Values: []decimal.Decimal{decimal.NewFromInt(inStock), decimal.NewFromInt(low), decimal.NewFromInt(out)},
				Type:   string(chartType),
				Colors: []string{"#10B981", "#F59E0B", "#EF4444"},
			},
		},
	}
}

func validatePayload(p ChartPayload) error {
	for _, ds := range p.Datasets {
		if len(ds.Values) != len(p.Labels) {
			return fmt.Errorf("%w: dataset %q has %d values for %d labels", ErrInternalInvariant, ds.Label, len(ds.Values), len(p.Labels))
		}
		if len(ds.Colors) > 0 && len(ds.Colors) != len(p.Labels) {
			return fmt.Errorf("%w: dataset %q has %d colors for %d labels", ErrInternalInvariant, ds.Label, len(ds.Colors), len(p.Labels))
		}
	}
	return nil
}
