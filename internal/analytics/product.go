package analytics

import (
	"cmp"
	"sort"
	"time"

	"commerce-analytics/internal/stats"
	"commerce-analytics/internal/window"

	"github.com/shopspring/decimal"
)

const (
	productWindowDays = 90
	movingAvgRows     = 7
)

// Performance tiers
const (
	TierTopPerformer    = "Top Performer"
	TierAverage         = "Average"
	TierUnderperforming = "Underperforming"
)

// ProductDailyStat is one product's sales on one day with its moving
// statistics and same-day standing inside its category.
type ProductDailyStat struct {
	ProductID           int64   `json:"product_id"`
	ProductName         string  `json:"product_name"`
	CategoryID          int64   `json:"category_id"`
	Date                string  `json:"sale_date"`
	UnitsSold           int     `json:"units_sold"`
	Revenue             float64 `json:"revenue"`
	Profit              float64 `json:"profit"`
	MovingAvgUnits7d    float64 `json:"moving_avg_units_7d"`
	MovingAvgRevenue7d  float64 `json:"moving_avg_revenue_7d"`
	CumulativeRevenue   float64 `json:"cumulative_revenue"`
	CategoryDailyRank   int     `json:"category_daily_rank"`
	CategoryPercentRank float64 `json:"category_percent_rank"`
}

// ProductPerformance is a product's rollup over the trailing 90 days.
type ProductPerformance struct {
	ProductID             int64           `json:"product_id"`
	ProductName           string          `json:"product_name"`
	CategoryID            int64           `json:"category_id"`
	CategoryName          string          `json:"category_name"`
	DaysWithSales         int             `json:"days_with_sales"`
	TotalUnits            int             `json:"total_units"`
	TotalRevenue          float64         `json:"total_revenue"`
	TotalProfit           float64         `json:"total_profit"`
	ProfitMargin          stats.NullFloat `json:"profit_margin"`
	AvgDailyRevenue       float64         `json:"avg_daily_revenue"`
	CategoryAvgRevenue    stats.NullFloat `json:"category_avg_daily_revenue"`
	CategoryStdDevRevenue stats.NullFloat `json:"category_stddev_daily_revenue"`
	PerformanceTier       string          `json:"performance_tier"`
}

type productDay struct {
	productID  int64
	categoryID int64
	day        time.Time
	units      int
	revenue    decimal.Decimal
	profit     decimal.Decimal
}

type categoryDay struct {
	category int64
	day      time.Time
}

// ProductDailyStats reports per product and day over the trailing 90 days,
// ordered by product then date.
func (e *Engine) ProductDailyStats(snap *Snapshot, asOf time.Time) ([]ProductDailyStat, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	days := aggregateProductDays(ds, asOf)
	return e.productDailyStats(ds, days), nil
}

// ProductSummaries rolls the trailing 90 days up per product and classifies
// each against its category's mean ± one standard deviation of daily
// revenue. Ordered by revenue descending.
func (e *Engine) ProductSummaries(snap *Snapshot, asOf time.Time) ([]ProductPerformance, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	days := aggregateProductDays(ds, asOf)
	return summarizeProducts(ds, days), nil
}

func aggregateProductDays(ds *dataset, asOf time.Time) []*productDay {
	start := asOf.AddDate(0, 0, -productWindowDays)

	type key struct {
		product int64
		day     time.Time
	}
	byKey := make(map[key]*productDay)
	for _, it := range ds.items {
		o := ds.orderByID[it.OrderID]
		if !within(o.OrderedAt, start, asOf) {
			continue
		}
		p := ds.products[it.ProductID]
		k := key{product: p.ID, day: dayStart(o.OrderedAt)}
		d, ok := byKey[k]
		if !ok {
			d = &productDay{productID: p.ID, categoryID: p.CategoryID, day: k.day}
			byKey[k] = d
		}
		revenue := it.Revenue()
		d.units += it.Quantity
		d.revenue = d.revenue.Add(revenue)
		d.profit = d.profit.Add(revenue.Sub(p.Cost.Mul(decimal.NewFromInt(int64(it.Quantity)))))
	}

	days := make([]*productDay, 0, len(byKey))
	for _, d := range byKey {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		if days[i].productID != days[j].productID {
			return days[i].productID < days[j].productID
		}
		return days[i].day.Before(days[j].day)
	})
	return days
}

func (e *Engine) productDailyStats(ds *dataset, days []*productDay) []ProductDailyStat {
	byProduct := func(d *productDay) int64 { return d.productID }
	byDay := func(a, b *productDay) int { return a.day.Compare(b.day) }

	units := window.Apply(days, window.Spec[*productDay, int64]{
		PartitionBy: byProduct,
		OrderBy:     byDay,
		Value:       func(d *productDay) float64 { return float64(d.units) },
		Frame:       window.Preceding(movingAvgRows - 1),
		Workers:     e.cfg.Workers,
	})
	revenue := window.Apply(days, window.Spec[*productDay, int64]{
		PartitionBy: byProduct,
		OrderBy:     byDay,
		Value:       func(d *productDay) float64 { return money(d.revenue) },
		Frame:       window.Preceding(movingAvgRows - 1),
		Workers:     e.cfg.Workers,
	})
	cumulative := window.Apply(days, window.Spec[*productDay, int64]{
		PartitionBy: byProduct,
		OrderBy:     byDay,
		Value:       func(d *productDay) float64 { return money(d.revenue) },
		Frame:       window.UnboundedPreceding(),
		Workers:     e.cfg.Workers,
	})
	ranks := window.Apply(days, window.Spec[*productDay, categoryDay]{
		PartitionBy: func(d *productDay) categoryDay { return categoryDay{d.categoryID, d.day} },
		OrderBy: func(a, b *productDay) int {
			return b.revenue.Cmp(a.revenue)
		},
		Frame:   window.UnboundedPreceding(),
		Workers: e.cfg.Workers,
	})

	out := make([]ProductDailyStat, 0, len(days))
	for i, d := range days {
		out = append(out, ProductDailyStat{
			ProductID:           d.productID,
			ProductName:         ds.products[d.productID].Name,
			CategoryID:          d.categoryID,
			Date:                d.day.Format(dateLayout),
			UnitsSold:           d.units,
			Revenue:             stats.Round(money(d.revenue), 2),
			Profit:              stats.Round(money(d.profit), 2),
			MovingAvgUnits7d:    stats.Round(units[i].Avg, 2),
			MovingAvgRevenue7d:  stats.Round(revenue[i].Avg, 2),
			CumulativeRevenue:   stats.Round(cumulative[i].Sum, 2),
			CategoryDailyRank:   ranks[i].Rank,
			CategoryPercentRank: stats.Round(ranks[i].PercentRank, 4),
		})
	}
	return out
}

type productTotals struct {
	productID int64
	days      int
	units     int
	revenue   decimal.Decimal
	profit    decimal.Decimal
}

func summarizeProducts(ds *dataset, days []*productDay) []ProductPerformance {
	categoryRevenue := make(map[int64][]float64)
	totals := make(map[int64]*productTotals)
	var order []int64
	for _, d := range days {
		categoryRevenue[d.categoryID] = append(categoryRevenue[d.categoryID], money(d.revenue))
		t, ok := totals[d.productID]
		if !ok {
			t = &productTotals{productID: d.productID}
			totals[d.productID] = t
			order = append(order, d.productID)
		}
		t.days++
		t.units += d.units
		t.revenue = t.revenue.Add(d.revenue)
		t.profit = t.profit.Add(d.profit)
	}

	out := make([]ProductPerformance, 0, len(order))
	for _, id := range order {
		t := totals[id]
		p := ds.products[id]
		revenue := money(t.revenue)
		avgDaily := revenue / float64(t.days)

		catValues := categoryRevenue[p.CategoryID]
		mean := stats.Mean(catValues)
		sd := stats.StdDev(catValues)

		out = append(out, ProductPerformance{
			ProductID:             id,
			ProductName:           p.Name,
			CategoryID:            p.CategoryID,
			CategoryName:          ds.categories[p.CategoryID].Name,
			DaysWithSales:         t.days,
			TotalUnits:            t.units,
			TotalRevenue:          stats.Round(revenue, 2),
			TotalProfit:           stats.Round(money(t.profit), 2),
			ProfitMargin:          stats.Percent(money(t.profit), revenue).Round(2),
			AvgDailyRevenue:       stats.Round(avgDaily, 2),
			CategoryAvgRevenue:    mean.Round(2),
			CategoryStdDevRevenue: sd.Round(2),
			PerformanceTier:       classifyTier(avgDaily, mean, sd),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalRevenue != out[j].TotalRevenue {
			return out[i].TotalRevenue > out[j].TotalRevenue
		}
		return cmp.Less(out[i].ProductID, out[j].ProductID)
	})
	return out
}

func classifyTier(value float64, mean, sd stats.NullFloat) string {
	if !mean.Valid || !sd.Valid {
		return TierAverage
	}
	switch {
	case value > mean.Float64+sd.Float64:
		return TierTopPerformer
	case value < mean.Float64-sd.Float64:
		return TierUnderperforming
	default:
		return TierAverage
	}
}
