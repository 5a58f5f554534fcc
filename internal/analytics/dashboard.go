package analytics

import (
	"fmt"
	"time"

	"commerce-analytics/internal/stats"

	"golang.org/x/sync/errgroup"
)

const currencySymbol = "$"

// Dashboard labels, in display order.
const (
	MetricTotalRevenue    = "Total Revenue (90d)"
	MetricUnitsSold       = "Units Sold (90d)"
	MetricActiveCustomers = "Active Customers (365d)"
	MetricAvgOrderValue   = "Average Order Value (365d)"
	MetricChampionsShare  = "Champions Share"
	MetricMonth1Retention = "Avg Month-1 Retention"
	MetricVisitToPurchase = "Visit to Purchase (30d)"
	MetricTopProduct      = "Top Product (90d)"
	MetricTopCategory     = "Top Category (YTD)"
	MetricStrongestPair   = "Strongest Product Pair"
	MetricAnomalousDays   = "Anomalous Days (60d)"
)

// DashboardMetric is one headline number. Value is Null when the underlying
// report has no data; Display is the formatted value.
type DashboardMetric struct {
	Label   string          `json:"label"`
	Value   stats.NullFloat `json:"value"`
	Display string          `json:"display"`
}

// DashboardInputs are the analyzer outputs a dashboard is assembled from.
type DashboardInputs struct {
	Cohorts   []CohortRow
	Products  []ProductPerformance
	RFM       []RfmRecord
	Basket    []ProductPair
	Funnel    []FunnelStage
	Anomalies []DailySalesStat
	Pivot     []CategoryPivotRow
}

// Dashboard runs the analyzers the headline metrics derive from over their
// own windows and assembles them. The analyzers run concurrently.
func (e *Engine) Dashboard(snap *Snapshot, asOf time.Time) ([]DashboardMetric, error) {
	if _, err := e.prepare(snap); err != nil {
		return nil, err
	}

	var in DashboardInputs
	var g errgroup.Group
	g.SetLimit(e.workers())
	g.Go(func() (err error) { in.Cohorts, err = e.CohortRetention(snap, asOf); return })
	g.Go(func() (err error) { in.Products, err = e.ProductSummaries(snap, asOf); return })
	g.Go(func() (err error) { in.RFM, err = e.RFM(snap, asOf); return })
	g.Go(func() (err error) { in.Basket, err = e.MarketBasket(snap, asOf); return })
	g.Go(func() (err error) { in.Funnel, err = e.Funnel(snap, asOf); return })
	g.Go(func() (err error) { in.Anomalies, err = e.SalesAnomalies(snap, asOf); return })
	g.Go(func() (err error) { in.Pivot, err = e.CategoryPivot(snap, asOf); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return AssembleDashboard(in), nil
}

// AssembleDashboard computes the headline metrics, in fixed order, purely
// from analyzer outputs.
func AssembleDashboard(in DashboardInputs) []DashboardMetric {
	var revenue float64
	var units int
	for _, p := range in.Products {
		revenue += p.TotalRevenue
		units += p.TotalUnits
	}

	var monetary float64
	var orders, champions int
	for _, r := range in.RFM {
		monetary += r.Monetary
		orders += r.Frequency
		if r.Segment == SegmentChampions {
			champions++
		}
	}

	var month1 []float64
	for _, c := range in.Cohorts {
		if c.MonthsSinceSignup == 1 && c.RetentionRate.Valid {
			month1 = append(month1, c.RetentionRate.Float64)
		}
	}

	visitToPurchase := stats.Null
	if n := len(in.Funnel); n > 0 {
		visitToPurchase = stats.Percent(float64(in.Funnel[n-1].Users), float64(in.Funnel[0].Users))
	}

	anomalous := 0
	for _, d := range in.Anomalies {
		if d.IsAnomaly {
			anomalous++
		}
	}

	out := []DashboardMetric{
		currencyMetric(MetricTotalRevenue, stats.Value(revenue)),
		countMetric(MetricUnitsSold, units),
		countMetric(MetricActiveCustomers, len(in.RFM)),
		currencyMetric(MetricAvgOrderValue, stats.Ratio(monetary, float64(orders))),
		percentMetric(MetricChampionsShare, stats.Percent(float64(champions), float64(len(in.RFM)))),
		percentMetric(MetricMonth1Retention, stats.Mean(month1)),
		percentMetric(MetricVisitToPurchase, visitToPurchase),
	}

	top := DashboardMetric{Label: MetricTopProduct, Value: stats.Null, Display: notAvailable}
	if len(in.Products) > 0 {
		p := in.Products[0]
		top.Value = stats.Value(p.TotalRevenue)
		top.Display = fmt.Sprintf("%s (%s)", p.ProductName, FormatCurrency(p.TotalRevenue, currencySymbol))
	}
	out = append(out, top)

	cat := DashboardMetric{Label: MetricTopCategory, Value: stats.Null, Display: notAvailable}
	if len(in.Pivot) > 0 {
		c := in.Pivot[0]
		cat.Value = stats.Value(c.AnnualTotal)
		cat.Display = fmt.Sprintf("%s (%s)", c.CategoryName, FormatCurrency(c.AnnualTotal, currencySymbol))
	}
	out = append(out, cat)

	pair := DashboardMetric{Label: MetricStrongestPair, Value: stats.Null, Display: notAvailable}
	if len(in.Basket) > 0 {
		b := in.Basket[0]
		pair.Value = stats.Value(b.Lift)
		pair.Display = fmt.Sprintf("%s + %s (lift %.4f)", b.Product1Name, b.Product2Name, b.Lift)
	}
	out = append(out, pair)

	return append(out, countMetric(MetricAnomalousDays, anomalous))
}

func currencyMetric(label string, v stats.NullFloat) DashboardMetric {
	v = v.Round(2)
	m := DashboardMetric{Label: label, Value: v, Display: notAvailable}
	if v.Valid {
		m.Display = FormatCurrency(v.Float64, currencySymbol)
	}
	return m
}

func countMetric(label string, n int) DashboardMetric {
	return DashboardMetric{Label: label, Value: stats.Value(float64(n)), Display: FormatInt(n)}
}

func percentMetric(label string, v stats.NullFloat) DashboardMetric {
	v = v.Round(2)
	return DashboardMetric{Label: label, Value: v, Display: FormatPercent(v)}
}
