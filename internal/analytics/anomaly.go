package analytics

import (
	"math"
	"time"

	"commerce-analytics/internal/stats"
	"commerce-analytics/internal/window"

	"github.com/shopspring/decimal"
)

const (
	anomalyWindowDays   = 90
	anomalyBaselineDays = 30
)

// Anomaly types
const (
	AnomalySpike  = "spike"
	AnomalyDrop   = "drop"
	AnomalyNormal = "normal"
)

// DailySalesStat is one day of sales against its trailing 30-day baseline.
type DailySalesStat struct {
	Date              string          `json:"sale_date"`
	OrderCount        int             `json:"order_count"`
	Revenue           float64         `json:"revenue"`
	DistinctCustomers int             `json:"distinct_customers"`
	RollingAvgOrders  float64         `json:"rolling_avg_orders"`
	RollingStdOrders  stats.NullFloat `json:"rolling_std_orders"`
	RollingAvgRevenue float64         `json:"rolling_avg_revenue"`
	RollingStdRevenue stats.NullFloat `json:"rolling_std_revenue"`
	OrdersZScore      stats.NullFloat `json:"orders_z_score"`
	RevenueZScore     stats.NullFloat `json:"revenue_z_score"`
	IsAnomaly         bool            `json:"is_anomaly"`
	AnomalyType       string          `json:"anomaly_type"`
}

type salesDay struct {
	day       time.Time
	orders    int
	revenue   decimal.Decimal
	customers map[int64]bool
}

// SalesAnomalies buckets the 90 days ending at asOf into calendar days,
// including days without orders, and scores order count and revenue
// against a rolling 30-row mean and sample standard deviation. Only the
// latest 60 days are reported; the first 30 seed the baseline. A day is
// anomalous when either |z| exceeds the threshold; z is Null where the
// rolling deviation is undefined or zero.
func (e *Engine) SalesAnomalies(snap *Snapshot, asOf time.Time) ([]DailySalesStat, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	last := lastDay(asOf)
	first := last.AddDate(0, 0, -(anomalyWindowDays - 1))

	days := make([]*salesDay, anomalyWindowDays)
	for i := range days {
		days[i] = &salesDay{day: first.AddDate(0, 0, i), customers: make(map[int64]bool)}
	}
	seen := 0
	for _, o := range ds.orders {
		if !within(o.OrderedAt, first, asOf) {
			continue
		}
		i := int(dayStart(o.OrderedAt).Sub(first).Hours() / 24)
		if i < 0 || i >= len(days) {
			continue
		}
		d := days[i]
		d.orders++
		d.revenue = d.revenue.Add(o.Total)
		d.customers[o.UserID] = true
		seen++
	}
	if seen == 0 {
		return []DailySalesStat{}, nil
	}

	byDay := func(a, b *salesDay) int { return a.day.Compare(b.day) }
	orders := window.Apply(days, window.Spec[*salesDay, struct{}]{
		OrderBy: byDay,
		Value:   func(d *salesDay) float64 { return float64(d.orders) },
		Frame:   window.Preceding(anomalyBaselineDays - 1),
	})
	revenue := window.Apply(days, window.Spec[*salesDay, struct{}]{
		OrderBy: byDay,
		Value:   func(d *salesDay) float64 { return money(d.revenue) },
		Frame:   window.Preceding(anomalyBaselineDays - 1),
	})

	out := make([]DailySalesStat, 0, anomalyWindowDays-anomalyBaselineDays)
	for i := anomalyBaselineDays; i < len(days); i++ {
		d := days[i]
		rev := money(d.revenue)
		zOrders := zScore(float64(d.orders), orders[i])
		zRevenue := zScore(rev, revenue[i])

		row := DailySalesStat{
			Date:              d.day.Format(dateLayout),
			OrderCount:        d.orders,
			Revenue:           stats.Round(rev, 2),
			DistinctCustomers: len(d.customers),
			RollingAvgOrders:  stats.Round(orders[i].Avg, 2),
			RollingStdOrders:  orders[i].StdDev.Round(2),
			RollingAvgRevenue: stats.Round(revenue[i].Avg, 2),
			RollingStdRevenue: revenue[i].StdDev.Round(2),
			OrdersZScore:      zOrders.Round(2),
			RevenueZScore:     zRevenue.Round(2),
			AnomalyType:       AnomalyNormal,
		}
		if z, ok := dominant(zOrders, zRevenue); ok && math.Abs(z) > e.cfg.AnomalyZThreshold {
			row.IsAnomaly = true
			row.AnomalyType = AnomalyDrop
			if z > 0 {
				row.AnomalyType = AnomalySpike
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func zScore(v float64, w window.Row) stats.NullFloat {
	if !w.StdDev.NonZero() {
		return stats.Null
	}
	return stats.Value((v - w.Avg) / w.StdDev.Float64)
}

// dominant returns the defined z with the larger magnitude.
func dominant(a, b stats.NullFloat) (float64, bool) {
	switch {
	case a.Valid && b.Valid:
		if math.Abs(b.Float64) > math.Abs(a.Float64) {
			return b.Float64, true
		}
		return a.Float64, true
	case a.Valid:
		return a.Float64, true
	case b.Valid:
		return b.Float64, true
	}
	return 0, false
}
