package analytics

import (
	"sort"
	"time"

	"commerce-analytics/internal/stats"
	"commerce-analytics/internal/window"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CohortRow is the activity of one signup-month cohort m months after signup.
type CohortRow struct {
	CohortMonth          string          `json:"cohort_month"`
	CohortSize           int             `json:"cohort_size"`
	MonthsSinceSignup    int             `json:"months_since_signup"`
	ActiveUsers          int             `json:"active_users"`
	TotalOrders          int             `json:"total_orders"`
	TotalRevenue         float64         `json:"total_revenue"`
	RetentionRate        stats.NullFloat `json:"retention_rate"`
	RevenuePerActiveUser stats.NullFloat `json:"revenue_per_active_user"`
	CumulativeRevenue    float64         `json:"cumulative_revenue"`
}

type cohortKey struct {
	cohort time.Time
	month  int
}

type cohortCell struct {
	key     cohortKey
	users   map[int64]bool
	orders  int
	revenue decimal.Decimal
}

// CohortRetention groups users by signup month and reports, for every later
// month with activity, active users, orders, revenue and retention rate
// (active users ÷ cohort size, as a percentage). Only orders placed on or
// after the user's own signup count.
func (e *Engine) CohortRetention(snap *Snapshot, asOf time.Time) ([]CohortRow, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	sizes := make(map[time.Time]int)
	for _, u := range ds.users {
		if !u.SignupAt.Before(asOf) {
			continue
		}
		sizes[monthStart(u.SignupAt)]++
	}

	cells := make(map[cohortKey]*cohortCell)
	for _, o := range ds.orders {
		u := ds.users[o.UserID]
		if !o.OrderedAt.Before(asOf) || o.OrderedAt.Before(u.SignupAt) || !u.SignupAt.Before(asOf) {
			continue
		}
		cohort := monthStart(u.SignupAt)
		k := cohortKey{cohort: cohort, month: monthsBetween(cohort, o.OrderedAt)}
		c, ok := cells[k]
		if !ok {
			c = &cohortCell{key: k, users: make(map[int64]bool)}
			cells[k] = c
		}
		c.users[o.UserID] = true
		c.orders++
		c.revenue = c.revenue.Add(o.Total)
	}

	ordered := make([]*cohortCell, 0, len(cells))
	for k, c := range cells {
		if sizes[k.cohort] == 0 {
			e.logger.Warn("Cohort without members excluded",
				zap.String("entity", "cohort"),
				zap.String("cohort_month", k.cohort.Format(dateLayout)))
			continue
		}
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].key, ordered[j].key
		if !a.cohort.Equal(b.cohort) {
			return a.cohort.Before(b.cohort)
		}
		return a.month < b.month
	})

	revenues := make([]float64, len(ordered))
	for i, c := range ordered {
		revenues[i] = money(c.revenue)
	}
	cumulative := window.Apply(ordered, window.Spec[*cohortCell, time.Time]{
		PartitionBy: func(c *cohortCell) time.Time { return c.key.cohort },
		Value:       func(c *cohortCell) float64 { return money(c.revenue) },
		Frame:       window.UnboundedPreceding(),
		Workers:     e.cfg.Workers,
	})

	rows := make([]CohortRow, 0, len(ordered))
	for i, c := range ordered {
		size := sizes[c.key.cohort]
		active := len(c.users)
		rows = append(rows, CohortRow{
			CohortMonth:          c.key.cohort.Format(dateLayout),
			CohortSize:           size,
			MonthsSinceSignup:    c.key.month,
			ActiveUsers:          active,
			TotalOrders:          c.orders,
			TotalRevenue:         stats.Round(revenues[i], 2),
			RetentionRate:        stats.Percent(float64(active), float64(size)).Round(2),
			RevenuePerActiveUser: stats.Ratio(revenues[i], float64(active)).Round(2),
			CumulativeRevenue:    stats.Round(cumulative[i].Sum, 2),
		})
	}
	return rows, nil
}
