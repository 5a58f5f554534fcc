package analytics

import (
	"testing"

	"commerce-analytics/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohortRetention(t *testing.T) {
	f := newFixture().
		user(1, at("2024-01-10")).
		user(2, at("2024-01-20")).
		user(3, at("2024-02-05"))
	f.order(1, at("2024-01-15"), "100")
	f.order(1, at("2024-02-03"), "50")
	f.order(2, at("2024-01-05"), "40") // before signup, ignored
	f.order(2, at("2024-03-01"), "30")
	f.order(3, at("2024-02-10"), "20")
	f.order(3, at("2024-07-02"), "999") // after asOf, ignored

	rows, err := NewEngine(Config{}, nil).CohortRetention(&f.snap, asOf)
	require.NoError(t, err)

	want := []CohortRow{
		{CohortMonth: "2024-01-01", CohortSize: 2, MonthsSinceSignup: 0, ActiveUsers: 1, TotalOrders: 1, TotalRevenue: 100,
			RetentionRate: stats.Value(50), RevenuePerActiveUser: stats.Value(100), CumulativeRevenue: 100},
		{CohortMonth: "2024-01-01", CohortSize: 2, MonthsSinceSignup: 1, ActiveUsers: 1, TotalOrders: 1, TotalRevenue: 50,
			RetentionRate: stats.Value(50), RevenuePerActiveUser: stats.Value(50), CumulativeRevenue: 150},
		{CohortMonth: "2024-01-01", CohortSize: 2, MonthsSinceSignup: 2, ActiveUsers: 1, TotalOrders: 1, TotalRevenue: 30,
			RetentionRate: stats.Value(50), RevenuePerActiveUser: stats.Value(30), CumulativeRevenue: 180},
		{CohortMonth: "2024-02-01", CohortSize: 1, MonthsSinceSignup: 0, ActiveUsers: 1, TotalOrders: 1, TotalRevenue: 20,
			RetentionRate: stats.Value(100), RevenuePerActiveUser: stats.Value(20), CumulativeRevenue: 20},
	}
	assert.Equal(t, want, rows)
}

func TestCohortRetentionRoundsRate(t *testing.T) {
	f := newFixture().
		user(1, at("2024-03-01")).
		user(2, at("2024-03-02")).
		user(3, at("2024-03-03"))
	f.order(1, at("2024-03-04"), "10")

	rows, err := NewEngine(Config{}, nil).CohortRetention(&f.snap, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stats.Value(33.33), rows[0].RetentionRate)
}
