package analytics

import (
	"testing"

	"commerce-analytics/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productFixture() *fixture {
	f := newFixture().user(1, at("2024-01-01"))
	f.order(1, at("2024-06-28", "10:00"), "350", line{10, 2, "100"}, line{11, 1, "150"})
	f.order(1, at("2024-06-29", "09:00"), "100", line{10, 1, "100"})
	f.order(1, at("2024-06-30", "23:59"), "300", line{10, 3, "100"})
	f.order(1, at("2024-06-30", "12:00"), "0", line{13, 1, "0"})
	f.order(1, at("2024-03-01"), "1000", line{12, 1, "1000"}) // outside 90 days
	return f
}

func TestProductDailyStats(t *testing.T) {
	rows, err := NewEngine(Config{}, nil).ProductDailyStats(&productFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	phoneA := rows[:3]
	assert.Equal(t, []string{"2024-06-28", "2024-06-29", "2024-06-30"},
		[]string{phoneA[0].Date, phoneA[1].Date, phoneA[2].Date})
	assert.Equal(t, []float64{2, 1.5, 2},
		[]float64{phoneA[0].MovingAvgUnits7d, phoneA[1].MovingAvgUnits7d, phoneA[2].MovingAvgUnits7d})
	assert.Equal(t, []float64{200, 150, 200},
		[]float64{phoneA[0].MovingAvgRevenue7d, phoneA[1].MovingAvgRevenue7d, phoneA[2].MovingAvgRevenue7d})
	assert.Equal(t, []float64{200, 300, 600},
		[]float64{phoneA[0].CumulativeRevenue, phoneA[1].CumulativeRevenue, phoneA[2].CumulativeRevenue})
	assert.Equal(t, 100.0, phoneA[0].Profit)

	// same-day standing within the Phones category
	assert.Equal(t, 1, phoneA[0].CategoryDailyRank)
	assert.Equal(t, 0.0, phoneA[0].CategoryPercentRank)

	phoneB := rows[3]
	assert.Equal(t, int64(11), phoneB.ProductID)
	assert.Equal(t, 2, phoneB.CategoryDailyRank)
	assert.Equal(t, 1.0, phoneB.CategoryPercentRank)

	novel := rows[4]
	assert.Equal(t, int64(13), novel.ProductID)
	assert.Equal(t, 1, novel.CategoryDailyRank)
	assert.Equal(t, -5.0, novel.Profit)
}

func TestProductSummaries(t *testing.T) {
	rows, err := NewEngine(Config{}, nil).ProductSummaries(&productFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	a := rows[0]
	assert.Equal(t, int64(10), a.ProductID)
	assert.Equal(t, "Phones", a.CategoryName)
	assert.Equal(t, 3, a.DaysWithSales)
	assert.Equal(t, 6, a.TotalUnits)
	assert.Equal(t, 600.0, a.TotalRevenue)
	assert.Equal(t, 300.0, a.TotalProfit)
	assert.Equal(t, stats.Value(50), a.ProfitMargin)
	assert.Equal(t, 200.0, a.AvgDailyRevenue)
	assert.Equal(t, stats.Value(187.5), a.CategoryAvgRevenue)
	assert.Equal(t, stats.Value(85.39), a.CategoryStdDevRevenue)
	assert.Equal(t, TierAverage, a.PerformanceTier)

	assert.Equal(t, int64(11), rows[1].ProductID)

	novel := rows[2]
	assert.Equal(t, int64(13), novel.ProductID)
	assert.False(t, novel.ProfitMargin.Valid, "margin is undefined without revenue")
	assert.False(t, novel.CategoryStdDevRevenue.Valid, "one sample has no deviation")
	assert.Equal(t, TierAverage, novel.PerformanceTier)
}

func TestClassifyTier(t *testing.T) {
	mean, sd := stats.Value(100), stats.Value(20)

	assert.Equal(t, TierTopPerformer, classifyTier(121, mean, sd))
	assert.Equal(t, TierAverage, classifyTier(120, mean, sd))
	assert.Equal(t, TierAverage, classifyTier(80, mean, sd))
	assert.Equal(t, TierUnderperforming, classifyTier(79, mean, sd))
	assert.Equal(t, TierAverage, classifyTier(1000, mean, stats.Null))
}
