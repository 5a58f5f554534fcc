package analytics

import (
	"testing"

	"commerce-analytics/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basketFixture() *fixture {
	f := newFixture().user(1, at("2024-01-01"))
	day := at("2024-06-15")
	f.order(1, day, "250", line{10, 1, "100"}, line{11, 1, "150"})
	f.order(1, day, "250", line{10, 1, "100"}, line{11, 1, "150"})
	f.order(1, day, "1100", line{10, 1, "100"}, line{12, 1, "1000"})
	f.order(1, day, "20", line{13, 1, "20"})
	// the same product on two lines counts once
	f.order(1, day, "350", line{10, 1, "100"}, line{10, 1, "100"}, line{11, 1, "150"})
	// outside the 90 day window
	f.order(1, at("2024-03-01"), "1020", line{12, 1, "1000"}, line{13, 1, "20"})
	return f
}

func TestMarketBasket(t *testing.T) {
	pairs, err := NewEngine(Config{BasketMinSupport: 2}, nil).MarketBasket(&basketFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, int64(10), p.Product1ID)
	assert.Equal(t, "Phone A", p.Product1Name)
	assert.Equal(t, int64(11), p.Product2ID)
	assert.Equal(t, 3, p.CoOccurrences)
	assert.Equal(t, 4, p.Product1Orders)
	assert.Equal(t, 3, p.Product2Orders)
	assert.Equal(t, 75.0, p.PctOfProduct1)
	assert.Equal(t, 100.0, p.PctOfProduct2)
	// 3 co-occurrences × 5 orders ÷ (4 × 3)
	assert.Equal(t, 1.25, p.Lift)
}

func TestMarketBasketOrderingAndCap(t *testing.T) {
	e := NewEngine(Config{BasketMinSupport: 1}, nil)
	pairs, err := e.MarketBasket(&basketFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	// equal lift, so the larger co-occurrence wins
	assert.Equal(t, 1.25, pairs[0].Lift)
	assert.Equal(t, 1.25, pairs[1].Lift)
	assert.Equal(t, int64(11), pairs[0].Product2ID)
	assert.Equal(t, int64(12), pairs[1].Product2ID)

	capped, err := NewEngine(Config{BasketMinSupport: 1, BasketTopN: 1}, nil).MarketBasket(&basketFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, pairs[0], capped[0])
}

func TestMarketBasketDefaultSupport(t *testing.T) {
	pairs, err := NewEngine(Config{}, nil).MarketBasket(&basketFixture().snap, asOf)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestLift(t *testing.T) {
	assert.Equal(t, 1.0, Lift(10, 100, 20, 50).Float64)
	assert.False(t, Lift(0, 100, 0, 50).Valid)
}

func TestLiftProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lift is symmetric", prop.ForAll(
		func(co, total, c1, c2 int) bool {
			return Lift(co, total, c1, c2) == Lift(co, total, c2, c1)
		},
		gen.IntRange(0, 500),
		gen.IntRange(0, 5000),
		gen.IntRange(0, 500),
		gen.IntRange(0, 500),
	))

	properties.Property("lift above 1 beats the independent co-occurrence rate", prop.ForAll(
		func(co, c1, c2, total int) bool {
			if co > c1 || co > c2 || c1 > total || c2 > total {
				return true
			}
			l := Lift(co, total, c1, c2)
			if !l.Valid || l.Float64 <= 1 {
				return true
			}
			pct1 := float64(co) / float64(c1)
			pct2 := float64(co) / float64(c2)
			return pct1 > float64(c2)/float64(total) && pct2 > float64(c1)/float64(total)
		},
		gen.IntRange(1, 200),
		gen.IntRange(1, 200),
		gen.IntRange(1, 200),
		gen.IntRange(1, 400),
	))

	properties.TestingRun(t)
}

func TestDistinctProducts(t *testing.T) {
	items := []*models.OrderItem{{ProductID: 12}, {ProductID: 10}, {ProductID: 12}, {ProductID: 11}}
	assert.Equal(t, []int64{10, 11, 12}, distinctProducts(items))
}
