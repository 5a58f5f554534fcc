package analytics

import (
	"testing"
	"time"

	"commerce-analytics/internal/models"
	"commerce-analytics/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPath = "product_view -> add_to_cart -> checkout_start -> purchase"

// journeyFixture: users 1-3 complete a purchase, user 4 abandons the cart,
// user 5 only views, and an anonymous session is ignored.
func journeyFixture() *fixture {
	f := newFixture()
	for u := int64(1); u <= 5; u++ {
		f.user(u, at("2024-01-01"))
	}

	buy := func(u int64, start time.Time, source string, steps ...time.Duration) {
		types := []string{models.EventProductView, models.EventAddToCart, models.EventCheckoutStart, models.EventPurchase}
		f.event(ref(u), types[0], start, source)
		for k, d := range steps {
			f.event(ref(u), types[k+1], start.Add(d), "")
		}
	}
	buy(1, at("2024-06-20", "10:00"), "google", 5*time.Minute, 8*time.Minute, 10*time.Minute)
	buy(2, at("2024-06-21", "11:00"), "google", 10*time.Minute, 15*time.Minute, 20*time.Minute)
	buy(3, at("2024-06-22", "12:00"), "email", 3*time.Minute, 4*time.Minute, 6*time.Minute)
	buy(4, at("2024-06-23", "09:00"), "facebook", 2*time.Minute)
	f.event(ref(5), models.EventProductView, at("2024-06-24", "08:00"), "")
	f.event(nil, models.EventPurchase, at("2024-06-24", "08:00"), "google")
	// outside the 30 day window
	f.event(ref(5), models.EventAddToCart, at("2024-05-01"), "")

	f.order(1, at("2024-06-20", "10:12"), "100")
	f.order(2, at("2024-06-21", "11:40"), "80") // 20 minutes after the purchase event
	f.order(3, at("2024-06-22", "12:06"), "50")
	return f
}

func TestConversionPaths(t *testing.T) {
	paths, err := NewEngine(Config{PathMinOccurrences: 1}, nil).ConversionPaths(&journeyFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	full := paths[0]
	assert.Equal(t, fullPath, full.Path)
	assert.Equal(t, 3, full.Occurrences)
	assert.Equal(t, stats.Value(12), full.AvgDurationMinutes)
	assert.Equal(t, 3, full.Conversions)
	assert.Equal(t, stats.Value(100), full.ConversionRate)
	assert.Equal(t, []string{"email", "google"}, full.FirstTouchSources)
	assert.Equal(t, []string{unknownSource}, full.LastTouchSources)

	abandoned := paths[1]
	assert.Equal(t, "product_view -> add_to_cart", abandoned.Path)
	assert.Equal(t, 0, abandoned.Conversions)
	assert.Equal(t, stats.Value(0), abandoned.ConversionRate)
	assert.Equal(t, []string{"facebook"}, abandoned.FirstTouchSources)

	frequent, err := NewEngine(Config{PathMinOccurrences: 2}, nil).ConversionPaths(&journeyFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, frequent, 1)
	assert.Equal(t, fullPath, frequent[0].Path)
}

func TestAttribution(t *testing.T) {
	rows, err := NewEngine(Config{}, nil).Attribution(&journeyFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	byUser := make(map[int64]Attribution)
	for _, r := range rows {
		byUser[r.UserID] = r
	}

	assert.Equal(t, "google", byUser[1].FirstTouchSource)
	assert.Equal(t, unknownSource, byUser[1].LastTouchSource)
	assert.Equal(t, 4, byUser[1].Touchpoints)
	assert.Equal(t, 1, byUser[1].MatchedOrders)
	assert.Equal(t, 100.0, byUser[1].ConversionValue)
	assert.Equal(t, "2024-06-20T10:00:00Z", byUser[1].FirstTouchAt)

	assert.Equal(t, 1, byUser[2].PurchaseEvents)
	assert.Equal(t, 0, byUser[2].MatchedOrders)
	assert.Zero(t, byUser[2].ConversionValue)

	assert.Equal(t, 50.0, byUser[3].ConversionValue)
	assert.Equal(t, "facebook", byUser[4].FirstTouchSource)
	assert.Equal(t, unknownSource, byUser[5].FirstTouchSource)

	wide, err := NewEngine(Config{AttributionWindow: time.Hour}, nil).Attribution(&journeyFixture().snap, asOf)
	require.NoError(t, err)
	assert.Equal(t, 80.0, wide[1].ConversionValue)
}

func TestAttributionBySource(t *testing.T) {
	rows, err := NewEngine(Config{}, nil).AttributionBySource(&journeyFixture().snap, asOf)
	require.NoError(t, err)

	sources := make([]string, len(rows))
	for i, r := range rows {
		sources[i] = r.Source
	}
	assert.Equal(t, []string{"google", "email", "facebook", unknownSource}, sources)

	google := rows[0]
	assert.Equal(t, 2, google.FirstTouchUsers)
	assert.Equal(t, 1, google.FirstTouchConverters)
	assert.Equal(t, 100.0, google.FirstTouchValue)
	assert.Zero(t, google.LastTouchUsers)

	unknown := rows[3]
	assert.Equal(t, 1, unknown.FirstTouchUsers)
	assert.Equal(t, 5, unknown.LastTouchUsers)
	assert.Equal(t, 150.0, unknown.LastTouchValue)
}

func TestFunnel(t *testing.T) {
	stages, err := NewEngine(Config{}, nil).Funnel(&journeyFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, stages, len(FunnelStages))

	users := []int{5, 4, 3, 3}
	events := []int{5, 4, 3, 3}
	pct := []float64{100, 80, 75, 100}
	rate := []float64{100, 80, 60, 60}
	for i, s := range stages {
		assert.Equal(t, i+1, s.Stage)
		assert.Equal(t, FunnelStages[i].Name, s.Name)
		assert.Equal(t, users[i], s.Users, s.Name)
		assert.Equal(t, events[i], s.Events, s.Name)
		assert.Equal(t, stats.Value(pct[i]), s.PctOfPrevious, s.Name)
		assert.Equal(t, stats.Value(rate[i]), s.ConversionRate, s.Name)
	}
}

func TestFunnelRequiresStageOrder(t *testing.T) {
	f := newFixture().user(1, at("2024-01-01"))
	f.event(ref(1), models.EventPurchase, at("2024-06-20", "09:00"), "")
	f.event(ref(1), models.EventAddToCart, at("2024-06-20", "09:05"), "")
	f.event(ref(1), models.EventProductView, at("2024-06-20", "09:10"), "")
	f.event(ref(1), models.EventAddToCart, at("2024-06-20", "09:15"), "")

	stages, err := NewEngine(Config{}, nil).Funnel(&f.snap, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, stages[0].Users)
	assert.Equal(t, 1, stages[1].Users)
	assert.Equal(t, 0, stages[3].Users, "a purchase before the view does not count")
	assert.Equal(t, 2, stages[1].Events)

	for _, s := range stages[1:] {
		if s.PctOfPrevious.Valid {
			assert.GreaterOrEqual(t, s.PctOfPrevious.Float64, 0.0)
			assert.LessOrEqual(t, s.PctOfPrevious.Float64, 100.0)
		}
	}
	assert.False(t, stages[3].PctOfPrevious.Valid, "no checkout users leaves purchase undefined")
}

func TestFunnelWithoutEvents(t *testing.T) {
	stages, err := NewEngine(Config{}, nil).Funnel(&newFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, stages, 4)
	for _, s := range stages[1:] {
		assert.False(t, s.PctOfPrevious.Valid)
		assert.False(t, s.ConversionRate.Valid)
	}
}
