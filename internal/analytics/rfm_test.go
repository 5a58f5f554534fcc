package analytics

import (
	"testing"
	"time"

	"commerce-analytics/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentRuleTable(t *testing.T) {
	tests := []struct {
		r, f, m int
		want    string
	}{
		{5, 5, 5, SegmentChampions},
		{4, 4, 4, SegmentChampions},
		{3, 3, 3, SegmentLoyal},
		{5, 3, 3, SegmentLoyal},
		{4, 2, 5, SegmentPotential},
		{5, 1, 1, SegmentNew},
		{2, 4, 1, SegmentAtRisk},
		{1, 1, 1, SegmentHibernating},
		{2, 2, 2, SegmentHibernating},
		{1, 5, 5, SegmentCannotLoseThem},
		{3, 1, 1, SegmentOthers},
		{1, 3, 1, SegmentOthers},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Segment(tt.r, tt.f, tt.m), "R=%d F=%d M=%d", tt.r, tt.f, tt.m)
	}
}

func TestCompositeScore(t *testing.T) {
	assert.Equal(t, 342, CompositeScore(3, 4, 2))
	assert.Equal(t, 555, CompositeScore(5, 5, 5))
}

func TestSegmentsOrder(t *testing.T) {
	segments := Segments()
	require.Len(t, segments, 8)
	assert.Equal(t, SegmentChampions, segments[0])
	assert.Equal(t, SegmentOthers, segments[7])
}

// rfmFixture gives user i (1..5) i orders of 100 with the latest placed
// 6-i days before asOf; user 6 only ordered more than a year ago.
func rfmFixture() *fixture {
	f := newFixture()
	for u := int64(1); u <= 5; u++ {
		f.user(u, at("2023-01-01"))
		for k := int64(0); k < u; k++ {
			f.order(u, asOf.AddDate(0, 0, -int(6-u+k)), "100")
		}
	}
	f.user(6, at("2022-01-01"))
	f.order(6, asOf.AddDate(-1, 0, -1), "5000")
	return f
}

func TestRFM(t *testing.T) {
	records, err := NewEngine(Config{}, nil).RFM(&rfmFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, records, 5)

	for i, r := range records {
		u := int64(5 - i)
		score := int(u)
		assert.Equal(t, u, r.UserID)
		assert.Equal(t, int(6-u), r.RecencyDays)
		assert.Equal(t, int(u), r.Frequency)
		assert.Equal(t, float64(u*100), r.Monetary)
		assert.Equal(t, score, r.RecencyScore)
		assert.Equal(t, score, r.FrequencyScore)
		assert.Equal(t, score, r.MonetaryScore)
		assert.Equal(t, CompositeScore(score, score, score), r.RfmScore)
		assert.Equal(t, asOf.Add(-time.Duration(6-u)*24*time.Hour).Format(dateLayout), r.LastOrderDate)
	}
	assert.Equal(t, SegmentChampions, records[0].Segment)
	assert.Equal(t, SegmentChampions, records[1].Segment)
	assert.Equal(t, SegmentLoyal, records[2].Segment)
	assert.Equal(t, SegmentHibernating, records[3].Segment)
	assert.Equal(t, SegmentHibernating, records[4].Segment)
}

func TestRFMSegments(t *testing.T) {
	summary, err := NewEngine(Config{}, nil).RFMSegments(&rfmFixture().snap, asOf)
	require.NoError(t, err)
	require.Len(t, summary, len(Segments()))

	bySegment := make(map[string]SegmentSummary)
	for _, s := range summary {
		bySegment[s.Segment] = s
	}

	champions := bySegment[SegmentChampions]
	assert.Equal(t, 2, champions.Customers)
	assert.Equal(t, stats.Value(40), champions.SharePct)
	assert.Equal(t, stats.Value(450), champions.AvgMonetary)
	assert.Equal(t, 900.0, champions.TotalValue)

	hibernating := bySegment[SegmentHibernating]
	assert.Equal(t, 2, hibernating.Customers)
	assert.Equal(t, stats.Value(4.5), hibernating.AvgRecency)

	potential := bySegment[SegmentPotential]
	assert.Zero(t, potential.Customers)
	assert.False(t, potential.AvgMonetary.Valid)
	assert.Equal(t, stats.Value(0), potential.SharePct)
}

func TestRFMIsDeterministic(t *testing.T) {
	e := NewEngine(Config{}, nil)
	snap := rfmFixture().snap

	first, err := e.RFM(&snap, asOf)
	require.NoError(t, err)
	second, err := e.RFM(&snap, asOf)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
