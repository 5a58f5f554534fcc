package analytics

import (
	"cmp"
	"sort"
	"time"

	"commerce-analytics/internal/stats"

	"github.com/shopspring/decimal"
)

const (
	rfmWindowDays = 365
	rfmBands      = 5
)

// RFM segments
const (
	SegmentChampions      = "Champions"
	SegmentLoyal          = "Loyal Customers"
	SegmentPotential      = "Potential Loyalists"
	SegmentNew            = "New Customers"
	SegmentAtRisk         = "At Risk"
	SegmentHibernating    = "Hibernating"
	SegmentCannotLoseThem = "Cannot Lose Them"
	SegmentOthers         = "Others"
)

// band is an inclusive score range.
type band struct{ min, max int }

var anyBand = band{1, rfmBands}

func (b band) has(v int) bool { return v >= b.min && v <= b.max }

type rfmRule struct {
	segment string
	r, f, m band
}

// rfmRules is evaluated top to bottom and the first match wins; the ranges
// overlap on purpose.
var rfmRules = []rfmRule{
	{SegmentChampions, band{4, 5}, band{4, 5}, band{4, 5}},
	{SegmentLoyal, band{3, 5}, band{3, 5}, band{3, 5}},
	{SegmentPotential, band{4, 5}, band{2, 5}, band{2, 5}},
	{SegmentNew, band{4, 5}, band{1, 1}, anyBand},
	{SegmentAtRisk, band{2, 2}, band{3, 5}, anyBand},
	{SegmentHibernating, band{1, 2}, band{1, 2}, band{1, 2}},
	{SegmentCannotLoseThem, band{1, 1}, band{4, 5}, band{4, 5}},
}

// Segments lists every segment in rule order, Others last.
func Segments() []string {
	out := make([]string, 0, len(rfmRules)+1)
	for _, r := range rfmRules {
		out = append(out, r.segment)
	}
	return append(out, SegmentOthers)
}

// Segment classifies R/F/M band scores with the ordered rule table.
func Segment(r, f, m int) string {
	for _, rule := range rfmRules {
		if rule.r.has(r) && rule.f.has(f) && rule.m.has(m) {
			return rule.segment
		}
	}
	return SegmentOthers
}

// CompositeScore is 100·R + 10·F + M.
func CompositeScore(r, f, m int) int {
	return 100*r + 10*f + m
}

// RfmRecord is one customer's recency, frequency and monetary value over
// the trailing year with their quintile bands and segment.
type RfmRecord struct {
	UserID         int64   `json:"user_id"`
	LastOrderDate  string  `json:"last_order_date"`
	RecencyDays    int     `json:"recency_days"`
	Frequency      int     `json:"frequency"`
	Monetary       float64 `json:"monetary"`
	RecencyScore   int     `json:"r_score"`
	FrequencyScore int     `json:"f_score"`
	MonetaryScore  int     `json:"m_score"`
	RfmScore       int     `json:"rfm_score"`
	Segment        string  `json:"segment"`
}

// SegmentSummary aggregates RFM records of one segment.
type SegmentSummary struct {
	Segment     string          `json:"segment"`
	Customers   int             `json:"customers"`
	SharePct    stats.NullFloat `json:"share_pct"`
	AvgMonetary stats.NullFloat `json:"avg_monetary"`
	AvgRecency  stats.NullFloat `json:"avg_recency_days"`
	TotalValue  float64         `json:"total_monetary"`
}

type rfmBase struct {
	userID    int64
	last      time.Time
	recency   int
	frequency int
	monetary  decimal.Decimal
}

// RFM scores every user with at least one order in the trailing year.
// Recency is binned with the most recent customers in the top band;
// frequency and monetary with the highest values in the top band. Ties are
// broken by user id. Ordered by composite score, then monetary, descending.
func (e *Engine) RFM(snap *Snapshot, asOf time.Time) ([]RfmRecord, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	return rfmRecords(ds, asOf), nil
}

// RFMSegments summarises RFM records per segment in rule order; segments
// without customers are reported with zero customers.
func (e *Engine) RFMSegments(snap *Snapshot, asOf time.Time) ([]SegmentSummary, error) {
	records, err := e.RFM(snap, asOf)
	if err != nil {
		return nil, err
	}
	return SummarizeSegments(records), nil
}

func rfmRecords(ds *dataset, asOf time.Time) []RfmRecord {
	start := asOf.AddDate(0, 0, -rfmWindowDays)

	byUser := make(map[int64]*rfmBase)
	for _, o := range ds.orders {
		if !within(o.OrderedAt, start, asOf) {
			continue
		}
		b, ok := byUser[o.UserID]
		if !ok {
			b = &rfmBase{userID: o.UserID}
			byUser[o.UserID] = b
		}
		if o.OrderedAt.After(b.last) {
			b.last = o.OrderedAt
		}
		b.frequency++
		b.monetary = b.monetary.Add(o.Total)
	}

	bases := make([]*rfmBase, 0, len(byUser))
	for _, b := range byUser {
		b.recency = int(asOf.Sub(b.last).Hours() / 24)
		bases = append(bases, b)
	}
	if len(bases) == 0 {
		return []RfmRecord{}
	}

	rScore := quintiles(bases, func(a, b *rfmBase) int {
		// larger recency first so the most recent land in band 5
		return cmp.Compare(b.recency, a.recency)
	})
	fScore := quintiles(bases, func(a, b *rfmBase) int {
		return cmp.Compare(a.frequency, b.frequency)
	})
	mScore := quintiles(bases, func(a, b *rfmBase) int {
		return a.monetary.Cmp(b.monetary)
	})

	records := make([]RfmRecord, 0, len(bases))
	for _, b := range bases {
		r, f, m := rScore[b.userID], fScore[b.userID], mScore[b.userID]
		records = append(records, RfmRecord{
			UserID:         b.userID,
			LastOrderDate:  dayStart(b.last).Format(dateLayout),
			RecencyDays:    b.recency,
			Frequency:      b.frequency,
			Monetary:       stats.Round(money(b.monetary), 2),
			RecencyScore:   r,
			FrequencyScore: f,
			MonetaryScore:  m,
			RfmScore:       CompositeScore(r, f, m),
			Segment:        Segment(r, f, m),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.RfmScore != b.RfmScore {
			return a.RfmScore > b.RfmScore
		}
		if a.Monetary != b.Monetary {
			return a.Monetary > b.Monetary
		}
		return a.UserID < b.UserID
	})
	return records
}

// quintiles orders bases by compare (ties by user id) and returns each
// user's n-tile band.
func quintiles(bases []*rfmBase, compare func(a, b *rfmBase) int) map[int64]int {
	sorted := append([]*rfmBase(nil), bases...)
	sort.Slice(sorted, func(i, j int) bool {
		if c := compare(sorted[i], sorted[j]); c != 0 {
			return c < 0
		}
		return sorted[i].userID < sorted[j].userID
	})
	groups := stats.NTile(len(sorted), rfmBands)
	out := make(map[int64]int, len(sorted))
	for i, b := range sorted {
		out[b.userID] = groups[i]
	}
	return out
}

// SummarizeSegments aggregates records per segment in rule order.
func SummarizeSegments(records []RfmRecord) []SegmentSummary {
	type acc struct {
		n        int
		monetary []float64
		recency  []float64
	}
	bySegment := make(map[string]*acc)
	for _, r := range records {
		a, ok := bySegment[r.Segment]
		if !ok {
			a = &acc{}
			bySegment[r.Segment] = a
		}
		a.n++
		a.monetary = append(a.monetary, r.Monetary)
		a.recency = append(a.recency, float64(r.RecencyDays))
	}

	out := make([]SegmentSummary, 0, len(rfmRules)+1)
	for _, seg := range Segments() {
		a := bySegment[seg]
		if a == nil {
			a = &acc{}
		}
		out = append(out, SegmentSummary{
			Segment:     seg,
			Customers:   a.n,
			SharePct:    stats.Percent(float64(a.n), float64(len(records))).Round(2),
			AvgMonetary: stats.Mean(a.monetary).Round(2),
			AvgRecency:  stats.Mean(a.recency).Round(2),
			TotalValue:  stats.Round(stats.Sum(a.monetary), 2),
		})
	}
	return out
}
