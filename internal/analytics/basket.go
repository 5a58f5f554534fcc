package analytics

import (
	"sort"
	"time"

	"commerce-analytics/internal/models"
	"commerce-analytics/internal/stats"
)

const basketWindowDays = 90

// ProductPair is an unordered product pair bought together, Product1ID < Product2ID.
type ProductPair struct {
	Product1ID     int64   `json:"product1_id"`
	Product1Name   string  `json:"product1_name"`
	Product2ID     int64   `json:"product2_id"`
	Product2Name   string  `json:"product2_name"`
	CoOccurrences  int     `json:"co_occurrences"`
	Product1Orders int     `json:"product1_orders"`
	Product2Orders int     `json:"product2_orders"`
	PctOfProduct1  float64 `json:"pct_of_product1_orders"`
	PctOfProduct2  float64 `json:"pct_of_product2_orders"`
	Lift           float64 `json:"lift"`
}

type pairKey struct{ a, b int64 }

// Lift is the observed co-occurrence over the co-occurrence expected under
// independence: co × total ÷ (count1 × count2). Null when either count is 0.
func Lift(co, total, count1, count2 int) stats.NullFloat {
	return stats.Ratio(float64(co)*float64(total), float64(count1)*float64(count2))
}

// MarketBasket mines product pairs from orders of the trailing 90 days. Every
// order counts toward the total and toward each product it contains; only
// orders with two or more distinct products generate pairs. Pairs below the
// minimum support are dropped, the rest ordered by lift then co-occurrence
// descending and capped.
func (e *Engine) MarketBasket(snap *Snapshot, asOf time.Time) ([]ProductPair, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	start := asOf.AddDate(0, 0, -basketWindowDays)

	totalOrders := 0
	productOrders := make(map[int64]int)
	pairs := make(map[pairKey]int)
	for _, o := range ds.orders {
		if !within(o.OrderedAt, start, asOf) {
			continue
		}
		totalOrders++

		distinct := distinctProducts(ds.itemsByOrder[o.ID])
		for _, p := range distinct {
			productOrders[p]++
		}
		for i := 0; i < len(distinct); i++ {
			for j := i + 1; j < len(distinct); j++ {
				pairs[pairKey{distinct[i], distinct[j]}]++
			}
		}
	}

	out := make([]ProductPair, 0)
	for k, co := range pairs {
		if co < e.cfg.BasketMinSupport {
			continue
		}
		c1, c2 := productOrders[k.a], productOrders[k.b]
		out = append(out, ProductPair{
			Product1ID:     k.a,
			Product1Name:   ds.products[k.a].Name,
			Product2ID:     k.b,
			Product2Name:   ds.products[k.b].Name,
			CoOccurrences:  co,
			Product1Orders: c1,
			Product2Orders: c2,
			PctOfProduct1:  stats.Percent(float64(co), float64(c1)).Round(2).Float64,
			PctOfProduct2:  stats.Percent(float64(co), float64(c2)).Round(2).Float64,
			Lift:           Lift(co, totalOrders, c1, c2).Round(4).Float64,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.CoOccurrences != b.CoOccurrences {
			return a.CoOccurrences > b.CoOccurrences
		}
		if a.Product1ID != b.Product1ID {
			return a.Product1ID < b.Product1ID
		}
		return a.Product2ID < b.Product2ID
	})
	if len(out) > e.cfg.BasketTopN {
		out = out[:e.cfg.BasketTopN]
	}
	return out, nil
}

// distinctProducts returns the sorted distinct product ids of an order, so
// pairs come out lower id first.
func distinctProducts(items []*models.OrderItem) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
