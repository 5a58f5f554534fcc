package analytics

import (
	"encoding/json"
	"sort"
	"time"

	"commerce-analytics/internal/stats"

	"github.com/shopspring/decimal"
)

var monthColumns = [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// MonthRevenue is revenue per calendar month, January first.
type MonthRevenue [12]float64

// MarshalJSON writes the months as named columns jan..dec.
func (m MonthRevenue) MarshalJSON() ([]byte, error) {
	obj := make(map[string]float64, len(m))
	for i, v := range m {
		obj[monthColumns[i]] = v
	}
	return json.Marshal(obj)
}

// UnmarshalJSON reads the named month columns.
func (m *MonthRevenue) UnmarshalJSON(data []byte) error {
	var obj map[string]float64
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for i, col := range monthColumns {
		m[i] = obj[col]
	}
	return nil
}

// CategoryPivotRow is one category's revenue by month of the reporting year.
type CategoryPivotRow struct {
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Year         int             `json:"year"`
	Months       MonthRevenue    `json:"months"`
	AnnualTotal  float64         `json:"annual_total"`
	Growth6mPct  stats.NullFloat `json:"growth_6m_pct"`
}

// CategoryPivot reshapes item revenue of the reporting year (the year of the
// last day before asOf) into one row per category with twelve fixed month
// columns, an annual total and the growth of the latest six months over the
// six before them. Revenue counts toward the product's own category. Every
// category with revenue in the year is reported, ordered by annual total
// descending, then name.
func (e *Engine) CategoryPivot(snap *Snapshot, asOf time.Time) ([]CategoryPivotRow, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	year := lastDay(asOf).Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	if asOf.Before(end) {
		end = asOf
	}

	cells := make(map[int64]*[12]decimal.Decimal)
	for _, it := range ds.items {
		at := ds.orderByID[it.OrderID].OrderedAt
		if !within(at, start, end) {
			continue
		}
		cat := ds.products[it.ProductID].CategoryID
		c, ok := cells[cat]
		if !ok {
			c = new([12]decimal.Decimal)
			cells[cat] = c
		}
		m := at.UTC().Month() - 1
		c[m] = c[m].Add(it.Revenue())
	}

	out := make([]CategoryPivotRow, 0, len(cells))
	for cat, c := range cells {
		row := CategoryPivotRow{
			CategoryID:   cat,
			CategoryName: ds.categories[cat].Name,
			Year:         year,
		}
		total, prior, recent := decimal.Zero, decimal.Zero, decimal.Zero
		for m, v := range c {
			row.Months[m] = stats.Round(money(v), 2)
			total = total.Add(v)
			if m < 6 {
				prior = prior.Add(v)
			} else {
				recent = recent.Add(v)
			}
		}
		row.AnnualTotal = stats.Round(money(total), 2)
		row.Growth6mPct = Growth(money(recent), money(prior)).Round(2)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnnualTotal != out[j].AnnualTotal {
			return out[i].AnnualTotal > out[j].AnnualTotal
		}
		if out[i].CategoryName != out[j].CategoryName {
			return out[i].CategoryName < out[j].CategoryName
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out, nil
}

// Growth is (current − base) ÷ base × 100, Null when base is 0.
func Growth(current, base float64) stats.NullFloat {
	return stats.Percent(current-base, base)
}
