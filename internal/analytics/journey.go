package analytics

import (
	"sort"
	"strings"
	"time"

	"commerce-analytics/internal/models"
	"commerce-analytics/internal/stats"
	"commerce-analytics/internal/window"

	"github.com/shopspring/decimal"
)

const (
	journeyWindowDays = 30
	pathSeparator     = " -> "
	unknownSource     = "unknown"
)

// ConversionPath aggregates the user journeys that share one event path.
type ConversionPath struct {
	Path               string          `json:"path"`
	Occurrences        int             `json:"occurrences"`
	AvgDurationMinutes stats.NullFloat `json:"avg_duration_minutes"`
	Conversions        int             `json:"conversions"`
	ConversionRate     stats.NullFloat `json:"conversion_rate"`
	FirstTouchSources  []string        `json:"first_touch_sources"`
	LastTouchSources   []string        `json:"last_touch_sources"`
}

// Attribution is one user's first and last touch and the order value
// attributed to their purchase events.
type Attribution struct {
	UserID           int64   `json:"user_id"`
	FirstTouchSource string  `json:"first_touch_source"`
	LastTouchSource  string  `json:"last_touch_source"`
	FirstTouchAt     string  `json:"first_touch_at"`
	LastTouchAt      string  `json:"last_touch_at"`
	Touchpoints      int     `json:"touchpoints"`
	PurchaseEvents   int     `json:"purchase_events"`
	MatchedOrders    int     `json:"matched_orders"`
	ConversionValue  float64 `json:"conversion_value"`
}

// SourceAttribution credits users and conversion value to traffic sources.
type SourceAttribution struct {
	Source               string  `json:"source"`
	FirstTouchUsers      int     `json:"first_touch_users"`
	LastTouchUsers       int     `json:"last_touch_users"`
	FirstTouchConverters int     `json:"first_touch_converters"`
	FirstTouchValue      float64 `json:"first_touch_value"`
	LastTouchValue       float64 `json:"last_touch_value"`
}

// FunnelStage is one step of the purchase funnel.
type FunnelStage struct {
	Stage          int             `json:"stage"`
	Name           string          `json:"stage_name"`
	EventType      string          `json:"event_type"`
	Users          int             `json:"users"`
	Events         int             `json:"events"`
	PctOfPrevious  stats.NullFloat `json:"pct_of_previous"`
	ConversionRate stats.NullFloat `json:"conversion_rate"`
}

// FunnelStages is the fixed stage order.
var FunnelStages = []struct {
	Name      string
	EventType string
}{
	{"Product Views", models.EventProductView},
	{"Add to Cart", models.EventAddToCart},
	{"Checkout Started", models.EventCheckoutStart},
	{"Purchase Completed", models.EventPurchase},
}

// journey is one identified user's events in the window, time ordered.
type journey struct {
	userID int64
	events []*models.Event
}

func (j journey) first() *models.Event { return j.events[0] }
func (j journey) last() *models.Event  { return j.events[len(j.events)-1] }

func sourceOf(ev *models.Event) string {
	if s := ev.PayloadString(models.PayloadSource); s != "" {
		return s
	}
	return unknownSource
}

// journeys groups identified users' events of the trailing 30 days, ordered
// by timestamp with ties kept in input order. Ordered by user id.
func journeys(ds *dataset, asOf time.Time) []journey {
	start := asOf.AddDate(0, 0, -journeyWindowDays)
	var events []*models.Event
	for _, ev := range ds.events {
		if ev.UserID != nil && within(ev.OccurredAt, start, asOf) {
			events = append(events, ev)
		}
	}

	parts := window.Partitions(events,
		func(ev *models.Event) int64 { return *ev.UserID },
		func(a, b *models.Event) int { return a.OccurredAt.Compare(b.OccurredAt) })

	out := make([]journey, 0, len(parts))
	for _, idx := range parts {
		j := journey{userID: *events[idx[0]].UserID, events: make([]*models.Event, len(idx))}
		for k, i := range idx {
			j.events[k] = events[i]
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].userID < out[b].userID })
	return out
}

// ConversionPaths reports every event path shared by at least the minimum
// number of user journeys (users with two or more events in the trailing 30
// days). A path converts when its final event is a purchase. Ordered by
// occurrences descending, then path.
func (e *Engine) ConversionPaths(snap *Snapshot, asOf time.Time) ([]ConversionPath, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	type acc struct {
		count     int
		durations []float64
		first     map[string]bool
		last      map[string]bool
		converted bool
	}
	byPath := make(map[string]*acc)
	for _, j := range journeys(ds, asOf) {
		if len(j.events) < 2 {
			continue
		}
		types := make([]string, len(j.events))
		for k, ev := range j.events {
			types[k] = ev.EventType
		}
		path := strings.Join(types, pathSeparator)
		a, ok := byPath[path]
		if !ok {
			a = &acc{
				first:     make(map[string]bool),
				last:      make(map[string]bool),
				converted: j.last().EventType == models.EventPurchase,
			}
			byPath[path] = a
		}
		a.count++
		a.durations = append(a.durations, j.last().OccurredAt.Sub(j.first().OccurredAt).Minutes())
		a.first[sourceOf(j.first())] = true
		a.last[sourceOf(j.last())] = true
	}

	out := make([]ConversionPath, 0)
	for path, a := range byPath {
		if a.count < e.cfg.PathMinOccurrences {
			continue
		}
		conversions := 0
		if a.converted {
			conversions = a.count
		}
		out = append(out, ConversionPath{
			Path:               path,
			Occurrences:        a.count,
			AvgDurationMinutes: stats.Mean(a.durations).Round(2),
			Conversions:        conversions,
			ConversionRate:     stats.Percent(float64(conversions), float64(a.count)).Round(2),
			FirstTouchSources:  sortedKeys(a.first),
			LastTouchSources:   sortedKeys(a.last),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// Attribution reports first-touch and last-touch sources for every user with
// events in the trailing 30 days. An order is a purchase event's conversion
// when it was placed within the attribution window after the event; each
// order is credited at most once. Ordered by user id.
func (e *Engine) Attribution(snap *Snapshot, asOf time.Time) ([]Attribution, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	return e.attribution(ds, asOf), nil
}

func (e *Engine) attribution(ds *dataset, asOf time.Time) []Attribution {
	ordersByUser := make(map[int64][]*models.Order)
	for _, o := range ds.orders {
		ordersByUser[o.UserID] = append(ordersByUser[o.UserID], o)
	}

	js := journeys(ds, asOf)
	out := make([]Attribution, 0, len(js))
	for _, j := range js {
		matched := make(map[int64]bool)
		value := decimal.Zero
		purchases := 0
		for _, ev := range j.events {
			if ev.EventType != models.EventPurchase {
				continue
			}
			purchases++
			deadline := ev.OccurredAt.Add(e.cfg.AttributionWindow)
			for _, o := range ordersByUser[j.userID] {
				if matched[o.ID] || o.OrderedAt.Before(ev.OccurredAt) || o.OrderedAt.After(deadline) {
					continue
				}
				matched[o.ID] = true
				value = value.Add(o.Total)
			}
		}
		out = append(out, Attribution{
			UserID:           j.userID,
			FirstTouchSource: sourceOf(j.first()),
			LastTouchSource:  sourceOf(j.last()),
			FirstTouchAt:     j.first().OccurredAt.UTC().Format(time.RFC3339),
			LastTouchAt:      j.last().OccurredAt.UTC().Format(time.RFC3339),
			Touchpoints:      len(j.events),
			PurchaseEvents:   purchases,
			MatchedOrders:    len(matched),
			ConversionValue:  stats.Round(money(value), 2),
		})
	}
	return out
}

// AttributionBySource rolls per-user attribution up to traffic sources,
// ordered by first-touch value descending, then source.
func (e *Engine) AttributionBySource(snap *Snapshot, asOf time.Time) ([]SourceAttribution, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]*SourceAttribution)
	get := func(s string) *SourceAttribution {
		a, ok := bySource[s]
		if !ok {
			a = &SourceAttribution{Source: s}
			bySource[s] = a
		}
		return a
	}
	firstValue := make(map[string]decimal.Decimal)
	lastValue := make(map[string]decimal.Decimal)
	for _, a := range e.attribution(ds, asOf) {
		v := decimal.NewFromFloat(a.ConversionValue)
		f := get(a.FirstTouchSource)
		f.FirstTouchUsers++
		if a.MatchedOrders > 0 {
			f.FirstTouchConverters++
		}
		firstValue[a.FirstTouchSource] = firstValue[a.FirstTouchSource].Add(v)

		l := get(a.LastTouchSource)
		l.LastTouchUsers++
		lastValue[a.LastTouchSource] = lastValue[a.LastTouchSource].Add(v)
	}

	out := make([]SourceAttribution, 0, len(bySource))
	for s, a := range bySource {
		a.FirstTouchValue = stats.Round(money(firstValue[s]), 2)
		a.LastTouchValue = stats.Round(money(lastValue[s]), 2)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstTouchValue != out[j].FirstTouchValue {
			return out[i].FirstTouchValue > out[j].FirstTouchValue
		}
		return out[i].Source < out[j].Source
	})
	return out, nil
}

// Funnel walks the fixed stages in order over the trailing 30 days. A user
// reaches a stage with an event of its type at or after reaching the
// previous stage, so stage user counts never grow. PctOfPrevious is relative
// to the previous stage's users (100 for the first stage, Null when the
// previous stage is empty); ConversionRate is the naive ratio of the stage's
// events to first-stage events.
func (e *Engine) Funnel(snap *Snapshot, asOf time.Time) ([]FunnelStage, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}

	users := make([]int, len(FunnelStages))
	events := make([]int, len(FunnelStages))
	stageOf := make(map[string]int, len(FunnelStages))
	for i, s := range FunnelStages {
		stageOf[s.EventType] = i
	}

	for _, j := range journeys(ds, asOf) {
		// events are time ordered, so the next stage can only be reached
		// by a later event
		reached := 0
		for _, ev := range j.events {
			st, ok := stageOf[ev.EventType]
			if !ok {
				continue
			}
			events[st]++
			if st == reached && reached < len(FunnelStages) {
				users[st]++
				reached++
			}
		}
	}

	out := make([]FunnelStage, len(FunnelStages))
	for i, s := range FunnelStages {
		pct := stats.Value(100)
		if i > 0 {
			pct = stats.Percent(float64(users[i]), float64(users[i-1])).Round(2)
		}
		out[i] = FunnelStage{
			Stage:          i + 1,
			Name:           s.Name,
			EventType:      s.EventType,
			Users:          users[i],
			Events:         events[i],
			PctOfPrevious:  pct,
			ConversionRate: stats.Percent(float64(events[i]), float64(events[0])).Round(2),
		}
	}
	return out, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
