package service

import (
	"time"

	"commerce-analytics/internal/analytics"
)

// Report names
const (
	ReportCohortRetention    = "cohort_retention"
	ReportProductDaily       = "product_daily"
	ReportProductSummary     = "product_summary"
	ReportRFM                = "rfm"
	ReportRFMSegments        = "rfm_segments"
	ReportMarketBasket       = "market_basket"
	ReportCategoryHierarchy  = "category_hierarchy"
	ReportConversionPaths    = "conversion_paths"
	ReportAttribution        = "attribution"
	ReportAttributionSources = "attribution_sources"
	ReportFunnel             = "funnel"
	ReportSalesAnomalies     = "sales_anomalies"
	ReportCategoryPivot      = "category_pivot"
	ReportDashboard          = "dashboard"
)

// historyStart bounds "full history" loads; no order predates it.
var historyStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// since maps an as-of instant to the start of the snapshot it needs.
type since func(asOf time.Time) time.Time

func fullHistory(time.Time) time.Time { return historyStart }

func days(n int) since {
	return func(asOf time.Time) time.Time { return asOf.AddDate(0, 0, -n) }
}

func months(n int) since {
	return func(asOf time.Time) time.Time { return asOf.AddDate(0, -n, 0) }
}

// pivotSince covers the trailing year and the whole reporting year.
func pivotSince(asOf time.Time) time.Time {
	trailing := asOf.AddDate(-1, 0, 0)
	year := asOf.Add(-time.Nanosecond).UTC().Year()
	jan1 := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	if jan1.Before(trailing) {
		return jan1
	}
	return trailing
}

type runner func(e *analytics.Engine, snap *analytics.Snapshot, asOf time.Time) (interface{}, int, error)

// rows adapts an analyzer method expression to a runner.
func rows[T any](analyze func(*analytics.Engine, *analytics.Snapshot, time.Time) ([]T, error)) runner {
	return func(e *analytics.Engine, snap *analytics.Snapshot, asOf time.Time) (interface{}, int, error) {
		out, err := analyze(e, snap, asOf)
		if err != nil {
			return nil, 0, err
		}
		return out, len(out), nil
	}
}

type report struct {
	name  string
	since since
	run   runner
}

// loadTails extends a report's snapshot past the as-of instant. Attribution
// credits orders placed up to one attribution window after a purchase event,
// so an event late on the as-of day may convert after midnight. Events past
// the as-of instant are still ignored by the analyzers.
var loadTails = map[string]func(cfg analytics.Config) time.Duration{
	ReportAttribution:        attributionTail,
	ReportAttributionSources: attributionTail,
}

func attributionTail(cfg analytics.Config) time.Duration { return cfg.AttributionWindow }

// bounds returns the [start, end) snapshot a run as of asOf loads.
func (r report) bounds(cfg analytics.Config, asOf time.Time) (time.Time, time.Time) {
	end := asOf
	if tail, ok := loadTails[r.name]; ok {
		end = end.Add(tail(cfg))
	}
	return r.since(asOf), end
}

// registry lists every report in presentation order.
var registry = []report{
	{ReportCohortRetention, fullHistory, rows((*analytics.Engine).CohortRetention)},
	{ReportProductDaily, days(90), rows((*analytics.Engine).ProductDailyStats)},
	{ReportProductSummary, days(90), rows((*analytics.Engine).ProductSummaries)},
	{ReportRFM, days(365), rows((*analytics.Engine).RFM)},
	{ReportRFMSegments, days(365), rows((*analytics.Engine).RFMSegments)},
	{ReportMarketBasket, days(90), rows((*analytics.Engine).MarketBasket)},
	{ReportCategoryHierarchy, months(12), rows((*analytics.Engine).CategoryHierarchy)},
	{ReportConversionPaths, days(30), rows((*analytics.Engine).ConversionPaths)},
	{ReportAttribution, days(30), rows((*analytics.Engine).Attribution)},
	{ReportAttributionSources, days(30), rows((*analytics.Engine).AttributionBySource)},
	{ReportFunnel, days(30), rows((*analytics.Engine).Funnel)},
	{ReportSalesAnomalies, days(90), rows((*analytics.Engine).SalesAnomalies)},
	{ReportCategoryPivot, pivotSince, rows((*analytics.Engine).CategoryPivot)},
	{ReportDashboard, fullHistory, rows((*analytics.Engine).Dashboard)},
}

func lookup(name string) (report, bool) {
	for _, r := range registry {
		if r.name == name {
			return r, true
		}
	}
	return report{}, false
}

// Reports returns the registered report names in presentation order.
func Reports() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}
