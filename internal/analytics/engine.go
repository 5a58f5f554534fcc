// Package analytics implements the fixed battery of e-commerce reports over an
// immutable Snapshot: cohort retention, product performance, RFM
// segmentation, market basket, category rollups, journeys and funnel,
// anomaly detection, and the category pivot and dashboard that compose them.
//
// Every analyzer is a pure function of the snapshot and the as-of instant.
// Windows are half-open, [asOf-N, asOf); callers reporting "as of day D"
// pass midnight at the start of D+1.
package analytics

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Config holds the analyzer policy constants.
type Config struct {
	// ExcludedStatuses drops orders (and their items) before any analysis.
	ExcludedStatuses []string
	// BasketMinSupport is the minimum co-occurrence count of a reported pair.
	BasketMinSupport int
	// BasketTopN caps the market basket result.
	BasketTopN int
	// PathMinOccurrences is the minimum journeys sharing a reported path.
	PathMinOccurrences int
	// AttributionWindow is how long after a purchase event an order still
	// counts as its conversion.
	AttributionWindow time.Duration
	// AnomalyZThreshold flags a day when either |z| exceeds it.
	AnomalyZThreshold float64
	// Workers caps concurrent partitions in window computations; 0 is GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the policy the dashboards were built against.
func DefaultConfig() Config {
	return Config{
		ExcludedStatuses:   []string{"cancelled", "refunded"},
		BasketMinSupport:   10,
		BasketTopN:         20,
		PathMinOccurrences: 5,
		AttributionWindow:  10 * time.Minute,
		AnomalyZThreshold:  2,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ExcludedStatuses == nil {
		c.ExcludedStatuses = d.ExcludedStatuses
	}
	if c.BasketMinSupport <= 0 {
		c.BasketMinSupport = d.BasketMinSupport
	}
	if c.BasketTopN <= 0 {
		c.BasketTopN = d.BasketTopN
	}
	if c.PathMinOccurrences <= 0 {
		c.PathMinOccurrences = d.PathMinOccurrences
	}
	if c.AttributionWindow <= 0 {
		c.AttributionWindow = d.AttributionWindow
	}
	if c.AnomalyZThreshold <= 0 {
		c.AnomalyZThreshold = d.AnomalyZThreshold
	}
	return c
}

// Engine runs analyzers under one Config.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an engine; zero Config fields take DefaultConfig values.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

const dateLayout = "2006-01-02"

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// monthsBetween counts calendar months from a's month to b's month.
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// lastDay is the calendar day holding the final instant of [.., asOf).
func lastDay(asOf time.Time) time.Time {
	return dayStart(asOf.Add(-time.Nanosecond))
}

// within reports start <= t < end.
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
