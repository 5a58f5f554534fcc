package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce-analytics/internal/analytics"
	"commerce-analytics/internal/models"
	"commerce-analytics/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DateLayout is the as-of date format accepted from callers
const DateLayout = "2006-01-02"

const lockTTL = 5 * time.Minute

var (
	// ErrUnknownReport is returned for a report name missing from the registry
	ErrUnknownReport = errors.New("unknown report")
	// ErrInvalidAsOf is returned for an as-of date not in YYYY-MM-DD form
	ErrInvalidAsOf = errors.New("invalid as-of date")
	// ErrRunInProgress is returned while another run holds the report lock
	ErrRunInProgress = errors.New("report run already in progress")
)

// SnapshotSource loads the analytics input of [start, end)
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, start, end time.Time) (*analytics.Snapshot, error)
}

// ReportCache stores serialized results and the per-report run lock
type ReportCache interface {
	GetReport(ctx context.Context, report, asOf string) ([]byte, bool, error)
	SetReport(ctx context.Context, report, asOf string, data []byte) error
	InvalidateReport(ctx context.Context, report, asOf string) error
	AcquireLock(ctx context.Context, report, asOf, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, report, asOf, owner string) error
}

// EventPublisher announces report requests and outcomes
type EventPublisher interface {
	PublishReportRequested(ctx context.Context, event *models.ReportRequestedEvent) error
	PublishReportCompleted(ctx context.Context, event *models.ReportCompletedEvent) error
	PublishReportFailed(ctx context.Context, event *models.ReportFailedEvent) error
}

// ReportResult is one computed report as served and cached
type ReportResult struct {
	RunID       string          `json:"run_id"`
	Report      string          `json:"report"`
	AsOf        string          `json:"as_of"`
	GeneratedAt time.Time       `json:"generated_at"`
	RowCount    int             `json:"row_count"`
	Cached      bool            `json:"cached"`
	Data        json.RawMessage `json:"data"`
}

// ReportService runs named reports: snapshot load, analyzer, cache, publish.
// cache and publisher are optional.
type ReportService struct {
	engine    *analytics.Engine
	source    SnapshotSource
	cache     ReportCache
	publisher EventPublisher
	logger    *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(
	engine *analytics.Engine,
	source SnapshotSource,
	cache ReportCache,
	publisher EventPublisher,
) *ReportService {
	return &ReportService{
		engine:    engine,
		source:    source,
		cache:     cache,
		publisher: publisher,
		logger:    util.Component("report-service"),
	}
}

// ParseAsOf turns "as of day D" into the exclusive window end, midnight UTC
// starting D+1.
func ParseAsOf(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidAsOf, date)
	}
	return d.AddDate(0, 0, 1), nil
}

// DefaultAsOf is the last complete day before now.
func DefaultAsOf(now time.Time) string {
	return now.UTC().AddDate(0, 0, -1).Format(DateLayout)
}

// Request validates a report request and queues it for a worker
func (s *ReportService) Request(ctx context.Context, name, asOf string) (*models.ReportRequestedEvent, error) {
	if _, ok := lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	if _, err := ParseAsOf(asOf); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		return nil, errors.New("report requests are not enabled")
	}

	event := &models.ReportRequestedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReportRequested),
		Report:    name,
		AsOf:      asOf,
	}
	if err := s.publisher.PublishReportRequested(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to queue report: %w", err)
	}
	s.logger.Info("Report requested",
		zap.String("report", name),
		zap.String("as_of", asOf),
		zap.String("event_id", event.EventID))
	return event, nil
}

// Run computes report name as of the date asOf, serving a cached result when
// one exists. The context is checked between steps; a cancelled run publishes
// nothing.
func (s *ReportService) Run(ctx context.Context, name, asOf string) (*ReportResult, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Run")
	defer span.End()
	span.SetAttributes(attribute.String("report", name), attribute.String("as_of", asOf))

	def, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	end, err := ParseAsOf(asOf)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cached, ok := s.cached(ctx, name, asOf); ok {
		util.ReportRunsTotal.WithLabelValues(name, util.RunStatusCached).Inc()
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, nil
	}

	runID := uuid.New().String()
	if s.cache != nil {
		acquired, err := s.cache.AcquireLock(ctx, name, asOf, runID, lockTTL)
		if err != nil {
			s.logger.Warn("Report lock unavailable, running unlocked", zap.String("report", name), zap.Error(err))
		} else if !acquired {
			return nil, fmt.Errorf("%w: %s as of %s", ErrRunInProgress, name, asOf)
		} else {
			defer func() {
				if err := s.cache.ReleaseLock(context.Background(), name, asOf, runID); err != nil {
					s.logger.Warn("Failed to release report lock", zap.String("report", name), zap.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	result, err := s.compute(ctx, def, end, runID, asOf)
	duration := time.Since(start)
	util.ReportDuration.WithLabelValues(name).Observe(duration.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return nil, err
		}
		s.fail(ctx, runID, name, asOf, err)
		return nil, err
	}

	util.ReportRunsTotal.WithLabelValues(name, util.RunStatusSuccess).Inc()
	util.ReportRows.WithLabelValues(name).Set(float64(result.RowCount))
	span.SetAttributes(attribute.Int("rows", result.RowCount))

	if s.cache != nil {
		payload, err := json.Marshal(result)
		if err == nil {
			err = s.cache.SetReport(ctx, name, asOf, payload)
		}
		if err != nil {
			s.logger.Warn("Failed to cache report", zap.String("report", name), zap.Error(err))
		}
	}

	s.logger.Info("Report completed",
		zap.String("run_id", runID),
		zap.String("report", name),
		zap.String("as_of", asOf),
		zap.Int("rows", result.RowCount),
		zap.Duration("duration", duration))

	if s.publisher != nil {
		event := &models.ReportCompletedEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypeReportCompleted),
			RunID:      runID,
			Report:     name,
			AsOf:       asOf,
			Rows:       result.RowCount,
			DurationMs: duration.Milliseconds(),
		}
		if err := s.publisher.PublishReportCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReportCompleted event", zap.Error(err))
		}
	}
	return result, nil
}

// Refresh drops the cached result of a report and computes it again
func (s *ReportService) Refresh(ctx context.Context, name, asOf string) (*ReportResult, error) {
	if _, ok := lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	if _, err := ParseAsOf(asOf); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateReport(ctx, name, asOf); err != nil {
			return nil, fmt.Errorf("failed to invalidate cached report: %w", err)
		}
	}
	return s.Run(ctx, name, asOf)
}

func (s *ReportService) compute(ctx context.Context, def report, end time.Time, runID, asOf string) (*ReportResult, error) {
	start, loadEnd := def.bounds(s.engine.Config(), end)
	snap, err := s.source.LoadSnapshot(ctx, start, loadEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, n, err := def.run(s.engine, snap, end)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", def.name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return &ReportResult{
		RunID:       runID,
		Report:      def.name,
		AsOf:        asOf,
		GeneratedAt: time.Now().UTC(),
		RowCount:    n,
		Data:        data,
	}, nil
}

func (s *ReportService) cached(ctx context.Context, name, asOf string) (*ReportResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.GetReport(ctx, name, asOf)
	if err != nil {
		s.logger.Warn("Report cache read failed", zap.String("report", name), zap.Error(err))
	}
	if !ok {
		util.ReportCacheMissesTotal.Inc()
		return nil, false
	}

	var result ReportResult
	if err := json.Unmarshal(data, &result); err != nil {
		s.logger.Warn("Discarding corrupt cached report", zap.String("report", name), zap.Error(err))
		util.ReportCacheMissesTotal.Inc()
		return nil, false
	}
	util.ReportCacheHitsTotal.Inc()
	result.Cached = true
	return &result, true
}

func (s *ReportService) fail(ctx context.Context, runID, name, asOf string, err error) {
	util.ReportRunsTotal.WithLabelValues(name, util.RunStatusFailed).Inc()

	var integrity *analytics.DataIntegrityError
	if errors.As(err, &integrity) {
		util.DataIntegrityErrorsTotal.WithLabelValues(integrity.Entity).Inc()
		s.logger.Warn("Report aborted on data integrity",
			zap.String("report", name),
			zap.String("entity", integrity.Entity),
			zap.Int64("id", integrity.ID),
			zap.String("reason", integrity.Reason))
	} else {
		s.logger.Error("Report failed", zap.String("report", name), zap.Error(err))
	}

	if s.publisher == nil {
		return
	}
	event := &models.ReportFailedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReportFailed),
		RunID:     runID,
		Report:    name,
		AsOf:      asOf,
		Reason:    err.Error(),
	}
	if err := s.publisher.PublishReportFailed(ctx, event); err != nil {
		s.logger.Error("Failed to publish ReportFailed event", zap.Error(err))
	}
}
