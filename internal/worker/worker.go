package worker

import (
	"context"
	"errors"

	"commerce-analytics/internal/broker"
	"commerce-analytics/internal/models"
	"commerce-analytics/internal/service"
	"commerce-analytics/internal/util"

	"go.uber.org/zap"
)

// ReportRunner runs one named report
type ReportRunner interface {
	Run(ctx context.Context, name, asOf string) (*service.ReportResult, error)
}

// ReportWorker runs report requests consumed from Kafka
type ReportWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	runner       ReportRunner
	logger       *zap.Logger
}

// NewReportWorker creates a new report worker
func NewReportWorker(consumer *broker.Consumer, runner ReportRunner) *ReportWorker {
	w := &ReportWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		runner:       runner,
		logger:       util.Component("report-worker"),
	}
	w.eventHandler.OnReportRequested(w.handleReportRequested)
	return w
}

func (w *ReportWorker) handleReportRequested(ctx context.Context, event *models.ReportRequestedEvent) error {
	asOf := event.AsOf
	if asOf == "" {
		asOf = service.DefaultAsOf(event.Timestamp)
	}

	w.logger.Info("Processing report request",
		zap.String("event_id", event.EventID),
		zap.String("report", event.Report),
		zap.String("as_of", asOf))

	result, err := w.runner.Run(ctx, event.Report, asOf)
	if errors.Is(err, service.ErrRunInProgress) {
		// the lock holder publishes the outcome
		w.logger.Info("Report already running, request dropped",
			zap.String("report", event.Report),
			zap.String("as_of", asOf))
		return nil
	}
	if err != nil {
		return err
	}

	w.logger.Info("Report request served",
		zap.String("event_id", event.EventID),
		zap.String("run_id", result.RunID),
		zap.Bool("cached", result.Cached))
	return nil
}

// Start starts the worker
func (w *ReportWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting report worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReportWorker) Stop() error {
	w.logger.Info("Stopping report worker")
	return w.consumer.Close()
}
