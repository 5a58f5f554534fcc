package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"commerce-analytics/internal/models"
	"commerce-analytics/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes report requests and report lifecycle events
type EventPublisher struct {
	requests *Producer
	events   *Producer
}

// NewEventPublisher creates a new event publisher; requests go to the
// request topic, lifecycle events to the events topic
func NewEventPublisher(requests, events *Producer) *EventPublisher {
	return &EventPublisher{requests: requests, events: events}
}

func reportKey(report, asOf string) string {
	return fmt.Sprintf("report-%s-%s", report, asOf)
}

// PublishReportRequested publishes ReportRequested event
func (ep *EventPublisher) PublishReportRequested(ctx context.Context, event *models.ReportRequestedEvent) error {
	return ep.requests.PublishEvent(ctx, reportKey(event.Report, event.AsOf), event)
}

// PublishReportCompleted publishes ReportCompleted event
func (ep *EventPublisher) PublishReportCompleted(ctx context.Context, event *models.ReportCompletedEvent) error {
	return ep.events.PublishEvent(ctx, reportKey(event.Report, event.AsOf), event)
}

// PublishReportFailed publishes ReportFailed event
func (ep *EventPublisher) PublishReportFailed(ctx context.Context, event *models.ReportFailedEvent) error {
	return ep.events.PublishEvent(ctx, reportKey(event.Report, event.AsOf), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onReportRequested func(context.Context, *models.ReportRequestedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Component("event-handler")}
}

// OnReportRequested registers a handler for ReportRequested events
func (eh *EventHandler) OnReportRequested(handler func(context.Context, *models.ReportRequestedEvent) error) {
	eh.onReportRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeReportRequested:
		if eh.onReportRequested != nil {
			var event models.ReportRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReportRequested event: %w", err)
			}
			return eh.onReportRequested(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
