package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Event types emitted by the pricing core. An external transport layer
// forwards them to clients; the core owes no delivery guarantee.
const (
	TypeEdgeDetected    = "edge.detected"
	TypeEdgeRetired     = "edge.retired"
	TypeTicketSubmitted = "ticket.submitted"
)

// Publisher is the fire-and-forget domain event sink.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{})
}

// LogPublisher writes events to the structured log. It is the default sink
// when no external transport is wired in.
type LogPublisher struct {
	log *logrus.Entry
}

// NewLogPublisher creates a publisher backed by the logger
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{log: logger.WithField("component", "events")}
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, eventType string, payload interface{}) {
	p.log.WithFields(logrus.Fields{
		"event_type": eventType,
		"payload":    payload,
	}).Info("domain event")
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, payload interface{}) {}
