package messaging

import (
	"context"

	"comanda/internal/models"
)

// StatusPublisher is implemented by every event driver.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg *models.StatusUpdateMessage) error
	Close() error
}

// Source is implemented by every event consumer.
type Source interface {
	StartConsuming(ctx context.Context, handler MessageHandler) error
	Close() error
}

// NopPublisher drops every message; used when events.driver is "none".
type NopPublisher struct{}

func (NopPublisher) PublishStatus(context.Context, *models.StatusUpdateMessage) error { return nil }

func (NopPublisher) Close() error { return nil }

var (
	_ StatusPublisher = (*Publisher)(nil)
	_ StatusPublisher = (*NATSPublisher)(nil)
	_ StatusPublisher = NopPublisher{}
	_ Source          = (*Consumer)(nil)
	_ Source          = (*NATSSubscriber)(nil)
)
