package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"comanda/internal/logger"
	"comanda/internal/models"
)

// NATSPublisher sends status changes to "<subject>.<entity>.<status>"
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

func NewNATSPublisher(url, subject string, log *logger.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("comanda-api"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject, logger: log}, nil
}

func (p *NATSPublisher) PublishStatus(ctx context.Context, msg *models.StatusUpdateMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	subject := p.subject + "." + msg.RoutingKey()
	if err := p.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("message_published", fmt.Sprintf("Published message to subject %s", subject),
		logger.RequestIDFrom(ctx), map[string]interface{}{"subject": subject, "message_size": len(body)})
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// NATSSubscriber delivers every status change under "<subject>.>" to a handler
type NATSSubscriber struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

func NewNATSSubscriber(url, subject string, log *logger.Logger) (*NATSSubscriber, error) {
	conn, err := nats.Connect(url, nats.Name("comanda-notifications"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSubscriber{conn: conn, subject: subject, logger: log}, nil
}

// StartConsuming blocks until ctx is cancelled. NATS core has no redelivery,
// so malformed messages and handler errors are only logged.
func (s *NATSSubscriber) StartConsuming(ctx context.Context, handler MessageHandler) error {
	prefix := s.subject + "."
	sub, err := s.conn.Subscribe(prefix+">", func(msg *nats.Msg) {
		update, err := DecodeStatus(strings.TrimPrefix(msg.Subject, prefix), msg.Data)
		if err != nil {
			s.logger.Error("message_rejected", "Rejecting malformed message", "", err,
				map[string]interface{}{"subject": msg.Subject})
			return
		}
		if err := handler(ctx, update); err != nil {
			s.logger.Error("message_processing_failed", "Failed to process message", "", err,
				map[string]interface{}{"subject": msg.Subject})
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	defer sub.Unsubscribe()

	s.logger.Info("consumer_started", fmt.Sprintf("Started consuming from subject %s.>", s.subject), "",
		map[string]interface{}{"subject": s.subject})

	<-ctx.Done()
	s.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
	return ctx.Err()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
