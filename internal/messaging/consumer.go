package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"comanda/internal/logger"
	"comanda/internal/models"
)

// ErrMalformedMessage marks a delivery that can never be handled; it is
// rejected without requeue.
var ErrMalformedMessage = errors.New("malformed status message")

// MessageHandler receives each decoded status change.
type MessageHandler func(ctx context.Context, msg *models.StatusUpdateMessage) error

// DecodeStatus parses a status change delivered under routingKey
// ("<entity>.<STATUS>") and checks that the body agrees with the key.
func DecodeStatus(routingKey string, body []byte) (*models.StatusUpdateMessage, error) {
	entity, status, ok := strings.Cut(routingKey, ".")
	if !ok || entity == "" || status == "" {
		return nil, fmt.Errorf("%w: routing key %q is not <entity>.<STATUS>", ErrMalformedMessage, routingKey)
	}
	switch entity {
	case models.EntityTable, models.EntityOrder, models.EntityOrderItem:
	default:
		return nil, fmt.Errorf("%w: unknown entity %q", ErrMalformedMessage, entity)
	}

	var msg models.StatusUpdateMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.Entity != entity || msg.NewStatus != status {
		return nil, fmt.Errorf("%w: body %s does not match routing key %s", ErrMalformedMessage, msg.RoutingKey(), routingKey)
	}
	if msg.EntityID == "" {
		return nil, fmt.Errorf("%w: entity_id is empty", ErrMalformedMessage)
	}
	return &msg, nil
}

// Consumer reads status changes from a RabbitMQ queue bound to StatusExchange
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming blocks until ctx is cancelled, reconnecting when the
// delivery channel closes underneath it.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		err := c.consume(ctx, handler)
		if !errors.Is(err, errChannelClosed) {
			return err
		}
		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

var errChannelClosed = errors.New("delivery channel closed")

func (c *Consumer) consume(ctx context.Context, handler MessageHandler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	if err := c.conn.Channel().Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.conn.Channel().Consume(
		c.queueName,   // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer_started",
		fmt.Sprintf("Started consuming from queue %s", c.queueName),
		"", map[string]interface{}{
			"queue":    c.queueName,
			"consumer": c.consumerTag,
			"prefetch": c.prefetch,
		})

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errChannelClosed
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

// processMessage settles one delivery. Malformed messages are rejected for
// good; a failing handler gets one redelivery before the message is dropped.
func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	startTime := time.Now()
	fields := map[string]interface{}{
		"queue":        c.queueName,
		"routing_key":  delivery.RoutingKey,
		"delivery_tag": delivery.DeliveryTag,
		"redelivered":  delivery.Redelivered,
	}

	msg, err := DecodeStatus(delivery.RoutingKey, delivery.Body)
	if err != nil {
		c.logger.Error("message_rejected", "Rejecting malformed message", "", err, fields)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
		return
	}

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = handler(processingCtx, msg)
	fields["duration_ms"] = time.Since(startTime).Milliseconds()

	if err != nil {
		requeue := !delivery.Redelivered
		fields["requeue"] = requeue
		c.logger.Error("message_processing_failed", "Failed to process message", "", err, fields)
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", "", nackErr, nil)
		}
		return
	}

	c.logger.Debug("message_processed", "Successfully processed message", "", fields)
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", "", ackErr, nil)
	}
}

// Close stops consuming messages
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}
